package issuer

import "net/http"

// CORS headers sent on the authorization endpoint
const (
	AllowOrigin  = "*"
	AllowMethods = "GET, OPTIONS"
	AllowHeaders = "Content-Type"

	// AllowHeadersWithSession is sent when GET requires a bearer token
	AllowHeadersWithSession = "Content-Type, Authorization"
)

// CORS sets the cross-origin headers required by browser clients on another
// origin
func CORS(next http.Handler) http.Handler {
	return corsHeaders(AllowHeaders)(next)
}

func corsHeaders(allowHeaders string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", AllowOrigin)
			w.Header().Set("Access-Control-Allow-Methods", AllowMethods)
			w.Header().Set("Access-Control-Allow-Headers", allowHeaders)
			next.ServeHTTP(w, r)
		})
	}
}
