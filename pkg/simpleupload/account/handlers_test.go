package account_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tendant/simple-upload/pkg/simpleupload/account"
	"github.com/tendant/simple-upload/pkg/simpleupload/account/memory"
)

func requireHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-KEY") != "admin" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

const sessionSecret = "session-test-secret"

var admin = map[string]string{"X-API-KEY": "admin"}

func newRouter() chi.Router {
	s := account.NewService(memory.New(), account.WithBcryptCost(bcrypt.MinCost))
	r := chi.NewRouter()
	h := account.NewHandlers(s, nil, account.WithSessionSecret(sessionSecret))
	r.Mount("/api/accounts", h.Routes(requireHeader))
	return r
}

func do(r http.Handler, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

const registerBody = `{"fullName":"Ada Lovelace","email":"ada@uni.edu","universityId":1815,"password":"analytical-engine","universityCard":"/cards/card.png"}`

func TestHandlers_RegisterAndGet(t *testing.T) {
	r := newRouter()

	rec := do(r, http.MethodPost, "/api/accounts", registerBody, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "password")

	var created map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "PENDING", created["status"])
	assert.Equal(t, "USER", created["role"])
	id := created["id"].(string)

	rec = do(r, http.MethodGet, "/api/accounts/"+id, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(r, http.MethodGet, "/api/accounts/"+id, "", admin)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"universityCard":"/cards/card.png"`)

	rec = do(r, http.MethodPost, "/api/accounts", registerBody, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "duplicate_email")
}

func TestHandlers_Errors(t *testing.T) {
	r := newRouter()

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/accounts", `{`, nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/accounts", `{"email":"x"}`, nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/accounts/not-a-uuid", "", admin).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/accounts/6f1c1d1e-8a8f-4c59-9a7e-4d2b8f0f0a01", "", admin).Code)
}

func TestHandlers_AdminStatus(t *testing.T) {
	r := newRouter()
	rec := do(r, http.MethodPost, "/api/accounts", registerBody, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	target := "/api/accounts/" + created["id"].(string) + "/status"

	rec = do(r, http.MethodPatch, target, `{"status":"APPROVED"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(r, http.MethodPatch, target, `{"status":"APPROVED"}`, admin)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"APPROVED"`)

	rec = do(r, http.MethodPatch, target, `{"status":"ARCHIVED"}`, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlers_NoAdminRoutesWithoutMiddleware(t *testing.T) {
	s := account.NewService(memory.New(), account.WithBcryptCost(bcrypt.MinCost))
	r := chi.NewRouter()
	r.Mount("/api/accounts", account.NewHandlers(s, nil).Routes(nil))

	rec := do(r, http.MethodPatch, "/api/accounts/6f1c1d1e-8a8f-4c59-9a7e-4d2b8f0f0a01/status", `{}`, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(r, http.MethodGet, "/api/accounts/6f1c1d1e-8a8f-4c59-9a7e-4d2b8f0f0a01", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(r, http.MethodPost, "/api/accounts/sign-in", `{"email":"ada@uni.edu","password":"analytical-engine"}`, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlers_SignInAndMe(t *testing.T) {
	r := newRouter()
	require.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/api/accounts", registerBody, nil).Code)

	rec := do(r, http.MethodPost, "/api/accounts/sign-in", `{"email":"ada@uni.edu","password":"wrong-password"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_credentials")

	rec = do(r, http.MethodPost, "/api/accounts/sign-in", `{"email":"nobody@uni.edu","password":"analytical-engine"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(r, http.MethodPost, "/api/accounts/sign-in", `{"email":"ADA@uni.edu","password":"analytical-engine"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var signIn account.SignInResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &signIn))
	require.NotEmpty(t, signIn.Token)
	require.NotNil(t, signIn.Account)
	assert.True(t, signIn.ExpiresAt.After(time.Now()))

	tok, err := jwtauth.New("HS256", []byte(sessionSecret), nil).Decode(signIn.Token)
	require.NoError(t, err)
	assert.Equal(t, signIn.Account.ID.String(), tok.Subject())

	rec = do(r, http.MethodGet, "/api/accounts/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(r, http.MethodGet, "/api/accounts/me", "", map[string]string{"Authorization": "Bearer " + signIn.Token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"email":"ada@uni.edu"`)

	_, forged, err := jwtauth.New("HS256", []byte("other-secret"), nil).Encode(map[string]interface{}{"sub": signIn.Account.ID.String()})
	require.NoError(t, err)
	rec = do(r, http.MethodGet, "/api/accounts/me", "", map[string]string{"Authorization": "Bearer " + forged})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
