// Package simpleupload provides the building blocks of a signed direct upload
// flow: a server-side signature issuer that hands out short-lived, single-use
// upload authorizations, and a client that spends one authorization to stream a
// file straight to a storage provider while reporting progress.
//
// The root package holds the shared domain types (Authorization, File,
// UploadResult, Outcome), the closed ErrorKind taxonomy and the collaborator
// interfaces (Provider, BlobStore, TokenStore). Implementations live in
// subpackages:
//
//   - signer: HMAC signing and validation of authorizations
//   - issuer: HTTP handlers serving authorizations
//   - client: authorization client and the upload widget
//   - provider/imagekit, provider/server: storage provider client and a
//     self-hosted provider speaking the same wire protocol
//   - storage/*, tokenstore/*: pluggable persistence for the self-hosted provider
//   - account: user accounts referencing uploaded files
//
// Authorization Lifetime
//
// An Authorization is valid until its Expire timestamp and is intended for
// exactly one upload attempt. Clients request a fresh one per attempt and drop
// it as soon as the attempt resolves; it is never cached or persisted.
package simpleupload
