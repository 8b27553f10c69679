// Package auth verifies gateway bearer tokens and enforces per-token tool
// scoping.
//
// Tokens have the form "prefix.secret": the prefix is a public lookup key,
// the secret is verified against a one-way hash with a constant-time
// comparison. A reversible AES-GCM ciphertext of the full token is kept for
// the admin-only reveal operation. The package is protocol-agnostic and can
// be used with any transport layer.
package auth
