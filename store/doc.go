// Package store persists client tokens and provider credentials in
// SQLite. It implements auth.TokenStore and keypool.CredentialStore so
// the in-memory stores can be swapped for durable ones without touching
// the packages above. The schema is created on open.
package store
