// Package secret provides the cryptographic primitives for at-rest secrets:
// symmetric key-material decoding, AES-256-GCM authenticated encryption,
// display masking, and constant-time comparison.
//
// It also resolves secret references (environment indirection) so that
// configuration files can point at key material without inlining it.
package secret
