package secret

import "errors"

// Sentinel errors for secret handling.
var (
	// ErrBadKeyMaterial is returned when configured key material cannot be
	// decoded into a 32-byte AES-256 key. This is a configuration error and
	// should be fatal at load time, never per request.
	ErrBadKeyMaterial = errors.New("secret: bad encryption key material")

	// ErrDecryptFailed is returned when a ciphertext is truncated, tampered
	// with, or was produced under a different key. Callers must surface it
	// distinctly from "not found".
	ErrDecryptFailed = errors.New("secret: decryption failed")
)
