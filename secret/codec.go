package secret

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

const (
	// KeyLen is the required decoded key length (AES-256).
	KeyLen = 32

	// NonceLen is the GCM nonce length prepended to every ciphertext.
	NonceLen = 12

	maskRune = '*'
)

// DecodeKey decodes configured key material into a 32-byte AES-256 key.
//
// Accepted encodings: 64 hex characters (optionally "0x"-prefixed), and
// standard or URL-safe base64 with or without padding. One layer of matching
// surrounding quotes and any internal whitespace are stripped first.
// Anything else, or material decoding to a length other than 32 bytes,
// fails with ErrBadKeyMaterial.
func DecodeKey(material string) ([]byte, error) {
	s := strings.TrimSpace(material)
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			s = s[1 : len(s)-1]
		}
	}
	s = strings.Join(strings.Fields(s), "")
	if s == "" {
		return nil, fmt.Errorf("%w: empty value", ErrBadKeyMaterial)
	}

	if key, ok := decodeHexKey(s); ok {
		return key, nil
	}

	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		decoded, err := enc.DecodeString(s)
		if err != nil {
			continue
		}
		if len(decoded) != KeyLen {
			return nil, fmt.Errorf("%w: decoded to %d bytes, want %d", ErrBadKeyMaterial, len(decoded), KeyLen)
		}
		return decoded, nil
	}

	return nil, fmt.Errorf("%w: not hex or base64", ErrBadKeyMaterial)
}

func decodeHexKey(s string) ([]byte, bool) {
	h := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(h) != KeyLen*2 {
		return nil, false
	}
	decoded, err := hex.DecodeString(h)
	if err != nil {
		return nil, false
	}
	return decoded, true
}

// Encrypt seals plaintext with AES-256-GCM under key.
// The returned blob is nonce || ciphertext+tag, with a fresh random nonce
// per call.
func Encrypt(key []byte, plaintext string) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, NonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("secret: generate nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

// Decrypt opens a blob produced by Encrypt. It fails with ErrDecryptFailed
// when the blob is shorter than the nonce or when tag verification fails
// (tampered ciphertext or wrong key).
func Decrypt(key []byte, blob []byte) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	if len(blob) < NonceLen {
		return "", fmt.Errorf("%w: ciphertext shorter than nonce", ErrDecryptFailed)
	}

	plaintext, err := gcm.Open(nil, blob[:NonceLen], blob[NonceLen:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptFailed, err)
	}
	return string(plaintext), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeyLen {
		return nil, fmt.Errorf("%w: key length %d, want %d", ErrBadKeyMaterial, len(key), KeyLen)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("secret: create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("secret: create GCM: %w", err)
	}
	return gcm, nil
}

// Mask returns a display form of s that preserves its length.
// Short values (12 characters or fewer) are fully masked; longer values keep
// the first and last 4 characters.
func Mask(s string) string {
	if len(s) <= 12 {
		return strings.Repeat(string(maskRune), len(s))
	}
	return s[:4] + strings.Repeat(string(maskRune), len(s)-8) + s[len(s)-4:]
}

// ConstantTimeEqual compares two secrets without leaking timing information
// about the first mismatching byte. Use it wherever a caller-supplied secret
// is checked against a stored hash.
func ConstantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
