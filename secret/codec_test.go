package secret

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
)

var testKey = bytes.Repeat([]byte{0xab, 0x01}, 16)

func TestDecodeKey_Encodings(t *testing.T) {
	raw := make([]byte, KeyLen)
	for i := range raw {
		raw[i] = byte(i * 7)
	}

	tests := []struct {
		name     string
		material string
	}{
		{"hex", hex.EncodeToString(raw)},
		{"hex uppercase", strings.ToUpper(hex.EncodeToString(raw))},
		{"hex 0x prefix", "0x" + hex.EncodeToString(raw)},
		{"base64 std", base64.StdEncoding.EncodeToString(raw)},
		{"base64 std unpadded", base64.RawStdEncoding.EncodeToString(raw)},
		{"base64 url", base64.URLEncoding.EncodeToString(raw)},
		{"base64 url unpadded", base64.RawURLEncoding.EncodeToString(raw)},
		{"surrounding quotes", `"` + hex.EncodeToString(raw) + `"`},
		{"single quotes", "'" + hex.EncodeToString(raw) + "'"},
		{"internal whitespace", hex.EncodeToString(raw[:16]) + " \t" + hex.EncodeToString(raw[16:])},
		{"leading and trailing space", "  " + hex.EncodeToString(raw) + "\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := DecodeKey(tt.material)
			if err != nil {
				t.Fatalf("DecodeKey() error = %v", err)
			}
			if !bytes.Equal(key, raw) {
				t.Errorf("DecodeKey() = %x, want %x", key, raw)
			}
		})
	}
}

func TestDecodeKey_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		material string
	}{
		{"empty", ""},
		{"whitespace only", "   \t\n"},
		{"garbage", "!!not-a-key!!"},
		{"hex too short", strings.Repeat("ab", 16)},
		{"base64 wrong length", base64.StdEncoding.EncodeToString([]byte("short"))},
		{"base64 33 bytes", base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{1}, 33))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeKey(tt.material)
			if !errors.Is(err, ErrBadKeyMaterial) {
				t.Errorf("DecodeKey(%q) error = %v, want ErrBadKeyMaterial", tt.material, err)
			}
		})
	}
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	plaintexts := []string{
		"",
		"a",
		"nxs_0123456789ab.deadbeef",
		"multi-byte 日本語 text \U0001f512",
		strings.Repeat("long payload ", 100),
	}

	for _, plain := range plaintexts {
		blob, err := Encrypt(testKey, plain)
		if err != nil {
			t.Fatalf("Encrypt(%q) error = %v", plain, err)
		}
		if len(blob) < NonceLen {
			t.Fatalf("Encrypt(%q) blob too short: %d", plain, len(blob))
		}

		got, err := Decrypt(testKey, blob)
		if err != nil {
			t.Fatalf("Decrypt() error = %v", err)
		}
		if got != plain {
			t.Errorf("round trip = %q, want %q", got, plain)
		}
	}
}

func TestEncrypt_FreshNonce(t *testing.T) {
	a, err := Encrypt(testKey, "same input")
	if err != nil {
		t.Fatal(err)
	}
	b, err := Encrypt(testKey, "same input")
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(a[:NonceLen], b[:NonceLen]) {
		t.Error("nonce reused across Encrypt calls")
	}
	if bytes.Equal(a, b) {
		t.Error("identical ciphertexts for repeated Encrypt calls")
	}
}

func TestDecrypt_Failures(t *testing.T) {
	blob, err := Encrypt(testKey, "payload")
	if err != nil {
		t.Fatal(err)
	}

	t.Run("truncated below nonce", func(t *testing.T) {
		_, err := Decrypt(testKey, blob[:NonceLen-1])
		if !errors.Is(err, ErrDecryptFailed) {
			t.Errorf("error = %v, want ErrDecryptFailed", err)
		}
	})

	t.Run("tampered ciphertext", func(t *testing.T) {
		tampered := append([]byte(nil), blob...)
		tampered[len(tampered)-1] ^= 0x01
		_, err := Decrypt(testKey, tampered)
		if !errors.Is(err, ErrDecryptFailed) {
			t.Errorf("error = %v, want ErrDecryptFailed", err)
		}
	})

	t.Run("wrong key", func(t *testing.T) {
		other := bytes.Repeat([]byte{0x42}, KeyLen)
		_, err := Decrypt(other, blob)
		if !errors.Is(err, ErrDecryptFailed) {
			t.Errorf("error = %v, want ErrDecryptFailed", err)
		}
	})

	t.Run("short key", func(t *testing.T) {
		_, err := Decrypt(testKey[:16], blob)
		if !errors.Is(err, ErrBadKeyMaterial) {
			t.Errorf("error = %v, want ErrBadKeyMaterial", err)
		}
	})
}

func TestMask(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"abc", "***"},
		{"abcdefgh", "********"},
		{"abcdefghijkl", "************"}, // boundary: len 12 fully masked
		{"abcdefghijklm", "abcd*****jklm"},
		{"abcdefghijklmnop", "abcd********mnop"},
	}

	for _, tt := range tests {
		if got := Mask(tt.in); got != tt.want {
			t.Errorf("Mask(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if len(Mask(tt.in)) != len(tt.in) {
			t.Errorf("Mask(%q) changed length", tt.in)
		}
	}
}

func TestConstantTimeEqual(t *testing.T) {
	tests := []struct {
		a    string
		b    string
		want bool
	}{
		{"hello", "hello", true},
		{"hello", "world", false},
		{"", "", true},
		{"a", "", false},
	}

	for _, tt := range tests {
		if got := ConstantTimeEqual(tt.a, tt.b); got != tt.want {
			t.Errorf("ConstantTimeEqual(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
