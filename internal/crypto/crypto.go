// Package crypto seals small values, such as the console's session cookie,
// with AES-256-GCM under keys derived from one configured secret.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/hkdf"
)

// MinSecretLength is the shortest secret NewSealer accepts.
const MinSecretLength = 32

var (
	ErrMalformed = errors.New("sealed value is malformed")
	ErrExpired   = errors.New("sealed value has expired")
)

// GenerateSecret returns 32 random bytes.
func GenerateSecret() ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("generating secret: %w", err)
	}
	return key, nil
}

// DeriveKey derives a 32-byte key for purpose from secret using HKDF-SHA256.
func DeriveKey(secret []byte, purpose string) ([]byte, error) {
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, secret, nil, []byte(purpose))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("deriving key: %w", err)
	}
	return key, nil
}

// EncryptAESGCM encrypts plaintext with AES-256-GCM, binding aad. The
// result is nonce followed by ciphertext.
func EncryptAESGCM(plaintext, key, aad []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize(), gcm.NonceSize()+len(plaintext)+gcm.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, aad), nil
}

// DecryptAESGCM reverses EncryptAESGCM.
func DecryptAESGCM(sealed, key, aad []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, ErrMalformed
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, fmt.Errorf("decrypting: %w", err)
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return gcm, nil
}

// Sealer produces URL-safe sealed strings that carry an expiry. The name
// passed to Seal and Open is bound as additional data, so a value sealed
// for one cookie cannot be replayed as another.
type Sealer struct {
	key []byte
	now func() time.Time
}

// NewSealer derives the sealing key from secret.
func NewSealer(secret []byte) (*Sealer, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("secret must be at least %d bytes", MinSecretLength)
	}
	key, err := DeriveKey(secret, "opsconsole-cookie-v1")
	if err != nil {
		return nil, err
	}
	return &Sealer{key: key, now: time.Now}, nil
}

// Seal encrypts value for name, valid for ttl.
func (s *Sealer) Seal(name string, value []byte, ttl time.Duration) (string, error) {
	payload := make([]byte, 8+len(value))
	binary.BigEndian.PutUint64(payload, uint64(s.now().Add(ttl).Unix()))
	copy(payload[8:], value)
	sealed, err := EncryptAESGCM(payload, s.key, []byte(name))
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value sealed for name.
func (s *Sealer) Open(name, sealed string) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil {
		return nil, ErrMalformed
	}
	payload, err := DecryptAESGCM(raw, s.key, []byte(name))
	if err != nil {
		return nil, err
	}
	if len(payload) < 8 {
		return nil, ErrMalformed
	}
	expires := time.Unix(int64(binary.BigEndian.Uint64(payload)), 0)
	if !s.now().Before(expires) {
		return nil, ErrExpired
	}
	return payload[8:], nil
}
