package crypto

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestGenerateSecret(t *testing.T) {
	key, err := GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret failed: %v", err)
	}
	if len(key) != 32 {
		t.Errorf("expected 32 bytes, got %d", len(key))
	}
	key2, _ := GenerateSecret()
	if bytes.Equal(key, key2) {
		t.Error("two secrets should not be equal")
	}
}

func TestDeriveKey(t *testing.T) {
	secret, _ := GenerateSecret()
	k, err := DeriveKey(secret, "cookie-v1")
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}
	if len(k) != 32 {
		t.Errorf("expected 32 bytes, got %d", len(k))
	}
	// Same inputs → same key
	k2, _ := DeriveKey(secret, "cookie-v1")
	if !bytes.Equal(k, k2) {
		t.Error("key derivation should be deterministic")
	}
	k3, _ := DeriveKey(secret, "cookie-v2")
	if bytes.Equal(k, k3) {
		t.Error("different purposes should yield different keys")
	}
}

func TestAESGCMRoundTrip(t *testing.T) {
	key, _ := GenerateSecret()
	plaintext := []byte("bearer-token-12345")

	sealed, err := EncryptAESGCM(plaintext, key, []byte("session"))
	if err != nil {
		t.Fatalf("EncryptAESGCM failed: %v", err)
	}
	if bytes.Contains(sealed, plaintext) {
		t.Error("ciphertext contains plaintext")
	}
	got, err := DecryptAESGCM(sealed, key, []byte("session"))
	if err != nil {
		t.Fatalf("DecryptAESGCM failed: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("expected %q, got %q", plaintext, got)
	}
}

func TestAESGCMWrongKeyOrAAD(t *testing.T) {
	key, _ := GenerateSecret()
	other, _ := GenerateSecret()
	sealed, _ := EncryptAESGCM([]byte("secret"), key, []byte("a"))

	if _, err := DecryptAESGCM(sealed, other, []byte("a")); err == nil {
		t.Error("decryption with wrong key should fail")
	}
	if _, err := DecryptAESGCM(sealed, key, []byte("b")); err == nil {
		t.Error("decryption with wrong additional data should fail")
	}
	if _, err := DecryptAESGCM([]byte("x"), key, nil); !errors.Is(err, ErrMalformed) {
		t.Errorf("expected ErrMalformed, got %v", err)
	}
}

func TestSealerRoundTrip(t *testing.T) {
	secret, _ := GenerateSecret()
	s, err := NewSealer(secret)
	if err != nil {
		t.Fatal(err)
	}

	v, err := s.Seal("opsconsole_session", []byte(`{"token":"abc"}`), time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if strings.ContainsAny(v, "+/=") {
		t.Errorf("sealed value is not URL safe: %s", v)
	}
	got, err := s.Open("opsconsole_session", v)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if string(got) != `{"token":"abc"}` {
		t.Errorf("unexpected payload %q", got)
	}

	if _, err := s.Open("other_cookie", v); err == nil {
		t.Error("value sealed for one name must not open under another")
	}
	if _, err := s.Open("opsconsole_session", "!!!"); !errors.Is(err, ErrMalformed) {
		t.Errorf("expected ErrMalformed, got %v", err)
	}
}

func TestSealerExpiry(t *testing.T) {
	secret, _ := GenerateSecret()
	s, _ := NewSealer(secret)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	v, _ := s.Seal("c", []byte("x"), time.Minute)
	now = now.Add(59 * time.Second)
	if _, err := s.Open("c", v); err != nil {
		t.Fatalf("expected valid value, got %v", err)
	}
	now = now.Add(2 * time.Second)
	if _, err := s.Open("c", v); !errors.Is(err, ErrExpired) {
		t.Errorf("expected ErrExpired, got %v", err)
	}
}

func TestNewSealerRejectsShortSecret(t *testing.T) {
	if _, err := NewSealer([]byte("short")); err == nil {
		t.Error("short secret should be rejected")
	}
}
