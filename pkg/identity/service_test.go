package identity

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestGenerateKey(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		key, err := generateKey()
		if err != nil {
			t.Fatalf("generateKey() error: %v", err)
		}
		if !strings.HasPrefix(key, keyPrefix) {
			t.Errorf("key %q missing prefix %q", key, keyPrefix)
		}
		if seen[key] {
			t.Fatalf("generateKey() produced a duplicate: %s", key)
		}
		seen[key] = true
	}
}

func TestBcryptRoundTrip(t *testing.T) {
	key, err := generateKey()
	if err != nil {
		t.Fatalf("generateKey() error: %v", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcryptCost)
	if err != nil {
		t.Fatalf("GenerateFromPassword() error: %v", err)
	}

	if err := bcrypt.CompareHashAndPassword(hash, []byte(key)); err != nil {
		t.Errorf("CompareHashAndPassword() failed for the correct key: %v", err)
	}

	if err := bcrypt.CompareHashAndPassword(hash, []byte("wrong-key")); err == nil {
		t.Error("CompareHashAndPassword() succeeded for an incorrect key")
	}
}

func TestBcryptCostMeetsWorkFactor(t *testing.T) {
	if bcryptCost < 10 {
		t.Errorf("bcryptCost = %d, want >= 10 per spec", bcryptCost)
	}
}
