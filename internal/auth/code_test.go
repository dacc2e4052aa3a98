package auth

import (
	"errors"
	"strconv"
	"strings"
	"testing"
)

// newTestCodeHasher returns a CodeHasher with bcrypt cost 4, the minimum
// allowed, so tests run in milliseconds.
func newTestCodeHasher() *CodeHasher {
	return NewCodeHasher(4)
}

// =========================================================================
// GenerateCode TESTS
// =========================================================================

func TestGenerateCode_SixDigitsInRange(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := GenerateCode()
		if err != nil {
			t.Fatalf("GenerateCode() error = %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("GenerateCode() = %q, want 6 digits", code)
		}
		n, err := strconv.Atoi(code)
		if err != nil {
			t.Fatalf("GenerateCode() = %q is not numeric", code)
		}
		if n < 100000 || n > 999999 {
			t.Fatalf("GenerateCode() = %d, out of range", n)
		}
	}
}

func TestGenerateCode_NotConstant(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		code, _ := GenerateCode()
		seen[code] = true
	}
	// 20 draws from 900000 values colliding down to one is not a thing.
	if len(seen) < 2 {
		t.Errorf("GenerateCode() produced %d distinct codes in 20 draws", len(seen))
	}
}

// =========================================================================
// Hash / Verify TESTS
// =========================================================================

func TestNewCodeHasher_InvalidCostFallsBack(t *testing.T) {
	if h := NewCodeHasher(0); h.cost != DefaultCodeCost {
		t.Errorf("cost = %d, want %d", h.cost, DefaultCodeCost)
	}
}

func TestHash_LooksBcryptAndIsSalted(t *testing.T) {
	h := newTestCodeHasher()

	hash1, err := h.Hash("123456")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	hash2, _ := h.Hash("123456")

	if !strings.HasPrefix(hash1, "$2") {
		t.Errorf("Hash() does not look like a bcrypt hash: %q", hash1)
	}
	if hash1 == hash2 {
		t.Error("Hash() produced identical hashes for the same code (salt must be random)")
	}
}

func TestVerify(t *testing.T) {
	h := newTestCodeHasher()
	hash, err := h.Hash("482913")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	tests := []struct {
		name    string
		hash    string
		code    string
		wantErr error
	}{
		{name: "correct code", hash: hash, code: "482913", wantErr: nil},
		{name: "wrong code", hash: hash, code: "482914", wantErr: ErrCodeMismatch},
		{name: "empty code", hash: hash, code: "", wantErr: ErrCodeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.Verify(tt.hash, tt.code)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Verify() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestVerify_GarbageHash(t *testing.T) {
	h := newTestCodeHasher()

	err := h.Verify("not-a-valid-bcrypt-hash", "123456")
	if err == nil {
		t.Fatal("Verify() should return an error for a garbage hash")
	}
	if errors.Is(err, ErrCodeMismatch) {
		t.Error("a corrupt hash must not be reported as a plain mismatch")
	}
}
