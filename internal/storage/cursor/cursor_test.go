package cursor

import (
	"strings"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	original := NewNextPageCursor(42, `status = "ACTIVE"`)

	token, err := Encode(original)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if token == "" {
		t.Fatalf("expected non-empty token")
	}

	decoded, err := Decode(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.LastID != 42 {
		t.Fatalf("expected last id 42, got %d", decoded.LastID)
	}
	if decoded.FilterHash != original.FilterHash {
		t.Fatalf("expected filter hash %q, got %q", original.FilterHash, decoded.FilterHash)
	}
}

func TestDecodeRejectsBadTokens(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "not base64", token: "%%%"},
		{name: "not json", token: "bm90LWpzb24"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.token); err == nil {
				t.Fatalf("expected error, got nil")
			}
		})
	}
}

func TestValidateFilterHash(t *testing.T) {
	c := NewNextPageCursor(7, `kind = "MINING"`)
	if err := ValidateFilterHash(c, `kind = "MINING"`); err != nil {
		t.Fatalf("unchanged filter: %v", err)
	}
	if err := ValidateFilterHash(c, `kind = "DASH"`); err == nil {
		t.Fatalf("expected error for changed filter")
	}

	empty := NewNextPageCursor(7, "")
	if err := ValidateFilterHash(empty, ""); err != nil {
		t.Fatalf("empty filter: %v", err)
	}
	if err := ValidateFilterHash(empty, "owner = \"a\""); err == nil {
		t.Fatalf("expected error when filter added")
	}
}

func TestHashFilter(t *testing.T) {
	if HashFilter("") != "" {
		t.Fatalf("expected empty hash for empty filter")
	}
	hash := HashFilter("status = \"ACTIVE\"")
	if len(hash) != 16 {
		t.Fatalf("expected 16 hex chars, got %d", len(hash))
	}
	if strings.ToLower(hash) != hash {
		t.Fatalf("expected lowercase hex, got %q", hash)
	}
	if HashFilter("status = \"ACTIVE\"") != hash {
		t.Fatalf("expected stable hash")
	}
}
