package dedup

import (
	"strings"
	"testing"
)

func TestFingerprintDeterministic(t *testing.T) {
	a := Fingerprint("owner-1", "2025-03-07", 45.90, "IFOOD *PEDIDO")
	b := Fingerprint("owner-1", "2025-03-07", 45.90, "IFOOD *PEDIDO")
	if a != b {
		t.Errorf("same inputs produced different fingerprints: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("fingerprint length = %d, want 64 hex chars", len(a))
	}
	if a != strings.ToLower(a) {
		t.Errorf("fingerprint should be lowercase hex, got %s", a)
	}
}

func TestFingerprintDistinguishesFields(t *testing.T) {
	base := Fingerprint("owner-1", "2025-03-07", 45.90, "IFOOD")
	tests := []struct {
		name string
		got  string
	}{
		{"different owner", Fingerprint("owner-2", "2025-03-07", 45.90, "IFOOD")},
		{"different date", Fingerprint("owner-1", "2025-03-08", 45.90, "IFOOD")},
		{"different amount", Fingerprint("owner-1", "2025-03-07", 45.91, "IFOOD")},
		{"different description", Fingerprint("owner-1", "2025-03-07", 45.90, "UBER")},
	}
	for _, tt := range tests {
		if tt.got == base {
			t.Errorf("%s: fingerprint collided with base", tt.name)
		}
	}
}

func TestFingerprintAmountPrecision(t *testing.T) {
	// Amounts are fixed to two decimals before hashing.
	a := Fingerprint("o", "2025-01-01", 10.0, "X")
	b := Fingerprint("o", "2025-01-01", 10.001, "X")
	if a != b {
		t.Errorf("amounts equal at cent precision should collide")
	}
	c := Fingerprint("o", "2025-01-01", 10.01, "X")
	if a == c {
		t.Errorf("amounts differing by a cent should not collide")
	}
}

func TestNaturalFingerprint(t *testing.T) {
	a := NaturalFingerprint("owner-1", "ofx_import", "FITID-001")
	b := NaturalFingerprint("owner-1", "ofx_import", "FITID-001")
	if a != b {
		t.Errorf("same inputs produced different fingerprints")
	}
	if a == NaturalFingerprint("owner-2", "ofx_import", "FITID-001") {
		t.Errorf("different owners should not collide")
	}
	if a == NaturalFingerprint("owner-1", "csv_import", "FITID-001") {
		t.Errorf("different providers should not collide")
	}
	if a == NaturalFingerprint("owner-1", "ofx_import", "FITID-002") {
		t.Errorf("different natural ids should not collide")
	}
}
