package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMerchantKey(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"accents folded", "Pão de Açúcar", "pao-de-acucar"},
		{"uppercase no accents", "PAO DE ACUCAR", "pao-de-acucar"},
		{"mixed punctuation", "UBER *TRIP SAO PAULO", "uber-trip-sao-paulo"},
		{"digits kept", "99app", "99app"},
		{"leading trailing junk", "  --iFood-- ", "ifood"},
		{"empty", "", ""},
		{"only punctuation", "***", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MerchantKey(tt.in))
		})
	}
}

func TestMerchantKeyVariantsCollide(t *testing.T) {
	variants := []string{"Pão de Açúcar", "pao de acucar", "PÃO DE AÇÚCAR", "Pao de Acucar!"}
	want := MerchantKey(variants[0])
	for _, v := range variants {
		assert.Equal(t, want, MerchantKey(v), "variant %q", v)
	}
}
