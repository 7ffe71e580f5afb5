package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsZeroPrice(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"0.00", true},
		{"$0.00", true},
		{"€0,00", true},
		{"TRY 0", true},
		{"0", true},
		{"Free", true},
		{"FREE", true},
		{"Gratis", true},
		{"Ücretsiz", true},
		{"0 ₺", true},
		{"$19.99", false},
		{"19,99 €", false},
		{"0.00 (was 19.99)", false},
		{"-100%", false},
		{"Free shipping on orders over 10", false},
		{"", false},
		{"Total", false},
		{"freedom", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, IsZeroPrice(tt.text))
		})
	}
}

func TestPolicy_WithDefaults(t *testing.T) {
	p := Policy{CheckoutAttempts: 3}.withDefaults()
	d := DefaultPolicy()

	assert.Equal(t, 3, p.CheckoutAttempts)
	assert.Equal(t, d.ReclickEvery, p.ReclickEvery)
	assert.Equal(t, d.LoginTimeout, p.LoginTimeout)
	assert.Equal(t, d.StepTimeout, p.StepTimeout)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "claim_unverified", StateClaimUnverified.String())
	assert.Equal(t, "unknown", State(99).String())
}
