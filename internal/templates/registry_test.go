package templates

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	t.Parallel()

	reg, err := DefaultRegistry()
	require.NoError(t, err)

	for _, name := range []string{OrderConfirmation, PaymentFailed, PasswordReset, AccountVerification, ShippingUpdate, Welcome} {
		cfg, ok := reg[name]
		require.True(t, ok, name)
		assert.NotEmpty(t, cfg.TemplateID, name)
		assert.NotEmpty(t, cfg.Subject, name)
	}
	assert.Equal(t, []string{"order", "user"}, reg[OrderConfirmation].Required)
}

func TestLoadRegistry_Invalid(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"empty":      "",
		"no id":      "X:\n  subject: hi\n",
		"no subject": "X:\n  template: x\n",
		"bad yaml":   "X: [",
	}

	for name, input := range tests {
		input := input
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := LoadRegistry(strings.NewReader(input))
			require.ErrorIs(t, err, ErrInvalidRegistry)
		})
	}
}

func TestNewResolver_BadSubject(t *testing.T) {
	t.Parallel()

	_, err := NewResolver(Registry{"X": {Name: "X", TemplateID: "x", Subject: "{{.Nope"}}, &stubRenderer{}, testSite)
	require.ErrorIs(t, err, ErrInvalidRegistry)
}
