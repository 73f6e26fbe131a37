package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nested struct {
	DocumentNumber string `json:"documentNumber" validate:"required"`
}

type sample struct {
	CallbackURL string   `json:"callbackUrl" validate:"required,url"`
	Steps       []string `json:"requiredVerifications" validate:"omitempty,dive,oneof=document facial"`
	ExpiresIn   int      `json:"expiresIn" validate:"omitempty,gte=60,lte=86400"`
	NFC         nested   `json:"nfcData"`
}

func TestValidateOK(t *testing.T) {
	v := NewValidator()
	err := v.Validate(sample{
		CallbackURL: "https://example.com/hook",
		Steps:       []string{"document"},
		ExpiresIn:   3600,
		NFC:         nested{DocumentNumber: "123"},
	})
	require.NoError(t, err)
}

func TestValidateMessagesUseJSONNames(t *testing.T) {
	v := NewValidator()
	err := v.Validate(sample{
		CallbackURL: "not a url",
		Steps:       []string{"retina"},
		ExpiresIn:   5,
	})
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "callbackUrl must be a valid URL")
	assert.Contains(t, msg, "requiredVerifications[0] must be one of: document, facial")
	assert.Contains(t, msg, "expiresIn must be greater than or equal to 60")
	assert.Contains(t, msg, "nfcData.documentNumber is required")
}
