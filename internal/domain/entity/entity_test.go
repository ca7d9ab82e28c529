package entity

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateTenantName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "valid", input: "acme", wantErr: false},
		{name: "single char", input: "a", wantErr: false},
		{name: "max length", input: strings.Repeat("x", 200), wantErr: false},
		{name: "empty", input: "", wantErr: true},
		{name: "too long", input: strings.Repeat("x", 201), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTenantName(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateRateLimits(t *testing.T) {
	tests := []struct {
		name    string
		limit   int
		window  int
		wantErr bool
	}{
		{name: "defaults", limit: 10, window: 60, wantErr: false},
		{name: "minimum", limit: 1, window: 1, wantErr: false},
		{name: "maximum", limit: 1_000_000, window: 86_400, wantErr: false},
		{name: "zero limit", limit: 0, window: 60, wantErr: true},
		{name: "limit too large", limit: 1_000_001, window: 60, wantErr: true},
		{name: "zero window", limit: 10, window: 0, wantErr: true},
		{name: "window too large", limit: 10, window: 86_401, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRateLimits(tt.limit, tt.window)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAPIKey_Usable(t *testing.T) {
	key := &APIKey{ID: "k1"}
	assert.True(t, key.Usable())

	now := time.Now()
	key.RevokedAt = &now
	assert.False(t, key.Usable())
}

func TestNormalizeReasonCode(t *testing.T) {
	assert.Equal(t, ReasonManual, NormalizeReasonCode("manual"))
	assert.Equal(t, ReasonOperatorAction, NormalizeReasonCode("operator_action"))
	assert.Equal(t, ReasonAutoUnauthSurge, NormalizeReasonCode("auto_unauth_401_surge"))
	assert.Equal(t, ReasonOneClick, NormalizeReasonCode("one_click_suspects"))

	// 未知のコードは manual に正規化される
	assert.Equal(t, ReasonManual, NormalizeReasonCode("something_else"))
	assert.Equal(t, ReasonManual, NormalizeReasonCode(""))
}
