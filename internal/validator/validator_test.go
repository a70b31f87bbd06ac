package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type outcomeRequest struct {
	Status string `json:"status" validate:"required,is-booking-outcome"`
	Plan   string `json:"plan" validate:"omitempty,is-school-plan"`
}

func TestValidate_CustomRules(t *testing.T) {
	v := New()

	assert.NoError(t, v.Validate(&outcomeRequest{Status: "partial", Plan: "premium"}))
	assert.NoError(t, v.Validate(&outcomeRequest{Status: "no_show"}))

	err := v.Validate(&outcomeRequest{Status: "canceled", Plan: "gold"})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Errors, "status")
	assert.Contains(t, vErr.Errors, "plan")
	assert.Equal(t, "Must be one of: completed, partial, no_show", vErr.Errors["status"])
}

func TestValidate_Required(t *testing.T) {
	err := New().Validate(&outcomeRequest{})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "This field is required", vErr.Errors["status"])
}
