package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseErrorToErrorResponse(t *testing.T) {
	err := NewParseError("parse.unexpected_type", "$.where.op", "number", "string")

	t.Run("error message", func(t *testing.T) {
		assert.Contains(t, err.Error(), "$.where.op")
		assert.Contains(t, err.Error(), "number")
	})

	t.Run("wire response", func(t *testing.T) {
		resp := err.ToErrorResponse()
		assert.Equal(t, "parse.unexpected_type", resp.Code)
		assert.Equal(t, "$.where.op", resp.Details["path"])
		assert.Equal(t, "number", resp.Details["got"])
		assert.Equal(t, "string", resp.Details["expected"])
	})
}

func TestValidationErrorToErrorResponse(t *testing.T) {
	t.Run("with entity and field", func(t *testing.T) {
		err := NewValidationError("validate.unknown_column", "column", "users.ghost", "column_ref", "column does not exist")
		assert.Contains(t, err.Error(), "validate.unknown_column")
		assert.Contains(t, err.Error(), "users.ghost")

		resp := err.ToErrorResponse()
		assert.Equal(t, "validate.unknown_column", resp.Code)
		assert.Equal(t, "column", resp.Details["entity"])
	})

	t.Run("without entity", func(t *testing.T) {
		err := NewValidationError("validate.recursive_cte_missing_set_op", "", "", "", "recursive CTE has no set operation")
		assert.Equal(t, "validation error [validate.recursive_cte_missing_set_op]: recursive CTE has no set operation", err.Error())
	})
}

func TestCompilationErrorToErrorResponse(t *testing.T) {
	err := NewCompilationError("runtime.missing_param", "required param \"tenant_id\" was not supplied")
	resp := err.ToErrorResponse()
	assert.Equal(t, "runtime.missing_param", resp.Code)
	assert.Contains(t, resp.Message, "tenant_id")
}

func TestProfileConfigErrorToErrorResponse(t *testing.T) {
	err := NewProfileConfigError("profile.missing_dependency", "window_functions", "requires aggregations")
	resp := err.ToErrorResponse()
	assert.Equal(t, "profile.missing_dependency", resp.Code)
	assert.Equal(t, "window_functions", resp.Details["capability"])
}

func TestErrorsImplementErrorInterface(t *testing.T) {
	var errs []error
	errs = append(errs,
		NewParseError("c", "p", "g", "e"),
		NewValidationError("c", "e", "n", "f", "m"),
		NewCompilationError("c", "m"),
		NewProfileConfigError("c", "cap", "m"),
	)
	for _, e := range errs {
		assert.NotEmpty(t, e.Error())
	}
}
