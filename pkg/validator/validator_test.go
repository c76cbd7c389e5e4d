package validator

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lineRequest struct {
	UnitID   string          `json:"unit_id" validate:"required,uuid"`
	Quantity int             `json:"quantity" validate:"ne=0"`
	UnitCost decimal.Decimal `json:"unit_cost" validate:"gte=0"`
}

type orderRequest struct {
	Type  string        `json:"type" validate:"required,oneof=purchase damage"`
	Notes string        `json:"notes,omitempty" validate:"max=5"`
	Lines []lineRequest `json:"lines" validate:"required,min=1,dive"`
	Code  string        `validate:"omitempty,min=3"`
}

func validLine() lineRequest {
	return lineRequest{UnitID: "550e8400-e29b-41d4-a716-446655440000", Quantity: 2, UnitCost: decimal.RequireFromString("1.25")}
}

func fieldsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	return valErr.Fields()
}

func TestValidate_Success(t *testing.T) {
	assert.NoError(t, Validate(orderRequest{Type: "purchase", Lines: []lineRequest{validLine()}}))
}

func TestValidate_UsesJSONNames(t *testing.T) {
	fields := fieldsOf(t, Validate(orderRequest{}))
	assert.Equal(t, "is required", fields["type"])
	assert.Equal(t, "is required", fields["lines"])
	assert.NotContains(t, fields, "Type")
}

func TestValidate_FallsBackToFieldName(t *testing.T) {
	fields := fieldsOf(t, Validate(orderRequest{Type: "purchase", Lines: []lineRequest{validLine()}, Code: "ab"}))
	assert.Equal(t, "must be at least 3 characters", fields["Code"])
}

func TestValidate_NestedPaths(t *testing.T) {
	bad := validLine()
	bad.UnitID = "not-a-uuid"
	bad.Quantity = 0

	fields := fieldsOf(t, Validate(orderRequest{Type: "purchase", Lines: []lineRequest{validLine(), bad}}))
	assert.Equal(t, "must be a valid UUID", fields["lines[1].unit_id"])
	assert.Equal(t, "must not be 0", fields["lines[1].quantity"])
	assert.Len(t, fields, 2)
}

func TestValidate_DecimalBounds(t *testing.T) {
	line := validLine()
	line.UnitCost = decimal.RequireFromString("-0.01")

	fields := fieldsOf(t, Validate(orderRequest{Type: "purchase", Lines: []lineRequest{line}}))
	assert.Equal(t, "must be greater than or equal to 0", fields["lines[0].unit_cost"])

	line.UnitCost = decimal.Zero
	assert.NoError(t, Validate(orderRequest{Type: "purchase", Lines: []lineRequest{line}}))
}

func TestValidate_MessagesByKind(t *testing.T) {
	fields := fieldsOf(t, Validate(orderRequest{Type: "transfer", Notes: "too long", Lines: []lineRequest{}}))
	assert.Equal(t, "must be one of: purchase damage", fields["type"])
	assert.Equal(t, "must be at most 5 characters", fields["notes"])
	assert.Equal(t, "must contain at least 1 items", fields["lines"])
}

func TestValidationError_ErrorString(t *testing.T) {
	err := Validate(orderRequest{Lines: []lineRequest{validLine()}})
	require.Error(t, err)
	assert.Equal(t, "field 'type' is required", err.Error())
}

func TestValidate_NonStruct(t *testing.T) {
	err := Validate("plain string")
	require.Error(t, err)
	var valErr *ValidationError
	assert.NotErrorAs(t, err, &valErr)
}
