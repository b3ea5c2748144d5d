package ingest

import (
	"errors"
	"fmt"
	"testing"

	"github.com/reseller/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
)

func TestIngestionError(t *testing.T) {
	err := newIngestionError(3, "ean", ErrCodeIngestInvalidEAN, "EAN must be exactly 13 digits", "123")
	assert.Equal(t, "row 3, field 'ean': EAN must be exactly 13 digits", err.Error())
	assert.ErrorIs(t, err, shared.ErrIngestion)

	noField := newIngestionError(4, "", ErrCodeIngestMalformed, "message is not valid JSON", "")
	assert.Equal(t, "row 4: message is not valid JSON", noField.Error())
}

func TestRowErrors(t *testing.T) {
	errs := RowErrors{
		newIngestionError(1, "ean", ErrCodeIngestInvalidEAN, "bad ean", ""),
		newIngestionError(1, "quantity", ErrCodeIngestInvalidRange, "too small", ""),
	}
	wrapped := fmt.Errorf("decode: %w", errs)

	assert.Contains(t, wrapped.Error(), "bad ean; row 1")
	assert.ErrorIs(t, wrapped, shared.ErrIngestion)
	assert.Len(t, AsIngestionErrors(1, wrapped), 2)
}

func TestAsIngestionErrors(t *testing.T) {
	assert.Nil(t, AsIngestionErrors(1, nil))

	single := AsIngestionErrors(2, newIngestionError(2, "sku", ErrCodeIngestRequiredField, "required", ""))
	assert.Len(t, single, 1)

	other := AsIngestionErrors(5, errors.New("boom"))
	assert.Equal(t, ErrCodeIngestValidation, other[0].Code)
	assert.Equal(t, 5, other[0].Row)
}

func TestErrorCollection(t *testing.T) {
	ec := NewErrorCollection(2)
	assert.False(t, ec.HasErrors())
	assert.Equal(t, "no errors", ec.String())

	ec.Add(
		newIngestionError(1, "ean", ErrCodeIngestInvalidEAN, "bad", ""),
		newIngestionError(2, "ean", ErrCodeIngestInvalidEAN, "bad", ""),
		newIngestionError(3, "quantity", ErrCodeIngestInvalidRange, "bad", ""),
	)
	assert.Equal(t, 3, ec.TotalCount())
	assert.Len(t, ec.Errors(), 2)
	assert.True(t, ec.IsTruncated())
	assert.Equal(t, map[string]int{ErrCodeIngestInvalidEAN: 2}, ec.ErrorSummary())
	assert.Contains(t, ec.String(), "3 error(s) found (showing first 2)")
}
