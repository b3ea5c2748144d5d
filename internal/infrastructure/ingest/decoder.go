// Package ingest turns raw report rows into typed inventory events. Every
// row is validated at this boundary; a malformed row is rejected with
// IngestionErrors naming the row and field and never reaches the ledger.
package ingest

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/reseller/backend/internal/domain/inventory"
	"github.com/reseller/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

var (
	timeType       = reflect.TypeOf(time.Time{})
	uuidType       = reflect.TypeOf(uuid.UUID{})
	decimalType    = reflect.TypeOf(decimal.Decimal{})
	decimalPtrType = reflect.TypeOf((*decimal.Decimal)(nil))
)

// Decoded is a row that passed validation
type Decoded struct {
	Row   int
	Event inventory.Event
}

// Decoder validates records and converts them to inventory events. It is
// safe for concurrent use.
type Decoder struct {
	validate *validator.Validate
}

// NewDecoder creates a decoder with the ingestion validation rules
func NewDecoder() *Decoder {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("col")
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	_ = v.RegisterValidation("ean", func(fl validator.FieldLevel) bool {
		return valueobject.IsValidEAN(fl.Field().String())
	})
	v.RegisterStructValidation(validateShipment, shipmentRecord{})
	v.RegisterStructValidation(validateTransfer, transferRecord{})
	return &Decoder{validate: v}
}

func validateShipment(sl validator.StructLevel) {
	r := sl.Current().Interface().(shipmentRecord)
	switch {
	case r.Ean == "" && r.Asin == "":
		sl.ReportError(r.Ean, "ean", "Ean", "ean_or_asin", "")
	case r.Ean != "" && r.Asin != "":
		sl.ReportError(r.Asin, "asin", "Asin", "ean_xor_asin", "")
	}
}

func validateTransfer(sl validator.StructLevel) {
	r := sl.Current().Interface().(transferRecord)
	if r.ToWarehouse == "" {
		sl.ReportError(r.ToWarehouse, "to_warehouse", "ToWarehouse", "required", "")
	}
}

// Decode decodes a record whose kind column names its type
func (d *Decoder) Decode(row int, rec Record) (inventory.Event, error) {
	return d.DecodeAs(rec[KindColumn], row, rec)
}

// DecodeAs decodes a record of the given kind. The error, if any, is a
// RowErrors listing every problem of the row.
func (d *Decoder) DecodeAs(kind string, row int, rec Record) (inventory.Event, error) {
	kind = strings.ToUpper(strings.TrimSpace(kind))
	target, ok := newRecord(kind)
	if !ok {
		return nil, RowErrors{newIngestionError(row, KindColumn, ErrCodeIngestUnknownKind,
			fmt.Sprintf("unknown record kind %q", kind), kind)}
	}

	errs := assign(row, rec, reflect.ValueOf(target).Elem())
	if err := d.validate.Struct(target); err != nil {
		errs = append(errs, validationErrors(row, rec, err)...)
	}
	if len(errs) > 0 {
		return nil, dedupe(errs)
	}
	return target.toEvent(), nil
}

// DecodeAll decodes rows numbered from firstRow. Valid rows are returned in
// order; rejected rows are collected and do not stop the others.
func (d *Decoder) DecodeAll(kind string, firstRow int, recs []Record) ([]Decoded, *ErrorCollection) {
	out := make([]Decoded, 0, len(recs))
	errs := NewErrorCollection(0)
	for i, rec := range recs {
		row := firstRow + i
		var (
			ev  inventory.Event
			err error
		)
		if kind == "" {
			ev, err = d.Decode(row, rec)
		} else {
			ev, err = d.DecodeAs(kind, row, rec)
		}
		if err != nil {
			errs.Add(AsIngestionErrors(row, err)...)
			continue
		}
		out = append(out, Decoded{Row: row, Event: ev})
	}
	return out, errs
}

// assign parses the columns of rec into the col-tagged fields of v
func assign(row int, rec Record, v reflect.Value) []*IngestionError {
	var errs []*IngestionError
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			errs = append(errs, assign(row, rec, v.Field(i))...)
			continue
		}
		col := field.Tag.Get("col")
		if col == "" {
			continue
		}
		raw := strings.TrimSpace(rec[col])
		if raw == "" {
			continue
		}
		if err := parseInto(v.Field(i), raw); err != nil {
			errs = append(errs, newIngestionError(row, col, ErrCodeIngestInvalidType, err.Error(), raw))
		}
	}
	return errs
}

func parseInto(dst reflect.Value, raw string) error {
	switch dst.Type() {
	case timeType:
		t, err := parseTime(raw)
		if err != nil {
			return err
		}
		dst.Set(reflect.ValueOf(t))
		return nil
	case uuidType:
		id, err := uuid.Parse(raw)
		if err != nil {
			return fmt.Errorf("expected a UUID")
		}
		dst.Set(reflect.ValueOf(id))
		return nil
	case decimalType, decimalPtrType:
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("expected a decimal number")
		}
		if dst.Type() == decimalPtrType {
			dst.Set(reflect.ValueOf(&d))
		} else {
			dst.Set(reflect.ValueOf(d))
		}
		return nil
	}

	switch dst.Kind() {
	case reflect.String:
		dst.SetString(raw)
	case reflect.Int:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("expected an integer")
		}
		dst.SetInt(int64(n))
	default:
		return fmt.Errorf("unsupported field type %s", dst.Type())
	}
	return nil
}

func parseTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("expected a date (YYYY-MM-DD) or RFC 3339 timestamp")
}

func validationErrors(row int, rec Record, err error) []*IngestionError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []*IngestionError{newIngestionError(row, "", ErrCodeIngestValidation, err.Error(), "")}
	}
	out := make([]*IngestionError, 0, len(verrs))
	for _, fe := range verrs {
		col := fe.Field()
		code, msg := describe(fe)
		out = append(out, newIngestionError(row, col, code, msg, rec[col]))
	}
	return out
}

func describe(fe validator.FieldError) (string, string) {
	switch fe.Tag() {
	case "required":
		return ErrCodeIngestRequiredField, fmt.Sprintf("field '%s' is required", fe.Field())
	case "ean":
		return ErrCodeIngestInvalidEAN, "EAN must be exactly 13 digits"
	case "max":
		return ErrCodeIngestInvalidLength, fmt.Sprintf("length must be at most %s", fe.Param())
	case "gt":
		return ErrCodeIngestInvalidRange, fmt.Sprintf("value must be greater than %s", fe.Param())
	case "gte":
		return ErrCodeIngestInvalidRange, fmt.Sprintf("value must be at least %s", fe.Param())
	case "nefield":
		return ErrCodeIngestConflict, "destination warehouse equals source warehouse"
	case "ean_or_asin":
		return ErrCodeIngestRequiredField, "one of 'ean' or 'asin' is required"
	case "ean_xor_asin":
		return ErrCodeIngestConflict, "only one of 'ean' or 'asin' may be set"
	}
	return ErrCodeIngestValidation, fmt.Sprintf("failed '%s' validation", fe.Tag())
}

// dedupe drops validation errors on fields that already failed to parse
func dedupe(errs []*IngestionError) RowErrors {
	failedParse := make(map[string]bool)
	for _, e := range errs {
		if e.Code == ErrCodeIngestInvalidType {
			failedParse[e.Field] = true
		}
	}
	out := make(RowErrors, 0, len(errs))
	for _, e := range errs {
		if e.Code != ErrCodeIngestInvalidType && failedParse[e.Field] {
			continue
		}
		out = append(out, e)
	}
	return out
}
