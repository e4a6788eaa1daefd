package workflow

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"workflowbridge/internal/apperr"
	"workflowbridge/internal/model"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// ValidateFormData checks submitted values against the template's fields.
// Keys the template does not declare are kept untouched.
func ValidateFormData(fields []model.FormField, data map[string]any) error {
	for _, f := range fields {
		value, present := data[f.Name]
		if !present || isBlank(value) {
			if f.Required {
				return apperr.Validation("field %q is required", label(f))
			}
			continue
		}

		switch f.Type {
		case model.FieldNumber:
			if _, err := toDecimal(value); err != nil {
				return apperr.Validation("field %q must be a number", label(f))
			}
		case model.FieldDate:
			s, ok := value.(string)
			if !ok {
				return apperr.Validation("field %q must be a date", label(f))
			}
			if _, err := time.Parse(time.DateOnly, s); err != nil {
				return apperr.Validation("field %q must be a date in YYYY-MM-DD format", label(f))
			}
		case model.FieldSelect:
			s, ok := value.(string)
			if !ok || (len(f.Options) > 0 && !lo.Contains(f.Options, s)) {
				return apperr.Validation("field %q must be one of: %s", label(f), strings.Join(f.Options, ", "))
			}
		}
	}
	return nil
}

func label(f model.FormField) string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	}
	return false
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch t := v.(type) {
	case float64:
		return decimal.NewFromFloat(t), nil
	case int:
		return decimal.NewFromInt(int64(t)), nil
	case int64:
		return decimal.NewFromInt(t), nil
	case json.Number:
		return decimal.NewFromString(t.String())
	case string:
		return decimal.NewFromString(strings.TrimSpace(t))
	}
	return decimal.Decimal{}, fmt.Errorf("unsupported number type %T", v)
}
