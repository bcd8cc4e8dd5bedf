package assessment

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Skufu/neurorisk/internal/catalog"
)

const (
	RequiredMessage   = "This field is required."
	IncompleteMessage = "Please fill in all test fields to view the result."
	InvalidMessage    = "Please correct the highlighted fields."
)

// ValidationResult maps a field key to its error message. Valid fields have
// no entry.
type ValidationResult map[string]string

// RangeMessage is the error for a value that does not parse or falls outside
// the field's bounds.
func RangeMessage(f catalog.FieldSpec) string {
	return fmt.Sprintf("Enter a value between %s and %s", catalog.FormatBound(f.Min), catalog.FormatBound(f.Max))
}

// ValidateField returns the error for value, or "" when it is valid. An empty
// value is only an error when atSubmit is set.
func ValidateField(f catalog.FieldSpec, value string, atSubmit bool) string {
	if strings.TrimSpace(value) == "" {
		if atSubmit {
			return RequiredMessage
		}
		return ""
	}

	v, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(v) || v < f.Min || v > f.Max {
		return RangeMessage(f)
	}
	return ""
}

// LiveWarning is the soft hint shown while typing once the value passes the
// field's maximum. It never blocks submission on its own.
func LiveWarning(f catalog.FieldSpec, value string) string {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil || v <= f.Max {
		return ""
	}
	return fmt.Sprintf("Value must be %s to %s.", catalog.FormatBound(f.Min), catalog.FormatBound(f.Max))
}

// ValidateAll runs the submit-time check over every field of the form.
func ValidateAll(fields []catalog.FieldSpec, values map[string]string) (bool, ValidationResult) {
	result := ValidationResult{}
	for _, f := range fields {
		if msg := ValidateField(f, values[f.Key], true); msg != "" {
			result[f.Key] = msg
		}
	}
	return len(result) == 0, result
}

// Prepare validates values for test and converts them to numbers. The
// returned error is a *ValidationError.
func Prepare(test *catalog.Test, values map[string]string) (map[string]float64, error) {
	ok, result := ValidateAll(test.Fields, values)
	if !ok {
		return nil, newValidationError(result)
	}

	out := make(map[string]float64, len(test.Fields))
	for _, f := range test.Fields {
		// Validation already proved every value parses.
		v, _ := strconv.ParseFloat(values[f.Key], 64)
		out[f.Key] = v
	}
	return out, nil
}
