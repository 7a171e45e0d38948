package domain

import (
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// InputError reports raw form values that could not be coerced into entity fields.
// Details maps field name to a short reason.
type InputError struct {
	Details map[string]string
}

func (e *InputError) Error() string {
	if e == nil || len(e.Details) == 0 {
		return "invalid input"
	}
	fields := make([]string, 0, len(e.Details))
	for f := range e.Details {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+" "+e.Details[f])
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

type inputErrors map[string]string

func (ie inputErrors) add(field, reason string) { ie[field] = reason }

func (ie inputErrors) err() error {
	if len(ie) == 0 {
		return nil
	}
	return &InputError{Details: map[string]string(ie)}
}

func parsePrice(raw string, errs inputErrors) decimal.Decimal {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		errs.add("price", "must be a number")
		return decimal.Zero
	}
	if d.IsNegative() {
		errs.add("price", "must be non-negative")
	}
	return d
}

func parseStock(raw string, errs inputErrors) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		errs.add("stock", "must be a whole number")
		return 0
	}
	if n < 0 {
		errs.add("stock", "must be non-negative")
	}
	return n
}

func optionalText(raw string) *string {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil
	}
	return &v
}

func optionalServerID(raw string) *ServerID {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil
	}
	id := ServerID(v)
	return &id
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalServerIDPtr(a, b *ServerID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
