package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Known fraud flag tokens
const (
	FraudFlagSelfReferral = "self_referral"
)

// FraudFlags is a set of abuse tokens stored as a JSON array column.
type FraudFlags []string

// Has reports whether token is already present
func (f FraudFlags) Has(token string) bool {
	for _, t := range f {
		if t == token {
			return true
		}
	}
	return false
}

// With returns the set with token appended, keeping tokens unique
func (f FraudFlags) With(token string) FraudFlags {
	if token == "" || f.Has(token) {
		return f
	}
	out := make(FraudFlags, 0, len(f)+1)
	out = append(out, f...)
	return append(out, token)
}

// Value implements driver.Valuer. An empty set is stored as NULL.
func (f FraudFlags) Value() (driver.Value, error) {
	if len(f) == 0 {
		return nil, nil
	}
	b, err := json.Marshal([]string(f))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (f *FraudFlags) Scan(value interface{}) error {
	if value == nil {
		*f = nil
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported fraud flags type %T", value)
	}

	if len(raw) == 0 {
		*f = nil
		return nil
	}

	var tokens []string
	if err := json.Unmarshal(raw, &tokens); err != nil {
		return fmt.Errorf("failed to decode fraud flags: %w", err)
	}
	if len(tokens) == 0 {
		*f = nil
		return nil
	}
	*f = tokens
	return nil
}
