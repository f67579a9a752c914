package domain

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// AssignedPayments maps a user id (as a string key) to an individual payout
// amount on a project. Entries that cannot be decoded are dropped on read.
type AssignedPayments map[string]decimal.Decimal

// PaymentKey formats a user id as an AssignedPayments key
func PaymentKey(userID uint) string {
	return strconv.FormatUint(uint64(userID), 10)
}

// Amount returns the entry for userID, or zero when absent
func (p AssignedPayments) Amount(userID uint) decimal.Decimal {
	if amount, ok := p[PaymentKey(userID)]; ok {
		return amount
	}
	return decimal.Zero
}

// Value stores the map as a JSON object. A nil map is stored as NULL.
func (p AssignedPayments) Value() (driver.Value, error) {
	if p == nil {
		return nil, nil
	}
	b, err := json.Marshal(map[string]decimal.Decimal(p))
	if err != nil {
		return nil, fmt.Errorf("failed to encode assigned payments: %w", err)
	}
	return string(b), nil
}

// Scan decodes a JSON object column
func (p *AssignedPayments) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*p = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into AssignedPayments", value)
	}
	*p = DecodeAssignedPayments(raw)
	return nil
}

// UnmarshalJSON applies the same per-entry tolerance as Scan
func (p *AssignedPayments) UnmarshalJSON(data []byte) error {
	*p = DecodeAssignedPayments(data)
	return nil
}

// DecodeAssignedPayments parses a JSON object of user id to amount. Amounts
// may be JSON numbers or numeric strings; anything else is skipped. A payload
// that is not an object at all decodes to nil.
func DecodeAssignedPayments(data []byte) AssignedPayments {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	var entries map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &entries); err != nil {
		return nil
	}

	out := make(AssignedPayments, len(entries))
	for key, rawAmount := range entries {
		if bytes.Equal(bytes.TrimSpace(rawAmount), []byte("null")) {
			continue
		}
		var amount decimal.Decimal
		if err := amount.UnmarshalJSON(rawAmount); err != nil {
			continue
		}
		out[key] = amount
	}
	return out
}
