package ledger

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/straye-as/pipeline-api/internal/domain"
)

// Reasons a payments line is skipped
const (
	SkipNoSeparator   = "missing ':' separator"
	SkipEmptyKey      = "empty user key"
	SkipInvalidAmount = "amount is not a decimal"
	SkipNegative      = "amount is negative"
	SkipUnknownUser   = "user not found"
)

// SkippedLine is a payments line that contributed nothing
type SkippedLine struct {
	Line   int // 1-based
	Text   string
	Reason string
}

// ResolveFunc maps a user key (numeric id or username) to a user id
type ResolveFunc func(key string) (uint, bool)

// ParsePayments reads newline-delimited "key:amount" pairs. Lines that do not
// parse or do not resolve are reported in skipped and otherwise ignored. Blank
// lines are ignored silently. A later line for the same user wins.
func ParsePayments(text string, resolve ResolveFunc) (domain.AssignedPayments, []SkippedLine) {
	payments := domain.AssignedPayments{}
	var skipped []SkippedLine

	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		skip := func(reason string) {
			skipped = append(skipped, SkippedLine{Line: i + 1, Text: line, Reason: reason})
		}

		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			skip(SkipNoSeparator)
			continue
		}
		key := strings.TrimSpace(parts[0])
		if key == "" {
			skip(SkipEmptyKey)
			continue
		}
		amount, err := decimal.NewFromString(strings.TrimSpace(parts[1]))
		if err != nil {
			skip(SkipInvalidAmount)
			continue
		}
		if amount.IsNegative() {
			skip(SkipNegative)
			continue
		}
		userID, ok := resolve(key)
		if !ok {
			skip(SkipUnknownUser)
			continue
		}
		payments[domain.PaymentKey(userID)] = amount
	}
	return payments, skipped
}
