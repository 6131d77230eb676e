package ledger

import (
	"fmt"
	"regexp"
	"strconv"

	"acctlog/internal/core"

	"github.com/shopspring/decimal"
)

var columnNamePattern = regexp.MustCompile(`^c[0-9]+$`)

// ColumnCount is the widest credit list among entries, at least 1.
func ColumnCount(entries []core.Entry) int {
	n := 1
	for _, e := range entries {
		if len(e.Credits) > n {
			n = len(e.Credits)
		}
	}
	return n
}

// NewColumn describes the credit column at index i.
func NewColumn(i int) core.Column {
	return core.Column{
		ID:          fmt.Sprintf("col_%d", i),
		Name:        fmt.Sprintf("c%d", i+1),
		DisplayName: fmt.Sprintf("Credit %d", i+1),
	}
}

// Columns derives the credit column view from entries.
func Columns(entries []core.Entry) []core.Column {
	n := ColumnCount(entries)
	out := make([]core.Column, n)
	for i := range out {
		out[i] = NewColumn(i)
	}
	return out
}

// NormalizeCredits pads credits with zeros or truncates them to exactly n
// values. The input is not modified.
func NormalizeCredits(credits []decimal.Decimal, n int) []decimal.Decimal {
	if n < 0 {
		n = 0
	}
	out := make([]decimal.Decimal, n)
	for i := range out {
		if i < len(credits) {
			out[i] = credits[i]
		} else {
			out[i] = decimal.Zero
		}
	}
	return out
}

// ValidateColumnName checks the c{n} column naming rule.
func ValidateColumnName(name string) error {
	if !columnNamePattern.MatchString(name) {
		return &core.ValidationError{Field: "column", Err: core.ErrInvalidColumnName}
	}
	return nil
}

// ColumnIndex returns the zero-based index named by a column name such as "c3".
func ColumnIndex(name string) (int, error) {
	if err := ValidateColumnName(name); err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(name[1:])
	if err != nil || n < 1 {
		return 0, &core.ValidationError{Field: "column", Err: core.ErrInvalidColumnName}
	}
	return n - 1, nil
}
