package ledger

import (
	"time"

	"acctlog/internal/core"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func credits(vals ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(vals))
	for i, v := range vals {
		out[i] = d(v)
	}
	return out
}

func entry(loc string, day time.Time, cash string, cr ...string) core.Entry {
	return core.Entry{Date: day, CashAmount: d(cash), Credits: credits(cr...), Location: loc}
}

func sep(day int) time.Time { return core.NewDay(2025, time.September, day) }
