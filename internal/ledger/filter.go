package ledger

import (
	"strings"
	"time"

	"acctlog/internal/core"

	"github.com/shopspring/decimal"
)

// TypeFlags excludes entries that carry an amount of a disabled kind.
// An entry with both cash and credit is dropped if either flag is false.
type TypeFlags struct {
	Cash   bool
	Credit bool
}

// Spec is a set of independent entry predicates. Zero values mean no
// constraint.
type Spec struct {
	StartDate time.Time
	EndDate   time.Time
	MinAmount *decimal.Decimal
	MaxAmount *decimal.Decimal
	Type      *TypeFlags
	Location  string
}

// IsZero reports whether the spec constrains nothing.
func (s Spec) IsZero() bool {
	return s.StartDate.IsZero() && s.EndDate.IsZero() &&
		s.MinAmount == nil && s.MaxAmount == nil &&
		(s.Type == nil || (s.Type.Cash && s.Type.Credit)) &&
		strings.TrimSpace(s.Location) == ""
}

// Key returns a stable textual form of s. Specs that match the same
// entries may still have different keys.
func (s Spec) Key() string {
	if s.IsZero() {
		return ""
	}
	var b strings.Builder
	day := func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format(time.DateOnly)
	}
	amount := func(d *decimal.Decimal) string {
		if d == nil {
			return ""
		}
		return d.String()
	}
	b.WriteString(day(s.StartDate))
	b.WriteByte('|')
	b.WriteString(day(s.EndDate))
	b.WriteByte('|')
	b.WriteString(amount(s.MinAmount))
	b.WriteByte('|')
	b.WriteString(amount(s.MaxAmount))
	b.WriteByte('|')
	if s.Type != nil {
		if s.Type.Cash {
			b.WriteByte('c')
		}
		if s.Type.Credit {
			b.WriteByte('r')
		}
		b.WriteByte('t')
	}
	b.WriteByte('|')
	b.WriteString(strings.TrimSpace(s.Location))
	return b.String()
}

// Match reports whether e satisfies every predicate of s.
func (s Spec) Match(e core.Entry) bool {
	if !s.StartDate.IsZero() && core.CompareDay(e.Date, s.StartDate) < 0 {
		return false
	}
	if !s.EndDate.IsZero() && core.CompareDay(e.Date, s.EndDate) > 0 {
		return false
	}
	if s.MinAmount != nil || s.MaxAmount != nil {
		total := DayTotal(e.CashAmount, e.Credits)
		if s.MinAmount != nil && total.LessThan(*s.MinAmount) {
			return false
		}
		if s.MaxAmount != nil && total.GreaterThan(*s.MaxAmount) {
			return false
		}
	}
	if s.Type != nil {
		if !s.Type.Cash && e.CashAmount.IsPositive() {
			return false
		}
		if !s.Type.Credit && hasCredit(e.Credits) {
			return false
		}
	}
	if loc := strings.TrimSpace(s.Location); loc != "" && effectiveLocation(e) != loc {
		return false
	}
	return true
}

func hasCredit(credits []decimal.Decimal) bool {
	for _, c := range credits {
		if c.IsPositive() {
			return true
		}
	}
	return false
}

func effectiveLocation(e core.Entry) string {
	if loc := strings.TrimSpace(e.Location); loc != "" {
		return loc
	}
	return core.DefaultLocation
}

// Apply returns copies of the entries matching s, in input order.
func Apply(entries []core.Entry, s Spec) []core.Entry {
	out := make([]core.Entry, 0, len(entries))
	for _, e := range entries {
		if s.Match(e) {
			out = append(out, e.Clone())
		}
	}
	return out
}

// FilterBuckets applies s inside each bucket. Entries stay in the bucket they
// were grouped into; buckets left empty are dropped and stats are recomputed
// over what remains.
func FilterBuckets(buckets []core.MonthlyBucket, s Spec) []core.MonthlyBucket {
	out := make([]core.MonthlyBucket, 0, len(buckets))
	for _, b := range buckets {
		kept := Apply(b.Entries, s)
		if len(kept) == 0 {
			continue
		}
		nb := b
		nb.Entries = Recompute(kept)
		nb.Stats = MonthlyStats(nb.Entries)
		out = append(out, nb)
	}
	return out
}

// Params is the textual form of a Spec as typed into a filter form.
type Params struct {
	StartDate string
	EndDate   string
	MinAmount string
	MaxAmount string
	Cash      *bool
	Credit    *bool
	Location  string
}

// ParseParams validates p and converts it into a Spec. Blank fields are
// unconstrained.
func ParseParams(p Params) (Spec, error) {
	var s Spec
	var err error
	if strings.TrimSpace(p.StartDate) != "" {
		if s.StartDate, err = core.ParseDay(p.StartDate); err != nil {
			return Spec{}, &core.ValidationError{Field: "startDate", Err: err}
		}
	}
	if strings.TrimSpace(p.EndDate) != "" {
		if s.EndDate, err = core.ParseDay(p.EndDate); err != nil {
			return Spec{}, &core.ValidationError{Field: "endDate", Err: err}
		}
	}
	if s.MinAmount, err = parseBound(p.MinAmount); err != nil {
		return Spec{}, &core.ValidationError{Field: "minAmount", Err: err}
	}
	if s.MaxAmount, err = parseBound(p.MaxAmount); err != nil {
		return Spec{}, &core.ValidationError{Field: "maxAmount", Err: err}
	}
	if p.Cash != nil || p.Credit != nil {
		flags := TypeFlags{Cash: true, Credit: true}
		if p.Cash != nil {
			flags.Cash = *p.Cash
		}
		if p.Credit != nil {
			flags.Credit = *p.Credit
		}
		s.Type = &flags
	}
	s.Location = strings.TrimSpace(p.Location)
	return s, nil
}

func parseBound(raw string) (*decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	v, err := core.ParseAmount(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
