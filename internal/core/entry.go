package core

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// DefaultLocation is used for entries stored without a location.
const DefaultLocation = "Default"

const maxNameLength = 100

// Entry is one day's cash and credit record for a location.
//
// DocumentID, DayTotal, RunningAmount and MonthlyAverage are derived. They are
// recomputed from the authoritative fields and never trusted as input.
type Entry struct {
	DocumentID   string
	Date         time.Time
	CashAmount   decimal.Decimal
	Credits      []decimal.Decimal
	Location     string
	EmployeeName string

	DayTotal       decimal.Decimal
	RunningAmount  decimal.Decimal
	MonthlyAverage decimal.Decimal
}

// Clone returns a copy that shares no slices with e.
func (e Entry) Clone() Entry {
	out := e
	if e.Credits != nil {
		out.Credits = append([]decimal.Decimal(nil), e.Credits...)
	}
	return out
}

// WithDefaults fills a missing location and a nil credit list.
func (e Entry) WithDefaults() Entry {
	out := e.Clone()
	out.Location = strings.TrimSpace(out.Location)
	if out.Location == "" {
		out.Location = DefaultLocation
	}
	if out.Credits == nil {
		out.Credits = []decimal.Decimal{}
	}
	return out
}

// MonthKey returns the "YYYY-MM" key of the entry's month.
func (e Entry) MonthKey() string {
	return MonthKey(e.Date.Year(), e.Date.Month())
}

// BucketKey returns the "{location}-{YYYY}-{MM}" grouping key.
func (e Entry) BucketKey() string {
	loc := e.Location
	if loc == "" {
		loc = DefaultLocation
	}
	return BucketKey(loc, e.Date.Year(), e.Date.Month())
}

// Validate checks the authoritative fields.
func (e Entry) Validate() error {
	if e.Date.IsZero() {
		return invalid("date", ErrInvalidDate)
	}
	if e.CashAmount.IsNegative() {
		return invalid("cashamount", ErrNegativeAmount)
	}
	for _, c := range e.Credits {
		if c.IsNegative() {
			return invalid("credits", ErrNegativeAmount)
		}
	}
	if strings.TrimSpace(e.Location) == "" {
		return invalid("location", ErrEmptyLocation)
	}
	if utf8.RuneCountInString(e.EmployeeName) > maxNameLength {
		return invalid("employeeName", ErrNameTooLong)
	}
	return nil
}

// EntryInput is the raw, user-typed form of an entry.
type EntryInput struct {
	Date         string
	CashAmount   string
	Credits      []string
	Location     string
	EmployeeName string
}

// ParseEntryInput converts form fields into a validated Entry. Blank amounts
// are zero; a blank location becomes DefaultLocation.
func ParseEntryInput(in EntryInput) (Entry, error) {
	day, err := ParseDay(in.Date)
	if err != nil {
		return Entry{}, invalid("date", err)
	}
	cash, err := ParseAmount(in.CashAmount)
	if err != nil {
		return Entry{}, invalid("cashamount", err)
	}
	credits := make([]decimal.Decimal, len(in.Credits))
	for i, raw := range in.Credits {
		c, err := ParseAmount(raw)
		if err != nil {
			return Entry{}, invalid("credits", err)
		}
		credits[i] = c
	}
	e := Entry{
		Date:         day,
		CashAmount:   cash,
		Credits:      credits,
		Location:     in.Location,
		EmployeeName: strings.TrimSpace(in.EmployeeName),
	}.WithDefaults()
	if err := e.Validate(); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// Location is a named place whose entries are tracked separately.
type Location struct {
	ID          string
	Name        string
	DisplayName string
	CreatedAt   time.Time
}

// Validate checks that the location has a usable name.
func (l Location) Validate() error {
	if strings.TrimSpace(l.Name) == "" {
		return invalid("name", ErrEmptyLocation)
	}
	if utf8.RuneCountInString(l.Name) > maxNameLength {
		return invalid("name", ErrNameTooLong)
	}
	return nil
}

// Column describes one credit column position.
type Column struct {
	ID          string // col_{i}
	Name        string // c{i+1}
	DisplayName string // Credit {i+1}
}

// Stats are the per-bucket aggregates.
type Stats struct {
	Count          int
	RunningAmount  decimal.Decimal
	MonthlyAverage decimal.Decimal
}

// MonthlyBucket groups the entries of one location in one calendar month.
type MonthlyBucket struct {
	Key       string
	Location  string
	Year      int
	Month     time.Month
	MonthName string
	Entries   []Entry // ascending by date
	Stats     Stats
}

// MonthKey returns the "YYYY-MM" key of the bucket.
func (b MonthlyBucket) MonthKey() string {
	return MonthKey(b.Year, b.Month)
}

// DisplayEntries returns the entries newest first.
func (b MonthlyBucket) DisplayEntries() []Entry {
	out := make([]Entry, len(b.Entries))
	for i, e := range b.Entries {
		out[len(b.Entries)-1-i] = e.Clone()
	}
	return out
}

var unsafeKeyChars = regexp.MustCompile(`[^a-z0-9_]+`)

// SanitizeKey lowercases s and replaces runs of characters outside [a-z0-9_]
// with a single underscore, for use as a storage key.
func SanitizeKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = unsafeKeyChars.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}
