// Package store defines the document store the account log is persisted in
// and the translation between stored shapes and the entry model.
//
// Entries live in monthly documents keyed "YYYY-MM", nested by location.
// Locations live in their own collection. Every backend pushes a full
// snapshot to subscribers after each committed change.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a document, entry or location does not exist.
var ErrNotFound = errors.New("not found")

// TransportError wraps a failed read or write against the backing store.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Transport wraps err as a *TransportError unless it already is one.
func Transport(op string, err error) error {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	return &TransportError{Op: op, Err: err}
}

// RawEntry is a stored entry in its wire shape. Values may be numbers,
// strings, timestamps or nested lists depending on who wrote them.
type RawEntry map[string]any

// RawLocation is a stored location record.
type RawLocation map[string]any

// Wire field names.
const (
	FieldDate           = "datelog"
	FieldCash           = "cashamount"
	FieldCredits        = "credits"
	FieldLocation       = "location"
	FieldEmployee       = "employeeName"
	FieldDayTotal       = "daytotal"
	FieldRunningAmount  = "runningamount"
	FieldMonthlyAverage = "monthlyaverage"
	FieldDocumentID     = "documentId"

	FieldLocationID          = "id"
	FieldLocationName        = "name"
	FieldLocationDisplayName = "displayName"
	FieldLocationCreatedAt   = "createdAt"
)

// MonthlyDocument holds every entry of one calendar month, keyed by location.
type MonthlyDocument struct {
	ID          string
	Year        int
	Month       time.Month
	Entries     map[string][]RawEntry
	LastUpdated time.Time
}

// EntrySnapshot is the full state of the monthly documents at Version.
type EntrySnapshot struct {
	Version   uint64
	Documents []MonthlyDocument
}

// LocationSnapshot is the full state of the locations collection at Version.
type LocationSnapshot struct {
	Version   uint64
	Locations []RawLocation
}

// Unsubscribe stops a subscription. Calling it more than once is harmless.
type Unsubscribe func()

// Subscriber pushes snapshots. The current snapshot is delivered once on
// subscribe and again after every committed change.
type Subscriber interface {
	SubscribeEntries(ctx context.Context, fn func(EntrySnapshot)) (Unsubscribe, error)
	SubscribeLocations(ctx context.Context, fn func(LocationSnapshot)) (Unsubscribe, error)
}

// Writer mutates the store. Each call is one whole-document write; there is
// no concurrency token, so concurrent writers to the same month race and the
// last one wins.
type Writer interface {
	// WriteEntry inserts or replaces the entry identified by its documentId
	// inside monthKey/locationKey. A missing documentId is assigned and returned.
	WriteEntry(ctx context.Context, locationKey, monthKey string, entry RawEntry) (string, error)
	DeleteEntry(ctx context.Context, locationKey, monthKey, entryID string) error
	WriteLocation(ctx context.Context, loc RawLocation) (string, error)
	DeleteLocation(ctx context.Context, id string) error
}

// DocumentStore reads and replaces whole monthly documents. Only the column
// reconciler uses it.
type DocumentStore interface {
	ReadAllMonthlyDocuments(ctx context.Context) ([]MonthlyDocument, error)
	PutMonthlyDocument(ctx context.Context, doc MonthlyDocument) error
}

// Store is the full backend contract.
type Store interface {
	Subscriber
	Writer
	DocumentStore
	Close() error
}

// EntryRef locates a stored entry.
type EntryRef struct {
	MonthKey    string
	LocationKey string
	Index       int
}

// FindEntry scans all monthly documents for the entry with id.
func FindEntry(ctx context.Context, s DocumentStore, id string) (EntryRef, RawEntry, error) {
	docs, err := s.ReadAllMonthlyDocuments(ctx)
	if err != nil {
		return EntryRef{}, nil, Transport("find entry", err)
	}
	for _, doc := range docs {
		for loc, list := range doc.Entries {
			for i, raw := range list {
				if EntryID(raw) == id {
					return EntryRef{MonthKey: doc.ID, LocationKey: loc, Index: i}, raw.Clone(), nil
				}
			}
		}
	}
	return EntryRef{}, nil, &TransportError{Op: "find entry", Err: ErrNotFound}
}
