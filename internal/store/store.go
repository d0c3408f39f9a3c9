// Package store provides access to the target Bugzilla schema.
//
// The concrete implementation lives in postgres.go. This file holds
// the interface and value types referenced by both the Postgres
// implementation and its consumers (the importer, tests).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/bugzilla-contrib/jbtools/internal/types"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrIntegrity is returned when an insert violates a schema
// constraint. The importer reports it and aborts that bug's
// transaction rather than skipping silently: at insert time a
// violation may hide a genuine conflict, unlike the expected
// pre-insert existence check.
var ErrIntegrity = errors.New("integrity violation")

// ErrAmbiguousComponent is returned when no component was configured
// and the product has more than one to choose from.
var ErrAmbiguousComponent = errors.New("cannot pick default component")

// KeywordDef is one row of the keyword definitions lookup table.
type KeywordDef struct {
	ID   int64
	Name string
}

// Comment is one long-description row, already resolved to a numeric
// user id and ordered by the importer.
type Comment struct {
	WhoID int64
	At    time.Time
	Text  string
}

// AttachmentRecord is one attachment plus its payload, resolved to a
// numeric submitter id.
type AttachmentRecord struct {
	Filename    string
	MimeType    string
	Data        []byte
	CreatedAt   time.Time
	SubmitterID int64
	IsPatch     bool
}

// BugRecord is a fully assembled bug ready for the insert sequence:
// every identity is resolved, notes are in ascending timestamp order,
// and ignored attachments have already been dropped.
type BugRecord struct {
	ID            int
	AssigneeID    int64
	Status        types.Status
	Resolution    types.Resolution
	ReporterID    int64
	CreatedAt     time.Time
	LastChange    time.Time
	ShortDesc     string
	Description   string
	Version       string
	ProductID     int64
	ComponentID   int64
	Everconfirmed bool
	Private       bool
	GroupID       int64
	KeywordIDs    []int64
	Comments      []Comment
	Attachments   []AttachmentRecord
}

// Store is the interface satisfied by *PG. The importer depends on it
// rather than on the concrete type so the in-memory implementation can
// stand in during tests.
type Store interface {
	// Identity
	UserIDByEmail(ctx context.Context, addr string) (int64, error)
	CreateUser(ctx context.Context, addr, name string) (int64, error)

	// Startup lookups, resolved once per batch run.
	ProductID(ctx context.Context, name string) (int64, error)
	ComponentID(ctx context.Context, productID int64, name string) (int64, error)
	GroupID(ctx context.Context, name string) (int64, error)
	KeywordDefs(ctx context.Context) ([]KeywordDef, error)
	VersionExists(ctx context.Context, productID int64, value string) (bool, error)

	// Import
	BugExists(ctx context.Context, number int) (bool, error)
	InsertBug(ctx context.Context, bug *BugRecord) error
	SyncBugSequence(ctx context.Context) error

	Close()
}
