package state

import (
	"io"

	"github.com/ShayCichocki/sillysearch/pkg/models"
)

// ThreadStore handles thread-related persistence operations.
type ThreadStore interface {
	CreateThread(title string) (*Thread, error)
	GetThread(id string) (*Thread, error)
	ListThreads(limit int) ([]Thread, error)
	SetStatus(id string, status ThreadStatus) error
	AppendMessages(id string, msgs []models.Message) error
	Messages(id string) ([]models.Message, error)
}

// ReportStore handles persistence of finished runs.
type ReportStore interface {
	SaveReport(id string, r Report) error
	GetReport(id string) (*Report, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// StateStore composes everything the CLI needs from a state backend.
type StateStore interface {
	io.Closer
	Migrator
	ThreadStore
	ReportStore
}

// Compile-time verification that DB implements all interfaces.
var (
	_ StateStore  = (*DB)(nil)
	_ Migrator    = (*DB)(nil)
	_ ThreadStore = (*DB)(nil)
	_ ReportStore = (*DB)(nil)
)
