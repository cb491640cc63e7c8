package backend

import (
	"context"

	"fintrack/internal/core"
	"fintrack/internal/ports"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// EventConsumer delivers ledger events to handler until ctx is cancelled.
type EventConsumer interface {
	Consume(ctx context.Context, handler func(context.Context, core.Event) error) error
}

// BackendResult holds the storage and event plumbing for one process.
// Consumer is nil when no message broker is configured.
type BackendResult struct {
	Store     ports.Store
	Publisher ports.Publisher
	Consumer  EventConsumer
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Event bus, optional for every backend
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
