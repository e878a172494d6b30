package journal

import (
	"context"
	"time"
)

// Outcome is the terminal result of one order action request.
type Outcome string

const (
	OutcomeForwarded Outcome = "forwarded"
	OutcomeRejected  Outcome = "rejected"
	OutcomeFailed    Outcome = "failed"
	OutcomeDropped   Outcome = "dropped"
	OutcomeDiscarded Outcome = "discarded"
)

// Entry is one audit row. Prices and quantities are stored as strings to
// keep exact decimal representation.
type Entry struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	ClientID   string `gorm:"index"`
	Kind       string
	Instrument string
	Side       string
	Price      string
	Quantity   string
	Priority   int32
	Outcome    Outcome `gorm:"index"`
	OrderID    int64
	Detail     string
	CreatedAt  time.Time
}

// TableName keeps the table name stable across gorm naming strategies.
func (Entry) TableName() string { return "order_journal" }

// Recorder receives terminal request outcomes. Implementations must not
// block the caller's hot path beyond a local enqueue or a fast insert.
type Recorder interface {
	Record(ctx context.Context, entry Entry)
}

// Nop discards every entry. Used when no journal DSN is configured.
type Nop struct{}

// Record implements Recorder.
func (Nop) Record(context.Context, Entry) {}
