// Package notify delivers cycle summaries to outbound channels.
//
// The coordinator invokes a Sink only when a cycle produced at least one
// change; a no-change or all-failed cycle sends nothing. SendError exists
// for operational failures worth surfacing to an operator.
package notify

import (
	"context"
	"time"
)

// Page is one changed document in a cycle summary.
type Page struct {
	Slug       string `json:"slug"`
	SourceID   string `json:"source_id"`
	SourceName string `json:"source_name"`
	Summary    string `json:"summary"`
	Added      int    `json:"added"`
	Removed    int    `json:"removed"`
}

// Summary is what a change-bearing cycle reports outward.
type Summary struct {
	Date      time.Time `json:"date"`
	ReportURL string    `json:"report_url"`
	Pages     []Page    `json:"pages"`
	Failures  []string  `json:"failures,omitempty"`
}

// Sink is the delivery interface. Implementations post summaries to
// different backends (Telegram, webhook, stdout).
type Sink interface {
	Send(ctx context.Context, s Summary) error
	SendError(ctx context.Context, message string) error
	Close() error
}
