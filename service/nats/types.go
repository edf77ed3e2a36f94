package nats

import (
	"strings"
	"time"

	"github.com/brojonat/txlens/service/parser"
)

// TransactionEvent is a classified transaction published to NATS on the
// subject "txns.{kind}".
type TransactionEvent struct {
	parser.Transaction

	// Observer is the account the transaction was classified for, if any.
	Observer string `json:"observer,omitempty"`

	PublishedAt time.Time `json:"published_at"`
}

// FromTransaction converts a canonical transaction into an event for publishing.
func FromTransaction(tx *parser.Transaction, observer string) *TransactionEvent {
	return &TransactionEvent{
		Transaction: *tx,
		Observer:    observer,
		PublishedAt: time.Now().UTC(),
	}
}

// Subject returns the subject the event is published on. Events without a
// kind go to the unknown subject.
func (e *TransactionEvent) Subject() string {
	kind := e.Type
	if kind == "" {
		kind = parser.KindUnknown
	}
	return SubjectPrefix + strings.ToLower(string(kind))
}
