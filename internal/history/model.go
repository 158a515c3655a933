// Package history persists a rolling log of evented state-variable
// transitions to a local SQLite database (goose migrations + squirrel
// query building over database/sql), so an operator can reconstruct what a
// flaky control point asked for after the fact.
package history

import "time"

// Event is one recorded transition: a state-variable batch that changed,
// or a SOAP action that was invoked, whichever the caller chooses to log.
type Event struct {
	ID        int64     `db:"id"`
	Service   string    `db:"service"`
	Kind      string    `db:"kind"` // "action" or "state-change"
	Name      string    `db:"name"`
	Detail    string    `db:"detail"` // JSON-encoded key/value payload
	CreatedAt time.Time `db:"created_at"`
}
