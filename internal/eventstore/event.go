package eventstore

import (
	"encoding/json"
	"time"
)

// Event is something that happened during a run. Implementations are plain
// structs whose JSON encoding is the stored payload.
type Event interface {
	RunID() string
	Type() string
}

// Record is an event as stored in the ledger.
type Record struct {
	Seq     int64
	RunID   string
	Type    string
	At      time.Time
	Payload json.RawMessage
}

// Decode unmarshals the payload into the typed event v.
func (r Record) Decode(v Event) error {
	return json.Unmarshal(r.Payload, v)
}
