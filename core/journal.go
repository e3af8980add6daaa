package core

import "time"

// HopKind classifies a journal record.
type HopKind string

const (
	HopAsk     HopKind = "ask"
	HopAnswer  HopKind = "answer"
	HopRefusal HopKind = "refusal"
	HopTimeout HopKind = "timeout"
)

// HopRecord is one message transferred between two parties of the network.
// From is empty for messages issued by the boundary.
type HopRecord struct {
	ID      string    `json:"id"`
	QueryID string    `json:"query_id"`
	From    string    `json:"from,omitempty"`
	To      string    `json:"to"`
	Kind    HopKind   `json:"kind"`
	Vector  Vector    `json:"vector"`
	Reason  string    `json:"reason,omitempty"`
	At      time.Time `json:"at"`
}

// Journal records the messages exchanged while resolving queries.
type Journal interface {
	Append(rec HopRecord) error
	Records(queryID string) []HopRecord
	All() []HopRecord
	Reset()
}

// NoOpJournal discards every record.
type NoOpJournal struct{}

// Append implements Journal.
func (NoOpJournal) Append(HopRecord) error { return nil }

// Records implements Journal.
func (NoOpJournal) Records(string) []HopRecord { return nil }

// All implements Journal.
func (NoOpJournal) All() []HopRecord { return nil }

// Reset implements Journal.
func (NoOpJournal) Reset() {}
