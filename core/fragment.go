package core

import "time"

// LogFragment is one reported chunk of a script as observed by a logging or
// telemetry channel. Fragments are immutable once observed; format-specific
// adapters produce them and only the reassembler consumes them.
type LogFragment struct {
	ScriptID       string    `json:"script_id"`
	SequenceNumber int       `json:"sequence_number"`
	ChunkTotal     int       `json:"chunk_total"`
	Payload        string    `json:"payload"`
	Timestamp      time.Time `json:"timestamp"`
	Level          string    `json:"level"`
	Host           string    `json:"host,omitempty"`
	Instance       string    `json:"instance,omitempty"`
}

// ReassembledScript is the canonical script text stitched together from the
// fragments sharing a script ID, plus completeness metadata. It is created
// once per distinct script ID per reassembly run and never mutated afterwards.
type ReassembledScript struct {
	ScriptID           string    `json:"script_id"`
	Text               string    `json:"text"`
	Hash               string    `json:"hash"`
	ChunkObservedCount int       `json:"chunk_observed_count"`
	ChunkTotalDeclared int       `json:"chunk_total_declared"`
	Reassembled        bool      `json:"reassembled"`
	FirstTimestamp     time.Time `json:"first_timestamp"`
	Level              string    `json:"level"`
	Host               string    `json:"host,omitempty"`
	Instance           string    `json:"instance,omitempty"`
}
