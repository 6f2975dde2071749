package model

import (
	"bytes"
	"encoding/json"
)

// OperationRecord is one requested pool operation as read from a JSONL input.
// Amounts are decimal strings so the full uint64 range survives any JSON tool.
// SlackBps derives swap bounds from the observed reserves when the explicit
// bounds are omitted.
type OperationRecord struct {
	Kind     string `json:"kind"`
	Caller   string `json:"caller"`
	Amount   string `json:"amount"`
	Limit    string `json:"limit,omitempty"`
	InMin    string `json:"in_min,omitempty"`
	InMax    string `json:"in_max,omitempty"`
	OutMin   string `json:"out_min,omitempty"`
	OutMax   string `json:"out_max,omitempty"`
	SlackBps uint64 `json:"slack_bps,omitempty"`
}

// UnmarshalJSON rejects unknown fields, so a misspelled bound or slack is an
// error instead of a silently unbounded operation.
func (or *OperationRecord) UnmarshalJSON(data []byte) error {
	type plain OperationRecord
	var p plain
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return err
	}
	*or = OperationRecord(p)
	return nil
}

// HasExplicitBounds reports whether any swap reserve bound was supplied.
func (or OperationRecord) HasExplicitBounds() bool {
	return or.InMin != "" || or.InMax != "" || or.OutMin != "" || or.OutMax != ""
}
