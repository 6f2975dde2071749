package storage

import "liquidityPool/internal/model"

// Journal defines a sink for transition records.
type Journal interface {
	PutTransitions(records []model.TransitionRecord) error
}

// Discard is a Journal that drops every record.
type Discard struct{}

func (Discard) PutTransitions([]model.TransitionRecord) error { return nil }
