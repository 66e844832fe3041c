package app

import (
	"context"

	"therapy_notes_generator/internal/domain/catalog"
)

// RotationSession carries the selections of one generation run. The first selection of a scope
// continues from persisted history; later selections in the same run continue from the previous
// one, because the usage records of this run are written only when its jobs execute.
// A session is not safe for concurrent use.
type RotationSession struct {
	engine *RotationEngine
	last   map[string]cursor
}

func (e *RotationEngine) NewSession() *RotationSession {
	return &RotationSession{engine: e, last: make(map[string]cursor)}
}

// Select returns the next selection of scope within the run.
func (s *RotationSession) Select(ctx context.Context, scope catalog.Scope) Selection {
	var prev *cursor
	if c, ok := s.last[scope.Key()]; ok {
		prev = &c
	}

	sel := s.engine.selectWith(ctx, scope, prev)
	if sel.Unit != nil {
		s.last[scope.Key()] = cursor{subactivityID: sel.Unit.SubactivityID, unitID: sel.Unit.ID}
	}
	return sel
}
