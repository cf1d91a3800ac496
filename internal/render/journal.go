package render

import (
	"github.com/locshare/locshare/internal/queue"
	"github.com/locshare/locshare/internal/roster"
	"github.com/locshare/locshare/pkg/core"
)

// OpKind identifies a recorded renderer operation.
type OpKind string

const (
	OpCreate OpKind = "create"
	OpUpdate OpKind = "update"
	OpRemove OpKind = "remove"
	OpCenter OpKind = "center"
)

// Op is one recorded renderer operation.
type Op struct {
	Kind       OpKind
	Identifier core.Identifier
	Pos        core.Position
	Zoom       int
}

type journalMarker struct {
	id core.Identifier
}

// Journal records renderer operations in a thread-safe queue instead of
// drawing anything. The view mode's console output and the monitor read
// from it.
type Journal struct {
	ops queue.Queue[Op]
}

func NewJournal() *Journal {
	return &Journal{}
}

func (j *Journal) CreateMarker(pos core.Position, info core.MarkerInfo) (roster.MarkerHandle, error) {
	j.ops.Push(Op{Kind: OpCreate, Identifier: info.Identifier, Pos: pos})
	return &journalMarker{id: info.Identifier}, nil
}

func (j *Journal) UpdateMarker(handle roster.MarkerHandle, pos core.Position, info core.MarkerInfo) error {
	m := handle.(*journalMarker)
	j.ops.Push(Op{Kind: OpUpdate, Identifier: m.id, Pos: pos})
	return nil
}

func (j *Journal) RemoveMarker(handle roster.MarkerHandle) error {
	m := handle.(*journalMarker)
	j.ops.Push(Op{Kind: OpRemove, Identifier: m.id})
	return nil
}

func (j *Journal) CenterView(pos core.Position, zoom int) error {
	j.ops.Push(Op{Kind: OpCenter, Pos: pos, Zoom: zoom})
	return nil
}

// Drain returns all recorded operations and clears the journal.
func (j *Journal) Drain() []Op {
	return j.ops.GetAndEmpty()
}

// Pending returns the number of recorded operations not yet drained.
func (j *Journal) Pending() int {
	return j.ops.Len()
}
