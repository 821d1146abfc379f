package history

import (
	"fmt"

	"manualpilot/canvas/internal/canvas"
)

// Snapshot is a full capture of the surface, as produced by ToImage.
type Snapshot []byte

// Manager keeps the undo and redo stacks of one client. The last element of
// undo is always the state currently on the surface.
type Manager struct {
	surface canvas.Surface
	undo    []Snapshot
	redo    []Snapshot
}

func New(surface canvas.Surface) *Manager {
	return &Manager{surface: surface}
}

// Commit records the current surface as the newest state and drops any redo
// history.
func (m *Manager) Commit() error {
	b, err := m.surface.ToImage()
	if err != nil {
		return fmt.Errorf("snapshot surface: %w", err)
	}

	m.undo = append(m.undo, b)
	m.redo = nil
	return nil
}

// Undo steps back one state. The first committed state is never undone; in
// that case, or with nothing committed, it reports false and does nothing.
func (m *Manager) Undo() (bool, error) {
	if len(m.undo) <= 1 {
		return false, nil
	}

	top := m.undo[len(m.undo)-1]
	m.undo = m.undo[:len(m.undo)-1]
	m.redo = append(m.redo, top)

	if err := m.surface.FromImage(m.undo[len(m.undo)-1]); err != nil {
		return true, fmt.Errorf("restore snapshot: %w", err)
	}

	return true, nil
}

func (m *Manager) Redo() (bool, error) {
	if len(m.redo) == 0 {
		return false, nil
	}

	top := m.redo[len(m.redo)-1]
	m.redo = m.redo[:len(m.redo)-1]
	m.undo = append(m.undo, top)

	if err := m.surface.FromImage(top); err != nil {
		return true, fmt.Errorf("restore snapshot: %w", err)
	}

	return true, nil
}

// Restore repaints the current state, discarding anything drawn since the
// last commit.
func (m *Manager) Restore() error {
	if len(m.undo) == 0 {
		return nil
	}

	return m.surface.FromImage(m.undo[len(m.undo)-1])
}

// Current returns the newest committed snapshot, or nil before the first
// commit.
func (m *Manager) Current() Snapshot {
	if len(m.undo) == 0 {
		return nil
	}
	return m.undo[len(m.undo)-1]
}

func (m *Manager) Depth() (int, int) {
	return len(m.undo), len(m.redo)
}
