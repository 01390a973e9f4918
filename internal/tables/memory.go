package tables

import (
	"context"
	"sync"
)

// Memory is an in-process transport. It backs tests and dry runs.
type Memory struct {
	mu     sync.RWMutex
	tables map[string][]Row

	failNext error
}

func NewMemory() *Memory {
	return &Memory{tables: make(map[string][]Row)}
}

// FailNext makes the next transport call fail with err.
func (m *Memory) FailNext(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = err
}

func (m *Memory) takeFailure() error {
	err := m.failNext
	m.failNext = nil
	return err
}

func (m *Memory) ReadRows(ctx context.Context, table string) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, Wrap("memory", "read", table, nil, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure(); err != nil {
		return nil, Wrap("memory", "read", table, nil, err)
	}

	rows := m.tables[table]
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Clone())
	}
	return out, nil
}

func (m *Memory) WriteRow(ctx context.Context, table string, key Key, row Row) error {
	if err := ctx.Err(); err != nil {
		return Wrap("memory", "write", table, key, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure(); err != nil {
		return Wrap("memory", "write", table, key, err)
	}

	for i, r := range m.tables[table] {
		if key.Matches(r) {
			m.tables[table][i] = row.Clone()
			return nil
		}
	}
	return ErrNoRow
}

func (m *Memory) AppendRow(ctx context.Context, table string, row Row) error {
	if err := ctx.Err(); err != nil {
		return Wrap("memory", "append", table, nil, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure(); err != nil {
		return Wrap("memory", "append", table, nil, err)
	}

	m.tables[table] = append(m.tables[table], row.Clone())
	return nil
}

func (m *Memory) Provision(_ context.Context, schemas []Schema) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var created []string
	for _, s := range schemas {
		if _, ok := m.tables[s.Name]; ok {
			continue
		}
		m.tables[s.Name] = nil
		created = append(created, s.Name)
	}
	return created, nil
}

// Len returns the number of rows stored in table.
func (m *Memory) Len(table string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tables[table])
}
