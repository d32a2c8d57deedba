// Package memstore provides an in-memory job.RunStore (for testing/dev).
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/hybridhq/reminder-engine/job"
)

type Memory struct {
	mu       sync.RWMutex
	runs     map[string]job.RunRecord
	outcomes map[string][]job.OutcomeRecord
	order    []string // insertion order, newest appended last
}

func NewMemory() *Memory {
	return &Memory{
		runs:     make(map[string]job.RunRecord),
		outcomes: make(map[string][]job.OutcomeRecord),
	}
}

func (m *Memory) SaveRun(_ context.Context, run job.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[run.ID]; !ok {
		m.order = append(m.order, run.ID)
	}
	m.runs[run.ID] = run
	return nil
}

func (m *Memory) CompleteRun(_ context.Context, run job.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[run.ID]; !ok {
		m.order = append(m.order, run.ID)
	}
	m.runs[run.ID] = run
	return nil
}

func (m *Memory) SaveOutcomes(_ context.Context, runID string, outcomes []job.OutcomeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[runID] = append(m.outcomes[runID], outcomes...)
	return nil
}

func (m *Memory) ListRuns(_ context.Context, limit int) ([]job.RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	var runs []job.RunRecord
	for i := len(m.order) - 1; i >= 0 && len(runs) < limit; i-- {
		runs = append(runs, m.runs[m.order[i]])
	}
	return runs, nil
}

func (m *Memory) GetRun(_ context.Context, id string) (*job.RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run, ok := m.runs[id]
	if !ok {
		return nil, nil
	}
	return &run, nil
}

func (m *Memory) ListOutcomes(_ context.Context, runID string) ([]job.OutcomeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]job.OutcomeRecord, len(m.outcomes[runID]))
	copy(result, m.outcomes[runID])
	sort.Slice(result, func(i, j int) bool { return result[i].UserID < result[j].UserID })
	return result, nil
}
