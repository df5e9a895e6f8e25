package jobs

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"fastp-batch/internal/domain"
)

// ErrJobAlreadyRegistered is returned when an ID is registered twice.
var ErrJobAlreadyRegistered = errors.New("job already registered")

// ErrUnknownJob is returned for IDs the manager has never seen.
var ErrUnknownJob = errors.New("unknown job")

// Manager tracks every job of a run and validates their transitions.
type Manager struct {
	mu    sync.RWMutex
	jobs  map[string]*entry
	order int
}

type entry struct {
	job   domain.Job
	order int
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{jobs: make(map[string]*entry)}
}

// Register adds a job in queued state.
func (m *Manager) Register(job domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if job.ID == "" {
		return fmt.Errorf("job id is empty")
	}
	if _, ok := m.jobs[job.ID]; ok {
		return fmt.Errorf("%w: %s", ErrJobAlreadyRegistered, job.ID)
	}

	job.Status = domain.JobStatusQueued
	m.order++
	m.jobs[job.ID] = &entry{job: job, order: m.order}
	return nil
}

// Transition validates and applies a state change for one job.
func (m *Manager) Transition(id string, status domain.JobStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, id)
	}
	if e.job.Status == status {
		return nil
	}
	if !isValidTransition(e.job.Status, status) {
		return fmt.Errorf("invalid transition for %s: %s -> %s", id, e.job.Status, status)
	}

	e.job.Status = status
	return nil
}

// Get returns a snapshot of one job.
func (m *Manager) Get(id string) (domain.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.jobs[id]
	if !ok {
		return domain.Job{}, fmt.Errorf("%w: %s", ErrUnknownJob, id)
	}
	return e.job, nil
}

// Snapshot returns every job in registration order.
func (m *Manager) Snapshot() []domain.Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]*entry, 0, len(m.jobs))
	for _, e := range m.jobs {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].order < entries[j].order })

	out := make([]domain.Job, len(entries))
	for i, e := range entries {
		out[i] = e.job
	}
	return out
}

// Counts tallies jobs per status.
func (m *Manager) Counts() map[domain.JobStatus]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[domain.JobStatus]int)
	for _, e := range m.jobs {
		out[e.job.Status]++
	}
	return out
}

// isActive reports whether a status represents running pipeline work.
func isActive(status domain.JobStatus) bool {
	switch status {
	case domain.JobStatusStaging, domain.JobStatusTrimming, domain.JobStatusPublishing:
		return true
	default:
		return false
	}
}

// nextStatus is the forward edge out of each non-terminal status.
var nextStatus = map[domain.JobStatus]domain.JobStatus{
	domain.JobStatusQueued:     domain.JobStatusStaging,
	domain.JobStatusStaging:    domain.JobStatusTrimming,
	domain.JobStatusTrimming:   domain.JobStatusPublishing,
	domain.JobStatusPublishing: domain.JobStatusDone,
}

// isValidTransition enforces the allowed job state machine edges.
func isValidTransition(from, to domain.JobStatus) bool {
	if from != domain.JobStatusQueued && !isActive(from) {
		return false
	}
	return to == nextStatus[from] || to == domain.JobStatusFailed || to == domain.JobStatusCancelled
}
