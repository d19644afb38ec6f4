package operations

import (
	"sort"
	"sync"
	"time"

	"lacphcli/internal/bulletin"
	"lacphcli/pkg/contracts/domain"
)

// RunStatus represents the overall run status enum
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// SkippedDate is a requested date left out of a run.
type SkippedDate struct {
	Date   domain.Date `json:"date"`
	Reason string      `json:"reason"`
}

// RunState is the complete state of one pipeline run. Steps exchange their
// results through it.
type RunState struct {
	mu sync.RWMutex

	ID        string     `json:"id"`
	Status    RunStatus  `json:"status"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	// Dates are the requested dates, ascending and unique.
	Dates []domain.Date `json:"dates"`

	Steps   map[string]*StepState `json:"steps"`
	Skipped []SkippedDate         `json:"skipped,omitempty"`

	Error error `json:"-"`

	bulletins []*bulletin.Bulletin
	reports   []*domain.DailyReport
	series    *domain.SeriesSet
}

// NewRunState creates the state of a run over dates. Duplicate dates are
// dropped and the rest sorted.
func NewRunState(id string, dates []domain.Date) *RunState {
	return &RunState{
		ID:        id,
		Status:    RunStatusPending,
		StartTime: time.Now(),
		Dates:     uniqueDates(dates),
		Steps:     make(map[string]*StepState),
	}
}

func uniqueDates(dates []domain.Date) []domain.Date {
	seen := make(map[domain.Date]bool, len(dates))
	out := make([]domain.Date, 0, len(dates))
	for _, d := range dates {
		if seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Start marks the run as running
func (r *RunState) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Status = RunStatusRunning
	r.StartTime = time.Now()
}

// Complete marks the run as completed
func (r *RunState) Complete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.EndTime = &now
	r.Status = RunStatusCompleted
}

// Fail marks the run as failed
func (r *RunState) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.EndTime = &now
	r.Status = RunStatusFailed
	r.Error = err
}

// Cancel marks the run as cancelled
func (r *RunState) Cancel(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.EndTime = &now
	r.Status = RunStatusCancelled
	r.Error = err
}

// GetStatus returns the run status.
func (r *RunState) GetStatus() RunStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Status
}

// GetStep returns the state of a specific Step
func (r *RunState) GetStep(stepID string) *StepState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Steps[stepID]
}

// SetStep updates the state of a specific Step
func (r *RunState) SetStep(stepID string, state *StepState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Steps[stepID] = state
}

// Skip records a date left out of the run.
func (r *RunState) Skip(date domain.Date, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Skipped = append(r.Skipped, SkippedDate{Date: date, Reason: reason})
}

// SkippedDates returns the skipped dates in date order.
func (r *RunState) SkippedDates() []SkippedDate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := append([]SkippedDate(nil), r.Skipped...)
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// Bulletins returns the fetched bulletins in date order.
func (r *RunState) Bulletins() []*bulletin.Bulletin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.bulletins
}

func (r *RunState) setBulletins(b []*bulletin.Bulletin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bulletins = b
}

// Reports returns the parsed reports in date order.
func (r *RunState) Reports() []*domain.DailyReport {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.reports
}

func (r *RunState) setReports(reports []*domain.DailyReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = reports
}

// Series returns the derived series, or nil before the build step ran.
func (r *RunState) Series() *domain.SeriesSet {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.series
}

func (r *RunState) setSeries(s *domain.SeriesSet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.series = s
}

// Duration returns the duration of the run
func (r *RunState) Duration() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.EndTime != nil {
		return r.EndTime.Sub(r.StartTime)
	}
	return time.Since(r.StartTime)
}

// HasFailures returns true if any Step has failed
func (r *RunState) HasFailures() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.Steps {
		if s.GetStatus() == StepStatusFailed {
			return true
		}
	}
	return false
}

// Snapshot returns a copy of the run's bookkeeping without the step payloads.
func (r *RunState) Snapshot() *RunState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c := &RunState{
		ID:        r.ID,
		Status:    r.Status,
		StartTime: r.StartTime,
		Dates:     append([]domain.Date(nil), r.Dates...),
		Steps:     make(map[string]*StepState, len(r.Steps)),
		Skipped:   append([]SkippedDate(nil), r.Skipped...),
		Error:     r.Error,
	}
	if r.EndTime != nil {
		end := *r.EndTime
		c.EndTime = &end
	}
	for k, v := range r.Steps {
		c.Steps[k] = v.clone()
	}
	return c
}
