// Package timing records end-to-end latency of sponsored transaction runs
// and renders them the way the browser test page does.
package timing

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status of a sample
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Sample is one timed run. Duration stays zero while the run is pending.
type Sample struct {
	ID        string
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Status    Status
	TxHash    string
	Sponsored bool
	Error     string
}

// Summary aggregates the recorded samples
type Summary struct {
	Total      int
	Successful int
	Failed     int
	Pending    int
	// Average is the mean duration over every sample, failed and pending
	// ones included.
	Average time.Duration
}

// Recorder keeps samples newest first for the lifetime of the process
type Recorder struct {
	mu      sync.Mutex
	samples []Sample
	now     func() time.Time
}

// Option configures a Recorder
type Option func(*Recorder)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		r.now = now
	}
}

// NewRecorder creates an empty recorder
func NewRecorder(opts ...Option) *Recorder {
	r := &Recorder{now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Begin front-inserts a pending sample stamped now and returns its id
func (r *Recorder) Begin() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	sample := Sample{
		ID:        uuid.NewString(),
		StartTime: r.now(),
		Status:    StatusPending,
	}
	r.samples = append([]Sample{sample}, r.samples...)
	return sample.ID
}

// Complete marks the sample successful with the relayed hash
func (r *Recorder) Complete(id, txHash string, sponsored bool) error {
	return r.finish(id, func(s *Sample) {
		s.Status = StatusSuccess
		s.TxHash = txHash
		s.Sponsored = sponsored
	})
}

// Fail marks the sample errored with msg
func (r *Recorder) Fail(id, msg string) error {
	return r.finish(id, func(s *Sample) {
		s.Status = StatusError
		s.Error = msg
	})
}

func (r *Recorder) finish(id string, apply func(*Sample)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.samples {
		s := &r.samples[i]
		if s.ID != id {
			continue
		}
		if s.Status != StatusPending {
			return fmt.Errorf("sample %s already %s", id, s.Status)
		}
		s.EndTime = r.now()
		s.Duration = s.EndTime.Sub(s.StartTime)
		apply(s)
		return nil
	}
	return fmt.Errorf("sample %s not found", id)
}

// Clear drops every sample
func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = nil
}

// Samples returns a copy, newest first
func (r *Recorder) Samples() []Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Sample, len(r.samples))
	copy(out, r.samples)
	return out
}

// Summary computes totals and the mean duration
func (r *Recorder) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		sum     time.Duration
		summary = Summary{Total: len(r.samples)}
	)
	for _, s := range r.samples {
		sum += s.Duration
		switch s.Status {
		case StatusSuccess:
			summary.Successful++
		case StatusError:
			summary.Failed++
		default:
			summary.Pending++
		}
	}
	if summary.Total > 0 {
		summary.Average = sum / time.Duration(summary.Total)
	}
	return summary
}
