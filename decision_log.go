package main

import (
	"sync"
	"time"
)

// RecordKind classifies decision log entries.
type RecordKind string

const (
	// RecordDecision is a normal-mode policy decision.
	RecordDecision RecordKind = "decision"
	// RecordDetection is the first sighting of a priority vehicle in range.
	RecordDetection RecordKind = "detection"
	// RecordPreemptionStart marks entry into the emergency sequence.
	RecordPreemptionStart RecordKind = "preemption_start"
	// RecordPreemptionEnd marks resolution back to normal operation.
	RecordPreemptionEnd RecordKind = "preemption_end"
	// RecordSpawn marks a synchronized priority-vehicle injection.
	RecordSpawn RecordKind = "spawn"
	// RecordError is a recovered per-controller or per-detection error.
	RecordError RecordKind = "error"
)

// DecisionRecord is one entry in the run's decision log.
type DecisionRecord struct {
	Seq            int64      `json:"seq"`
	Step           int        `json:"step"`
	Twin           string     `json:"twin,omitempty"`
	IntersectionID string     `json:"intersectionId,omitempty"`
	Kind           RecordKind `json:"kind"`
	Action         int        `json:"action,omitempty"`
	Phase          int        `json:"phase,omitempty"`
	VehicleID      string     `json:"vehicleId,omitempty"`
	Detail         string     `json:"detail,omitempty"`
	At             time.Time  `json:"at"`
}

// DecisionLog is the append-only log of decisions, detections, and
// preemptions for the current run. Single producer (the step loop), many
// readers; readers observe either the pre- or post-append state, never a
// partial record. State is discarded with the run.
type DecisionLog struct {
	mu      sync.RWMutex
	records []DecisionRecord
	seq     int64
}

// NewDecisionLog creates an empty log.
func NewDecisionLog() *DecisionLog {
	return &DecisionLog{}
}

// Append stamps and stores a record.
func (l *DecisionLog) Append(rec DecisionRecord) {
	l.mu.Lock()
	l.seq++
	rec.Seq = l.seq
	if rec.At.IsZero() {
		rec.At = time.Now()
	}
	l.records = append(l.records, rec)
	l.mu.Unlock()
}

// Recent returns up to limit records, most recent first. limit <= 0 returns
// the full log.
func (l *DecisionLog) Recent(limit int) []DecisionRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := len(l.records)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]DecisionRecord, limit)
	for i := 0; i < limit; i++ {
		out[i] = l.records[n-1-i]
	}
	return out
}

// Len returns the number of records appended so far.
func (l *DecisionLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}
