package monitor

import (
	"encoding/json"
	"time"

	"github.com/profile-watch/pwatch/internal/snapshot"
)

// TickOutcome classifies the result of a single tick.
type TickOutcome int

const (
	TickFetchFailed TickOutcome = iota
	TickInitialized
	TickUnchanged
	TickNotified
	TickSuppressed
	TickNotifyFailed
	TickNotifySkipped
)

var tickOutcomeNames = map[TickOutcome]string{
	TickFetchFailed:   "fetch_failed",
	TickInitialized:   "initialized",
	TickUnchanged:     "unchanged",
	TickNotified:      "notified",
	TickSuppressed:    "suppressed",
	TickNotifyFailed:  "notify_failed",
	TickNotifySkipped: "notify_skipped",
}

func (outcome TickOutcome) String() string {
	if name, exists := tickOutcomeNames[outcome]; exists {
		return name
	}
	return "unknown"
}

// MarshalJSON encodes the outcome by name.
func (outcome TickOutcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(outcome.String())
}

// Status is a read-only copy of the loop state published after every tick.
type Status struct {
	AccountID          string            `json:"account_id"`
	Interval           time.Duration     `json:"-"`
	IntervalSeconds    float64           `json:"interval_seconds"`
	Initialized        bool              `json:"initialized"`
	Profile            *snapshot.Profile `json:"profile,omitempty"`
	RelationshipCounts map[string]int    `json:"relationship_counts,omitempty"`
	TickCount          int               `json:"tick_count"`
	NotificationsSent  int               `json:"notifications_sent"`
	LastOutcome        *TickOutcome      `json:"last_outcome,omitempty"`
	LastError          string            `json:"last_error,omitempty"`
	LastTickAt         *time.Time        `json:"last_tick_at,omitempty"`
	LastChangeAt       *time.Time        `json:"last_change_at,omitempty"`
}

// Status returns a copy of the most recently published state.
func (monitor *Monitor) Status() Status {
	monitor.statusMutex.RLock()
	defer monitor.statusMutex.RUnlock()

	status := monitor.status
	status.IntervalSeconds = status.Interval.Seconds()
	if status.Profile != nil {
		profileCopy := *status.Profile
		status.Profile = &profileCopy
	}
	if status.RelationshipCounts != nil {
		counts := make(map[string]int, len(status.RelationshipCounts))
		for label, count := range status.RelationshipCounts {
			counts[label] = count
		}
		status.RelationshipCounts = counts
	}
	return status
}

// publish records a finished tick. changed marks ticks that differed from an existing baseline.
func (monitor *Monitor) publish(outcome TickOutcome, changed bool, tickErr error) TickOutcome {
	tickedAt := monitor.now().UTC()

	monitor.statusMutex.Lock()
	defer monitor.statusMutex.Unlock()

	monitor.status.TickCount++
	monitor.status.LastOutcome = &outcome
	monitor.status.LastTickAt = &tickedAt
	monitor.status.LastError = ""
	if tickErr != nil {
		monitor.status.LastError = tickErr.Error()
	}

	if outcome == TickNotified || (outcome == TickInitialized && monitor.notifier != nil) {
		monitor.status.NotificationsSent++
	}
	if changed {
		monitor.status.LastChangeAt = &tickedAt
	}

	if monitor.baseline.Initialized() {
		profileCopy := *monitor.baseline.Profile
		monitor.status.Initialized = true
		monitor.status.Profile = &profileCopy
		counts := make(map[string]int, len(snapshot.RelationshipKinds))
		for _, kind := range snapshot.RelationshipKinds {
			counts[kind.Label()] = len(monitor.baseline.Relationships.Set(kind))
		}
		monitor.status.RelationshipCounts = counts
	}
	return outcome
}
