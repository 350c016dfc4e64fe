// Package monitor drives the fetch, diff, notify, sleep loop for one tracked account.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/profile-watch/pwatch/internal/notify"
	"github.com/profile-watch/pwatch/internal/snapshot"
)

const (
	// DefaultInterval is the pause between ticks when none is configured.
	DefaultInterval = 30 * time.Second

	errMessageMissingFetcher   = "monitor fetcher cannot be nil"
	errMessageMissingAccountID = "monitor account id cannot be empty"
	errMessageFetchProfile     = "fetch profile"

	logMessageTickFailed       = "tick discarded after fetch failure"
	logMessageInitialized      = "tracking initialized"
	logMessageUnchanged        = "no changes"
	logMessageChangeDetected   = "change detected"
	logMessageSuppressed       = "delta suppressed, nothing to render"
	logMessageNotifyFailed     = "notification failed"
	logMessageNotifySkipped    = "notification skipped, no sink configured"
	logMessageLoopStarted      = "monitor loop started"
	logMessageLoopStopped      = "monitor loop stopped"
	logFieldAccountID          = "account_id"
	logFieldInterval           = "interval"
	logFieldUserName           = "user_name"
	logFieldProfileChangeCount = "profile_changes"
	logFieldRenderable         = "renderable"
)

var (
	errMissingFetcher   = errors.New(errMessageMissingFetcher)
	errMissingAccountID = errors.New(errMessageMissingAccountID)
)

// Fetcher retrieves point-in-time snapshots for one account.
type Fetcher interface {
	FetchProfile(ctx context.Context, accountID string) (snapshot.Profile, error)
	FetchRelationships(ctx context.Context, accountID string, kind snapshot.RelationshipKind) (snapshot.RelationshipSet, error)
}

// Notifier emits the initial announcement and delta notifications.
type Notifier interface {
	Announce(ctx context.Context, profile snapshot.Profile) error
	Deliver(ctx context.Context, delta snapshot.Delta) error
}

// Reporter receives operator-facing tick events.
type Reporter interface {
	Tracking(profile snapshot.Profile)
	ChangeDetected(delta snapshot.Delta)
	NoChanges()
}

// Config configures a Monitor instance. A nil Notifier runs detection only.
type Config struct {
	Fetcher   Fetcher
	Notifier  Notifier
	Reporter  Reporter
	AccountID string
	Interval  time.Duration
	Logger    *zap.Logger
	Now       func() time.Time
}

// Monitor owns the tracker state of a single account.
type Monitor struct {
	fetcher   Fetcher
	notifier  Notifier
	reporter  Reporter
	accountID string
	interval  time.Duration
	logger    *zap.Logger
	now       func() time.Time

	baseline snapshot.TrackerState

	statusMutex sync.RWMutex
	status      Status
}

// New constructs a Monitor from configuration values.
func New(configuration Config) (*Monitor, error) {
	if configuration.Fetcher == nil {
		return nil, errMissingFetcher
	}
	accountID := strings.TrimSpace(configuration.AccountID)
	if accountID == "" {
		return nil, errMissingAccountID
	}
	interval := configuration.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	logger := configuration.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	reporter := configuration.Reporter
	if reporter == nil {
		reporter = silentReporter{}
	}
	now := configuration.Now
	if now == nil {
		now = time.Now
	}
	return &Monitor{
		fetcher:   configuration.Fetcher,
		notifier:  configuration.Notifier,
		reporter:  reporter,
		accountID: accountID,
		interval:  interval,
		logger:    logger.With(zap.String(logFieldAccountID, accountID)),
		now:       now,
		status:    Status{AccountID: accountID, Interval: interval},
	}, nil
}

// Run ticks until the context is cancelled, sleeping one interval between ticks.
func (monitor *Monitor) Run(ctx context.Context) error {
	monitor.logger.Info(logMessageLoopStarted, zap.Duration(logFieldInterval, monitor.interval))
	for {
		monitor.Tick(ctx)
		if err := waitForDuration(ctx, monitor.interval); err != nil {
			monitor.logger.Info(logMessageLoopStopped)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}
}

// Tick performs one fetch, diff and notify iteration without sleeping.
func (monitor *Monitor) Tick(ctx context.Context) TickOutcome {
	current, err := monitor.fetchState(ctx)
	if err != nil {
		monitor.logger.Warn(logMessageTickFailed, zap.Error(err))
		return monitor.publish(TickFetchFailed, false, err)
	}

	if !monitor.baseline.Initialized() {
		monitor.baseline = current
		monitor.reporter.Tracking(*current.Profile)
		monitor.logger.Info(logMessageInitialized, zap.String(logFieldUserName, current.Profile.UserName))
		if monitor.notifier == nil {
			monitor.logger.Warn(logMessageNotifySkipped)
			return monitor.publish(TickInitialized, false, nil)
		}
		if announceErr := monitor.notifier.Announce(ctx, *current.Profile); announceErr != nil {
			monitor.logger.Error(logMessageNotifyFailed, zap.Error(announceErr))
			return monitor.publish(TickNotifyFailed, false, announceErr)
		}
		return monitor.publish(TickInitialized, false, nil)
	}

	delta := snapshot.BuildDelta(monitor.baseline, current)
	monitor.baseline = current

	if !delta.Changed() {
		monitor.reporter.NoChanges()
		monitor.logger.Debug(logMessageUnchanged)
		return monitor.publish(TickUnchanged, false, nil)
	}

	monitor.reporter.ChangeDetected(delta)
	monitor.logger.Info(logMessageChangeDetected,
		zap.Int(logFieldProfileChangeCount, len(delta.ProfileChanges)),
		zap.Bool(logFieldRenderable, !delta.Empty()))

	if delta.Empty() {
		monitor.logger.Info(logMessageSuppressed)
		return monitor.publish(TickSuppressed, true, nil)
	}
	if monitor.notifier == nil {
		monitor.logger.Debug(logMessageNotifySkipped)
		return monitor.publish(TickNotifySkipped, true, nil)
	}

	deliverErr := monitor.notifier.Deliver(ctx, delta)
	switch {
	case deliverErr == nil:
		return monitor.publish(TickNotified, true, nil)
	case errors.Is(deliverErr, notify.ErrNothingToSend):
		monitor.logger.Info(logMessageSuppressed)
		return monitor.publish(TickSuppressed, true, nil)
	default:
		monitor.logger.Error(logMessageNotifyFailed, zap.Error(deliverErr))
		return monitor.publish(TickNotifyFailed, true, deliverErr)
	}
}

// fetchState retrieves the profile and the three relationship lists concurrently.
// Any failure discards the whole tick.
func (monitor *Monitor) fetchState(ctx context.Context) (snapshot.TrackerState, error) {
	var (
		profile       snapshot.Profile
		relationships = make([]snapshot.RelationshipSet, len(snapshot.RelationshipKinds))
	)

	group, groupContext := errgroup.WithContext(ctx)
	group.Go(func() error {
		fetchedProfile, err := monitor.fetcher.FetchProfile(groupContext, monitor.accountID)
		if err != nil {
			return fmt.Errorf("%s: %w", errMessageFetchProfile, err)
		}
		profile = fetchedProfile
		return nil
	})
	for kindIndex, kind := range snapshot.RelationshipKinds {
		kindIndex, kind := kindIndex, kind
		group.Go(func() error {
			relationshipSet, err := monitor.fetcher.FetchRelationships(groupContext, monitor.accountID, kind)
			if err != nil {
				return err
			}
			if relationshipSet == nil {
				relationshipSet = snapshot.RelationshipSet{}
			}
			relationships[kindIndex] = relationshipSet
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return snapshot.TrackerState{}, err
	}

	state := snapshot.TrackerState{Profile: &profile}
	for kindIndex, kind := range snapshot.RelationshipKinds {
		state.Relationships.Replace(kind, relationships[kindIndex])
	}
	return state, nil
}

func waitForDuration(ctx context.Context, duration time.Duration) error {
	if duration <= 0 {
		return nil
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type silentReporter struct{}

func (silentReporter) Tracking(snapshot.Profile)      {}
func (silentReporter) ChangeDetected(snapshot.Delta) {}
func (silentReporter) NoChanges()                    {}
