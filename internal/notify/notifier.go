package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/profile-watch/pwatch/internal/snapshot"
)

const (
	errMessageMissingSink   = "notifier sink cannot be nil"
	errMessageNothingToSend = "delta has no renderable section"
	errMessageSendAnnounce  = "send announcement"
	errMessageSendDelta     = "send delta"
	logMessageSent          = "notification sent"
	logFieldTitle           = "title"
	logFieldKind            = "kind"
	logKindAnnouncement     = "announcement"
	logKindDelta            = "delta"
)

// ErrNothingToSend is returned by Deliver when a delta renders no section.
var ErrNothingToSend = errors.New(errMessageNothingToSend)

var errMissingSink = errors.New(errMessageMissingSink)

// Config configures a Notifier instance.
type Config struct {
	Identity Identity
	Sink     Sink
	Now      func() time.Time
	Logger   *zap.Logger
}

// Notifier renders announcements and deltas and hands them to a sink.
type Notifier struct {
	identity Identity
	sink     Sink
	now      func() time.Time
	logger   *zap.Logger
}

// NewNotifier constructs a Notifier from configuration values.
func NewNotifier(configuration Config) (*Notifier, error) {
	if configuration.Sink == nil {
		return nil, errMissingSink
	}
	now := configuration.Now
	if now == nil {
		now = time.Now
	}
	logger := configuration.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		identity: configuration.Identity.withDefaults(),
		sink:     configuration.Sink,
		now:      now,
		logger:   logger,
	}, nil
}

// Announce sends the initial announcement for a newly tracked profile.
func (notifier *Notifier) Announce(ctx context.Context, profile snapshot.Profile) error {
	message := RenderAnnouncement(notifier.identity, profile, notifier.now())
	if err := notifier.sink.Send(ctx, message); err != nil {
		return fmt.Errorf("%s: %w", errMessageSendAnnounce, err)
	}
	notifier.logger.Info(logMessageSent, zap.String(logFieldKind, logKindAnnouncement), zap.String(logFieldTitle, message.Title))
	return nil
}

// Deliver sends a delta notification. It returns ErrNothingToSend without
// contacting the sink when the delta has no renderable section.
func (notifier *Notifier) Deliver(ctx context.Context, delta snapshot.Delta) error {
	message, renderable := RenderDelta(notifier.identity, delta, notifier.now())
	if !renderable {
		return ErrNothingToSend
	}
	if err := notifier.sink.Send(ctx, message); err != nil {
		return fmt.Errorf("%s: %w", errMessageSendDelta, err)
	}
	notifier.logger.Info(logMessageSent, zap.String(logFieldKind, logKindDelta), zap.String(logFieldTitle, message.Title))
	return nil
}
