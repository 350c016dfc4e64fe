package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"

	"github.com/profile-watch/pwatch/internal/config"
	"github.com/profile-watch/pwatch/internal/console"
	"github.com/profile-watch/pwatch/internal/monitor"
	"github.com/profile-watch/pwatch/internal/notify"
	"github.com/profile-watch/pwatch/internal/roblox"
	"github.com/profile-watch/pwatch/internal/server"
)

const (
	errMessageMissingTarget      = "no target configured and no terminal to prompt on"
	errMessagePromptTarget       = "prompt target"
	errMessageResolveWebhook     = "resolve webhook"
	errMessageCreateClient       = "create provider client"
	errMessageResolveTarget      = "resolve target"
	errMessageCreateSink         = "create webhook sink"
	errMessageCreateNotifier     = "create notifier"
	errMessageCreateMonitor      = "create monitor"
	errMessageCreateRouter       = "create status router"
	logMessageWebhookSkipped     = "notifications disabled"
	logMessageTargetResolved     = "target resolved"
	logMessageResolutionFailed   = "target resolution failed"
	logMessageStatusServerFailed = "status endpoint stopped"
	logFieldReason               = "reason"
	logFieldTarget               = "target"
	logFieldAccountID            = "account_id"
)

var errMissingTarget = errors.New(errMessageMissingTarget)

// ProviderClient resolves identifiers and fetches snapshots from the profile provider.
type ProviderClient interface {
	monitor.Fetcher
	ResolveUserID(ctx context.Context, identifier string) (string, error)
}

// WatcherDependencies holds the collaborators the watcher is assembled from.
type WatcherDependencies struct {
	BuildProviderClient func(*zap.Logger) (ProviderClient, error)
	BuildSink           func(webhookURL string) (notify.Sink, error)
	ServeStatus         func(ctx context.Context, address string, handler http.Handler, logger *zap.Logger) error
	IsInteractive       func() bool
	Now                 func() time.Time
	Stdin               io.Reader
	Stdout              io.Writer
}

type WatcherApplication struct {
	dependencies WatcherDependencies
}

func NewWatcherApplication() WatcherApplication {
	return NewWatcherApplicationWithDependencies(newDefaultWatcherDependencies())
}

func NewWatcherApplicationWithDependencies(dependencies WatcherDependencies) WatcherApplication {
	defaultDependencies := newDefaultWatcherDependencies()

	if dependencies.BuildProviderClient == nil {
		dependencies.BuildProviderClient = defaultDependencies.BuildProviderClient
	}
	if dependencies.BuildSink == nil {
		dependencies.BuildSink = defaultDependencies.BuildSink
	}
	if dependencies.ServeStatus == nil {
		dependencies.ServeStatus = defaultDependencies.ServeStatus
	}
	if dependencies.IsInteractive == nil {
		dependencies.IsInteractive = defaultDependencies.IsInteractive
	}
	if dependencies.Now == nil {
		dependencies.Now = defaultDependencies.Now
	}
	if dependencies.Stdin == nil {
		dependencies.Stdin = defaultDependencies.Stdin
	}
	if dependencies.Stdout == nil {
		dependencies.Stdout = defaultDependencies.Stdout
	}

	return WatcherApplication{dependencies: dependencies}
}

// Run resolves the target and polls it until the context is cancelled.
// A target that cannot be resolved is fatal and returned before polling starts.
func (application WatcherApplication) Run(executionContext context.Context, configuration config.Config, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	operatorConsole := console.New(application.dependencies.Stdout, application.dependencies.Now)

	identity := notify.Identity{Name: configuration.WebhookName, AvatarURL: configuration.WebhookAvatarURL}
	bannerName := identity.Name
	if bannerName == "" {
		bannerName = notify.DefaultWebhookName
	}
	operatorConsole.Banner(bannerName)

	target := configuration.Target
	if target == "" {
		if !application.dependencies.IsInteractive() {
			return errMissingTarget
		}
		promptedTarget, promptError := operatorConsole.PromptTarget(application.dependencies.Stdin)
		if promptError != nil {
			return fmt.Errorf("%s: %w", errMessagePromptTarget, promptError)
		}
		target = promptedTarget
	}

	webhookURL, skipReason, webhookError := configuration.ResolveWebhookURL()
	if webhookError != nil {
		return fmt.Errorf("%s: %w", errMessageResolveWebhook, webhookError)
	}
	if skipReason != "" {
		operatorConsole.WebhookSkipped(skipReason)
		logger.Warn(logMessageWebhookSkipped, zap.String(logFieldReason, skipReason))
	}

	providerClient, clientError := application.dependencies.BuildProviderClient(logger)
	if clientError != nil {
		return fmt.Errorf("%s: %w", errMessageCreateClient, clientError)
	}

	accountID, resolveError := providerClient.ResolveUserID(executionContext, target)
	if resolveError != nil {
		operatorConsole.ResolutionFailed(target)
		logger.Error(logMessageResolutionFailed, zap.String(logFieldTarget, target), zap.Error(resolveError))
		return fmt.Errorf("%s: %w", errMessageResolveTarget, resolveError)
	}
	logger.Info(logMessageTargetResolved, zap.String(logFieldTarget, target), zap.String(logFieldAccountID, accountID))

	monitorConfig := monitor.Config{
		Fetcher:   providerClient,
		Reporter:  operatorConsole,
		AccountID: accountID,
		Interval:  configuration.Interval,
		Logger:    logger,
		Now:       application.dependencies.Now,
	}
	if webhookURL != "" {
		sink, sinkError := application.dependencies.BuildSink(webhookURL)
		if sinkError != nil {
			return fmt.Errorf("%s: %w", errMessageCreateSink, sinkError)
		}
		notifier, notifierError := notify.NewNotifier(notify.Config{
			Identity: identity,
			Sink:     sink,
			Now:      application.dependencies.Now,
			Logger:   logger,
		})
		if notifierError != nil {
			return fmt.Errorf("%s: %w", errMessageCreateNotifier, notifierError)
		}
		monitorConfig.Notifier = notifier
	}

	trackerMonitor, monitorError := monitor.New(monitorConfig)
	if monitorError != nil {
		return fmt.Errorf("%s: %w", errMessageCreateMonitor, monitorError)
	}
	operatorConsole.Watching(accountID, configuration.Interval)

	if configuration.StatusAddress == "" {
		return trackerMonitor.Run(executionContext)
	}

	router, routerError := server.NewRouter(server.RouterConfig{StatusProvider: trackerMonitor, Logger: logger})
	if routerError != nil {
		return fmt.Errorf("%s: %w", errMessageCreateRouter, routerError)
	}

	statusContext, stopStatus := context.WithCancel(executionContext)
	statusStopped := make(chan struct{})
	go func() {
		defer close(statusStopped)
		if serveError := application.dependencies.ServeStatus(statusContext, configuration.StatusAddress, router, logger); serveError != nil {
			logger.Error(logMessageStatusServerFailed, zap.String(logFieldStatusAddress, configuration.StatusAddress), zap.Error(serveError))
		}
	}()

	// The status endpoint is optional; its failure never stops polling.
	runError := trackerMonitor.Run(executionContext)
	stopStatus()
	<-statusStopped
	return runError
}

func newDefaultWatcherDependencies() WatcherDependencies {
	return WatcherDependencies{
		BuildProviderClient: func(logger *zap.Logger) (ProviderClient, error) {
			return roblox.NewClient(roblox.Config{Logger: logger})
		},
		BuildSink: func(webhookURL string) (notify.Sink, error) {
			return notify.NewDiscordWebhook(webhookURL, nil)
		},
		ServeStatus:   server.Serve,
		IsInteractive: defaultIsInteractive,
		Now:           time.Now,
		Stdin:         os.Stdin,
		Stdout:        os.Stdout,
	}
}

func defaultIsInteractive() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
}
