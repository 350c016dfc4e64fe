package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/profile-watch/pwatch/internal/config"
	"github.com/profile-watch/pwatch/internal/notify"
)

const (
	commandUse                      = "watcher"
	commandShortDescription         = "Watch a Roblox profile and report changes to a Discord webhook"
	envPrefix                       = "PROFILE_WATCH"
	flagTargetDescription           = "Roblox username or user ID to track; prompted for when empty"
	flagIntervalDescription         = "Seconds to wait between polls"
	flagWebhookURLDescription       = "Discord webhook URL; overrides the webhook file"
	flagWebhookFileDescription      = "File whose first line holds the Discord webhook URL"
	flagWebhookNameDescription      = "Sender name shown on webhook messages"
	flagWebhookAvatarURLDescription = "Sender avatar shown on webhook messages"
	flagStatusAddressDescription    = "Address of the status HTTP endpoint; empty disables it"
	flagDebugDescription            = "Enable development logging"
	errMessageLoggerCreate          = "create logger"
	errMessageConfigurationLoad     = "load configuration"
	logMessageWatcherStarting       = "starting profile watcher"
	logMessageWatcherStopped        = "profile watcher stopped"
	logFieldInterval                = "interval"
	logFieldStatusAddress           = "status_address"
)

func main() {
	cobra.CheckErr(newWatcherCommand().Execute())
}

func newWatcherCommand() *cobra.Command {
	command := &cobra.Command{
		Use:          commandUse,
		Short:        commandShortDescription,
		SilenceUsage: true,
		RunE:         runWatcherCommand,
	}

	command.Flags().String(config.KeyTarget, "", flagTargetDescription)
	command.Flags().Int(config.KeyIntervalSeconds, config.DefaultIntervalSeconds, flagIntervalDescription)
	command.Flags().String(config.KeyWebhookURL, "", flagWebhookURLDescription)
	command.Flags().String(config.KeyWebhookFile, config.DefaultWebhookFile, flagWebhookFileDescription)
	command.Flags().String(config.KeyWebhookName, notify.DefaultWebhookName, flagWebhookNameDescription)
	command.Flags().String(config.KeyWebhookAvatarURL, notify.DefaultWebhookAvatarURL, flagWebhookAvatarURLDescription)
	command.Flags().String(config.KeyStatusAddress, config.DefaultStatusAddress, flagStatusAddressDescription)
	command.Flags().Bool(config.KeyDebug, false, flagDebugDescription)

	for _, flagName := range []string{
		config.KeyTarget,
		config.KeyIntervalSeconds,
		config.KeyWebhookURL,
		config.KeyWebhookFile,
		config.KeyWebhookName,
		config.KeyWebhookAvatarURL,
		config.KeyStatusAddress,
		config.KeyDebug,
	} {
		bindFlagToViper(command, flagName)
	}

	cobra.OnInitialize(configureEnvironment)

	return command
}

func bindFlagToViper(command *cobra.Command, flagName string) {
	cobra.CheckErr(viper.BindPFlag(flagName, command.Flags().Lookup(flagName)))
}

func configureEnvironment() {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func runWatcherCommand(command *cobra.Command, _ []string) error {
	configuration, err := config.Load(viper.GetViper())
	if err != nil {
		return fmt.Errorf("%s: %w", errMessageConfigurationLoad, err)
	}

	logger, err := newLogger(configuration.Debug)
	if err != nil {
		return fmt.Errorf("%s: %w", errMessageLoggerCreate, err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	executionContext, stop := signal.NotifyContext(command.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info(logMessageWatcherStarting,
		zap.Duration(logFieldInterval, configuration.Interval),
		zap.String(logFieldStatusAddress, configuration.StatusAddress))
	if err := NewWatcherApplication().Run(executionContext, configuration, logger); err != nil {
		return err
	}
	logger.Info(logMessageWatcherStopped)
	return nil
}
