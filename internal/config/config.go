// Package config turns flag, environment and file values into a validated watcher configuration.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	KeyTarget           = "target"
	KeyIntervalSeconds  = "interval"
	KeyWebhookURL       = "webhook-url"
	KeyWebhookFile      = "webhook-file"
	KeyWebhookName      = "webhook-name"
	KeyWebhookAvatarURL = "webhook-avatar-url"
	KeyStatusAddress    = "status-address"
	KeyDebug            = "debug"

	DefaultIntervalSeconds = 30
	DefaultWebhookFile     = "webhook.txt"
	DefaultStatusAddress   = "127.0.0.1:8080"

	errMessageInvalidInterval = "interval must be a positive number of seconds"
	errMessageReadWebhookFile = "read webhook file"
	reasonWebhookFileEmpty    = "%s is empty"
	reasonWebhookFileMissing  = "%s not found"
	reasonWebhookNotProvided  = "no webhook URL provided"
)

var errInvalidInterval = errors.New(errMessageInvalidInterval)

// Config holds the startup configuration of the watcher. It is not reloaded.
type Config struct {
	Target           string
	Interval         time.Duration
	WebhookURL       string
	WebhookFile      string
	WebhookName      string
	WebhookAvatarURL string
	StatusAddress    string
	Debug            bool
}

// Load reads and validates configuration values from viper.
func Load(values *viper.Viper) (Config, error) {
	intervalSeconds := values.GetInt(KeyIntervalSeconds)
	if !values.IsSet(KeyIntervalSeconds) {
		intervalSeconds = DefaultIntervalSeconds
	}
	if intervalSeconds <= 0 {
		return Config{}, fmt.Errorf("%w: %d", errInvalidInterval, intervalSeconds)
	}

	webhookFile := strings.TrimSpace(values.GetString(KeyWebhookFile))
	if !values.IsSet(KeyWebhookFile) {
		webhookFile = DefaultWebhookFile
	}

	return Config{
		Target:           strings.TrimSpace(values.GetString(KeyTarget)),
		Interval:         time.Duration(intervalSeconds) * time.Second,
		WebhookURL:       strings.TrimSpace(values.GetString(KeyWebhookURL)),
		WebhookFile:      webhookFile,
		WebhookName:      strings.TrimSpace(values.GetString(KeyWebhookName)),
		WebhookAvatarURL: strings.TrimSpace(values.GetString(KeyWebhookAvatarURL)),
		StatusAddress:    strings.TrimSpace(values.GetString(KeyStatusAddress)),
		Debug:            values.GetBool(KeyDebug),
	}, nil
}

// ResolveWebhookURL returns the configured webhook URL. An explicit URL wins over
// the first line of the webhook file. When no URL is available it returns an empty
// URL and a human readable reason; notifications are then skipped.
func (configuration Config) ResolveWebhookURL() (string, string, error) {
	if configuration.WebhookURL != "" {
		return configuration.WebhookURL, "", nil
	}
	if configuration.WebhookFile == "" {
		return "", reasonWebhookNotProvided, nil
	}

	file, err := os.Open(configuration.WebhookFile)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Sprintf(reasonWebhookFileMissing, configuration.WebhookFile), nil
	}
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", errMessageReadWebhookFile, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Scan()
	if err := scanner.Err(); err != nil {
		return "", "", fmt.Errorf("%s: %w", errMessageReadWebhookFile, err)
	}
	webhookURL := strings.TrimSpace(scanner.Text())
	if webhookURL == "" {
		return "", fmt.Sprintf(reasonWebhookFileEmpty, configuration.WebhookFile), nil
	}
	return webhookURL, "", nil
}
