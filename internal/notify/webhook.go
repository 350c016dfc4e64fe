package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultWebhookTimeout        = 30 * time.Second
	errMessageEmptyWebhookURL    = "webhook url cannot be empty"
	errMessageWebhookRequest     = "webhook request"
	errMessageWebhookStatus      = "webhook returned unexpected status"
	maxWebhookErrorBodyCharacter = 200
)

var errEmptyWebhookURL = errors.New(errMessageEmptyWebhookURL)

// Sink delivers rendered messages.
type Sink interface {
	Send(ctx context.Context, message Message) error
}

type webhookEmbedFooter struct {
	Text string `json:"text"`
}

type webhookEmbedImage struct {
	URL string `json:"url"`
}

type webhookEmbed struct {
	Title       string              `json:"title"`
	URL         string              `json:"url,omitempty"`
	Color       int                 `json:"color"`
	Description string              `json:"description,omitempty"`
	Footer      *webhookEmbedFooter `json:"footer,omitempty"`
	Thumbnail   *webhookEmbedImage  `json:"thumbnail,omitempty"`
}

type webhookPayload struct {
	Username  string         `json:"username,omitempty"`
	AvatarURL string         `json:"avatar_url,omitempty"`
	Embeds    []webhookEmbed `json:"embeds"`
}

// DiscordWebhook posts messages to a Discord webhook as a single embed.
type DiscordWebhook struct {
	webhookURL string
	restClient *resty.Client
}

// NewDiscordWebhook constructs a sink for the supplied webhook URL.
// A nil HTTP client selects a default client with a request timeout.
func NewDiscordWebhook(webhookURL string, httpClient *http.Client) (*DiscordWebhook, error) {
	trimmedURL := strings.TrimSpace(webhookURL)
	if trimmedURL == "" {
		return nil, errEmptyWebhookURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultWebhookTimeout}
	}
	return &DiscordWebhook{
		webhookURL: trimmedURL,
		restClient: resty.NewWithClient(httpClient),
	}, nil
}

// Send posts the message. Any non-2xx response is an error.
func (webhook *DiscordWebhook) Send(ctx context.Context, message Message) error {
	response, err := webhook.restClient.R().
		SetContext(ctx).
		SetBody(newWebhookPayload(message)).
		Post(webhook.webhookURL)
	if err != nil {
		return fmt.Errorf("%s: %w", errMessageWebhookRequest, err)
	}
	if !response.IsSuccess() {
		return fmt.Errorf("%s: %d %s", errMessageWebhookStatus, response.StatusCode(), truncate(strings.TrimSpace(response.String()), maxWebhookErrorBodyCharacter))
	}
	return nil
}

func newWebhookPayload(message Message) webhookPayload {
	embed := webhookEmbed{
		Title:       message.Title,
		URL:         message.URL,
		Color:       message.Color,
		Description: message.Description,
	}
	if message.Footer != "" {
		embed.Footer = &webhookEmbedFooter{Text: message.Footer}
	}
	if message.ThumbnailURL != "" {
		embed.Thumbnail = &webhookEmbedImage{URL: message.ThumbnailURL}
	}
	return webhookPayload{
		Username:  message.SenderName,
		AvatarURL: message.SenderAvatarURL,
		Embeds:    []webhookEmbed{embed},
	}
}

func truncate(value string, maxLength int) string {
	runes := []rune(value)
	if len(runes) <= maxLength {
		return value
	}
	return string(runes[:maxLength]) + "..."
}
