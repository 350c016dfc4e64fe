// Package roblox fetches profile and relationship snapshots from the public Roblox web APIs.
package roblox

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	defaultUsersBaseURL          = "https://users.roblox.com"
	defaultThumbnailsBaseURL     = "https://thumbnails.roblox.com"
	defaultPresenceBaseURL       = "https://presence.roblox.com"
	defaultFriendsBaseURL        = "https://friends.roblox.com"
	defaultUserAgentHeader       = "User-Agent"
	defaultUserAgentValue        = "ProfileWatch/1.0"
	defaultDialTimeout           = 5 * time.Second
	defaultTLSHandshakeTimeout   = 5 * time.Second
	defaultResponseHeaderTimeout = 10 * time.Second
	defaultHTTPTimeout           = 15 * time.Second
	defaultWorkerConcurrency     = 4
	errMessageEmptyIdentifier    = "user identifier cannot be empty"
	errMessageUserNotFound       = "user not found"
	errMessageProfileNotFound    = "profile not found"
	errMessageUnexpectedStatus   = "roblox request returned unexpected status code"
	errMessageParseBaseURL       = "parse base url"
	errMessageEmptyPresence      = "presence response listed no users"
)

var (
	// ErrUserNotFound indicates that an identifier could not be mapped to an account identifier.
	ErrUserNotFound = errors.New(errMessageUserNotFound)
	// ErrProfileNotFound indicates that the provider has no profile for an account identifier.
	ErrProfileNotFound = errors.New(errMessageProfileNotFound)

	errEmptyIdentifier = errors.New(errMessageEmptyIdentifier)
	errEmptyPresence   = errors.New(errMessageEmptyPresence)
)

// Config customizes a Client instance. Empty base URLs fall back to the public endpoints.
type Config struct {
	UsersBaseURL      string
	ThumbnailsBaseURL string
	PresenceBaseURL   string
	FriendsBaseURL    string
	HTTPClient        *http.Client
	MaxConcurrent     int
	Logger            *zap.Logger
}

// Client talks to the Roblox users, thumbnails, presence, and friends APIs.
type Client struct {
	restClient        *resty.Client
	usersBaseURL      string
	thumbnailsBaseURL string
	presenceBaseURL   string
	friendsBaseURL    string
	workerCount       int
	logger            *zap.Logger
	flightGroup       singleflight.Group
}

// NewClient constructs a Client with sensible defaults for HTTP timeouts.
func NewClient(configuration Config) (*Client, error) {
	baseURLs := []*string{
		&configuration.UsersBaseURL,
		&configuration.ThumbnailsBaseURL,
		&configuration.PresenceBaseURL,
		&configuration.FriendsBaseURL,
	}
	defaults := []string{defaultUsersBaseURL, defaultThumbnailsBaseURL, defaultPresenceBaseURL, defaultFriendsBaseURL}
	for index, baseURL := range baseURLs {
		normalized, err := normalizeBaseURL(*baseURL, defaults[index])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", errMessageParseBaseURL, err)
		}
		*baseURL = normalized
	}

	httpClient := configuration.HTTPClient
	if httpClient == nil {
		httpClient = newHTTPClient()
	} else {
		clonedClient := *httpClient
		httpClient = &clonedClient
	}
	if httpClient.Timeout == 0 {
		httpClient.Timeout = defaultHTTPTimeout
	}

	workerCount := configuration.MaxConcurrent
	if workerCount <= 0 {
		workerCount = defaultWorkerConcurrency
	}
	logger := configuration.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	restClient := resty.NewWithClient(httpClient).
		SetHeader(defaultUserAgentHeader, defaultUserAgentValue)

	client := &Client{
		restClient:        restClient,
		usersBaseURL:      configuration.UsersBaseURL,
		thumbnailsBaseURL: configuration.ThumbnailsBaseURL,
		presenceBaseURL:   configuration.PresenceBaseURL,
		friendsBaseURL:    configuration.FriendsBaseURL,
		workerCount:       workerCount,
		logger:            logger,
	}
	return client, nil
}

func normalizeBaseURL(baseURL string, fallback string) (string, error) {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		trimmed = fallback
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		return "", fmt.Errorf("unsupported base url %q", trimmed)
	}
	return strings.TrimRight(trimmed, "/"), nil
}

func unexpectedStatus(response *resty.Response) error {
	return fmt.Errorf("%s: %d", errMessageUnexpectedStatus, response.StatusCode())
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout:   defaultHTTPTimeout,
		Transport: defaultTransport(),
	}
}

func defaultTransport() http.RoundTripper {
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout:   defaultTLSHandshakeTimeout,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          100,
		MaxConnsPerHost:       100,
		ResponseHeaderTimeout: defaultResponseHeaderTimeout,
	}
}
