package roblox

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/profile-watch/pwatch/internal/snapshot"
)

const (
	usernamesLookupPath         = "/v1/usernames/users"
	userProfilePathFormat       = "/v1/users/%s"
	avatarHeadshotPath          = "/v1/users/avatar-headshot"
	presenceLookupPath          = "/v1/presence/users"
	avatarSizeValue             = "420x420"
	avatarFormatValue           = "Png"
	defaultDescription          = "No description."
	defaultUserName             = "Unknown"
	errMessageResolveIdentifier = "resolve user identifier"
	errMessageFetchProfile      = "fetch profile"
	errMessageInvalidAccountID  = "account identifier is not numeric"
	logMessageAvatarUnavailable = "avatar lookup failed"
	logMessagePresenceUnknown   = "presence lookup failed"
	logFieldAccountID           = "account_id"
)

type usernamesLookupRequest struct {
	UserNames []string `json:"usernames"`
}

type usernamesLookupResponse struct {
	Data []struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"data"`
}

type userProfileResponse struct {
	ID          int64   `json:"id"`
	Name        *string `json:"name"`
	DisplayName *string `json:"displayName"`
	Description *string `json:"description"`
}

type avatarHeadshotResponse struct {
	Data []struct {
		ImageURL string `json:"imageUrl"`
	} `json:"data"`
}

type presenceLookupRequest struct {
	UserIDs []int64 `json:"userIds"`
}

type presenceLookupResponse struct {
	UserPresences []struct {
		UserPresenceType int `json:"userPresenceType"`
	} `json:"userPresences"`
}

// ResolveUserID maps a user name or numeric identifier to a canonical account identifier.
// Numeric input is returned unchanged.
func (client *Client) ResolveUserID(ctx context.Context, identifier string) (string, error) {
	trimmed := strings.TrimSpace(identifier)
	if trimmed == "" {
		return "", errEmptyIdentifier
	}
	if isNumericIdentifier(trimmed) {
		return trimmed, nil
	}

	var lookupResponse usernamesLookupResponse
	response, err := client.restClient.R().
		SetContext(ctx).
		SetBody(usernamesLookupRequest{UserNames: []string{trimmed}}).
		SetResult(&lookupResponse).
		Post(client.usersBaseURL + usernamesLookupPath)
	if err != nil {
		return "", fmt.Errorf("%s: %w", errMessageResolveIdentifier, err)
	}
	if !response.IsSuccess() {
		return "", fmt.Errorf("%s: %w", errMessageResolveIdentifier, unexpectedStatus(response))
	}
	if len(lookupResponse.Data) == 0 {
		return "", fmt.Errorf("%s %q: %w", errMessageResolveIdentifier, trimmed, ErrUserNotFound)
	}
	return strconv.FormatInt(lookupResponse.Data[0].ID, 10), nil
}

// FetchProfile retrieves the profile snapshot for an account identifier.
// Avatar and presence lookups degrade to an empty avatar and PresenceUnknown.
func (client *Client) FetchProfile(ctx context.Context, accountID string) (snapshot.Profile, error) {
	var profileResponse userProfileResponse
	response, err := client.restClient.R().
		SetContext(ctx).
		SetResult(&profileResponse).
		Get(client.usersBaseURL + fmt.Sprintf(userProfilePathFormat, accountID))
	if err != nil {
		return snapshot.Profile{}, fmt.Errorf("%s: %w", errMessageFetchProfile, err)
	}
	if response.StatusCode() == http.StatusNotFound {
		return snapshot.Profile{}, fmt.Errorf("%s %s: %w", errMessageFetchProfile, accountID, ErrProfileNotFound)
	}
	if response.StatusCode() != http.StatusOK {
		return snapshot.Profile{}, fmt.Errorf("%s: %w", errMessageFetchProfile, unexpectedStatus(response))
	}

	userName := stringOrDefault(profileResponse.Name, defaultUserName)
	profile := snapshot.Profile{
		AccountID:   strconv.FormatInt(profileResponse.ID, 10),
		UserName:    userName,
		DisplayName: stringOrDefault(profileResponse.DisplayName, userName),
		Description: stringOrDefault(profileResponse.Description, defaultDescription),
	}

	avatarURL, avatarErr := client.fetchAvatarURL(ctx, accountID)
	if avatarErr != nil {
		client.logger.Debug(logMessageAvatarUnavailable, zap.String(logFieldAccountID, accountID), zap.Error(avatarErr))
	}
	profile.AvatarURL = avatarURL

	presence, presenceErr := client.fetchPresence(ctx, accountID)
	if presenceErr != nil {
		client.logger.Debug(logMessagePresenceUnknown, zap.String(logFieldAccountID, accountID), zap.Error(presenceErr))
	}
	profile.Presence = presence

	return profile, nil
}

func (client *Client) fetchAvatarURL(ctx context.Context, accountID string) (string, error) {
	var headshotResponse avatarHeadshotResponse
	response, err := client.restClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"userIds":    accountID,
			"size":       avatarSizeValue,
			"format":     avatarFormatValue,
			"isCircular": "false",
		}).
		SetResult(&headshotResponse).
		Get(client.thumbnailsBaseURL + avatarHeadshotPath)
	if err != nil {
		return "", err
	}
	if !response.IsSuccess() {
		return "", unexpectedStatus(response)
	}
	if len(headshotResponse.Data) == 0 {
		return "", nil
	}
	return headshotResponse.Data[0].ImageURL, nil
}

func (client *Client) fetchPresence(ctx context.Context, accountID string) (snapshot.Presence, error) {
	numericAccountID, parseErr := strconv.ParseInt(accountID, 10, 64)
	if parseErr != nil {
		return snapshot.PresenceUnknown, fmt.Errorf("%s: %w", errMessageInvalidAccountID, parseErr)
	}

	var lookupResponse presenceLookupResponse
	response, err := client.restClient.R().
		SetContext(ctx).
		SetBody(presenceLookupRequest{UserIDs: []int64{numericAccountID}}).
		SetResult(&lookupResponse).
		Post(client.presenceBaseURL + presenceLookupPath)
	if err != nil {
		return snapshot.PresenceUnknown, err
	}
	if !response.IsSuccess() {
		return snapshot.PresenceUnknown, unexpectedStatus(response)
	}
	if len(lookupResponse.UserPresences) == 0 {
		return snapshot.PresenceUnknown, errEmptyPresence
	}
	return snapshot.PresenceFromCode(lookupResponse.UserPresences[0].UserPresenceType), nil
}

func isNumericIdentifier(identifier string) bool {
	for _, character := range identifier {
		if character < '0' || character > '9' {
			return false
		}
	}
	return identifier != ""
}

func stringOrDefault(value *string, fallback string) string {
	if value == nil {
		return fallback
	}
	return *value
}
