// Package notify renders tracker announcements and change deltas into webhook messages.
package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/profile-watch/pwatch/internal/snapshot"
)

const (
	// DefaultWebhookName is the sender name used when none is configured.
	DefaultWebhookName = "Profile Watch"

	// DefaultWebhookAvatarURL is the sender avatar used when none is configured.
	DefaultWebhookAvatarURL = "https://i.imgur.com/m1AQm3T.png"

	// DefaultColor is the embed accent color.
	DefaultColor = 0x00aaff

	titleFormat                 = "%s (@%s)"
	footerFormat                = "Powered by %s | %s"
	footerTimestampLayout       = "2006-01-02 15:04:05 UTC"
	sectionSeparator            = "\n\n"
	announcementFormat          = "**Display Name:** `%s`\n**Description:** `%s`\n**Status:** `%s`"
	profileSectionHeader        = "📝 **Profile Updates:**"
	profileChangeFormat         = "**%s:**\n`%s` → `%s`"
	addedHeaderFormat           = "🟢 **Added %s:**"
	removedHeaderFormat         = "🔴 **Removed %s:**"
	renamedHeaderFormat         = "🟡 **Renamed %s:**"
	accountLineFormat           = "`%s` — %s"
	renamedLineFormat           = "`%s` → `%s` — %s"
	maxDescriptionLength        = 4096
	truncatedDescriptionSuffix  = "\n…"
	defaultProfileURLBaseString = "https://roblox.com/users/"
)

// Identity is the fixed sender identity and presentation settings of a notifier.
type Identity struct {
	Name           string
	AvatarURL      string
	Color          int
	ProfileURLBase string
}

func (identity Identity) withDefaults() Identity {
	if strings.TrimSpace(identity.Name) == "" {
		identity.Name = DefaultWebhookName
	}
	if strings.TrimSpace(identity.AvatarURL) == "" {
		identity.AvatarURL = DefaultWebhookAvatarURL
	}
	if identity.Color == 0 {
		identity.Color = DefaultColor
	}
	if strings.TrimSpace(identity.ProfileURLBase) == "" {
		identity.ProfileURLBase = defaultProfileURLBaseString
	}
	return identity
}

func (identity Identity) profileURL(accountID string) string {
	return identity.ProfileURLBase + accountID
}

// Message is a rendered notification ready for a sink.
type Message struct {
	SenderName      string
	SenderAvatarURL string
	Title           string
	URL             string
	Color           int
	Description     string
	ThumbnailURL    string
	Footer          string
}

// RenderAnnouncement builds the one-time message describing the full tracked profile.
func RenderAnnouncement(identity Identity, profile snapshot.Profile, renderedAt time.Time) Message {
	identity = identity.withDefaults()
	description := fmt.Sprintf(announcementFormat, profile.DisplayName, profile.Description, profile.Presence)
	return newMessage(identity, profile, []string{description}, renderedAt)
}

// RenderDelta builds the message describing a change delta.
// It returns false when the delta has no renderable section.
func RenderDelta(identity Identity, delta snapshot.Delta, renderedAt time.Time) (Message, bool) {
	identity = identity.withDefaults()

	var sections []string
	if profileSection := renderProfileSection(delta.ProfileChanges); profileSection != "" {
		sections = append(sections, profileSection)
	}
	for _, kind := range snapshot.RelationshipKinds {
		relationshipSection := renderRelationshipSection(identity, kind, delta.Relationships[kind])
		if relationshipSection != "" {
			sections = append(sections, relationshipSection)
		}
	}
	if len(sections) == 0 {
		return Message{}, false
	}
	return newMessage(identity, delta.Profile, sections, renderedAt), true
}

func newMessage(identity Identity, profile snapshot.Profile, sections []string, renderedAt time.Time) Message {
	return Message{
		SenderName:      identity.Name,
		SenderAvatarURL: identity.AvatarURL,
		Title:           fmt.Sprintf(titleFormat, profile.DisplayName, profile.UserName),
		URL:             identity.profileURL(profile.AccountID),
		Color:           identity.Color,
		Description:     truncateDescription(strings.Join(sections, sectionSeparator)),
		ThumbnailURL:    profile.AvatarURL,
		Footer:          fmt.Sprintf(footerFormat, identity.Name, renderedAt.UTC().Format(footerTimestampLayout)),
	}
}

func renderProfileSection(changes []snapshot.FieldChange) string {
	if len(changes) == 0 {
		return ""
	}
	lines := []string{profileSectionHeader}
	for _, change := range changes {
		lines = append(lines, fmt.Sprintf(profileChangeFormat, change.Label, change.PreviousValue, change.CurrentValue))
	}
	return strings.Join(lines, "\n")
}

func renderRelationshipSection(identity Identity, kind snapshot.RelationshipKind, diff snapshot.RelationshipDiff) string {
	var lines []string
	if len(diff.Added) > 0 {
		lines = append(lines, fmt.Sprintf(addedHeaderFormat, kind.Label()))
		for _, entry := range diff.Added {
			lines = append(lines, fmt.Sprintf(accountLineFormat, entry.UserName, identity.profileURL(entry.AccountID)))
		}
	}
	if len(diff.Removed) > 0 {
		lines = append(lines, fmt.Sprintf(removedHeaderFormat, kind.Label()))
		for _, entry := range diff.Removed {
			lines = append(lines, fmt.Sprintf(accountLineFormat, entry.UserName, identity.profileURL(entry.AccountID)))
		}
	}
	if len(diff.Renamed) > 0 {
		lines = append(lines, fmt.Sprintf(renamedHeaderFormat, kind.Label()))
		for _, entry := range diff.Renamed {
			lines = append(lines, fmt.Sprintf(renamedLineFormat, entry.PreviousName, entry.CurrentName, identity.profileURL(entry.AccountID)))
		}
	}
	return strings.Join(lines, "\n")
}

// truncateDescription keeps the description within the embed limit, counted in runes.
func truncateDescription(description string) string {
	runes := []rune(description)
	if len(runes) <= maxDescriptionLength {
		return description
	}
	suffixLength := len([]rune(truncatedDescriptionSuffix))
	return string(runes[:maxDescriptionLength-suffixLength]) + truncatedDescriptionSuffix
}
