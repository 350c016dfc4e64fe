package snapshot

import (
	"encoding/json"
	"fmt"
)

// Presence is the online status of an account.
type Presence int

const (
	PresenceOffline Presence = iota
	PresenceOnline
	PresenceInGame
	PresenceInStudio
	PresenceInvisible
	PresenceUnknown
)

const (
	presenceLabelOffline   = "Offline"
	presenceLabelOnline    = "Online"
	presenceLabelInGame    = "In-Game"
	presenceLabelInStudio  = "In Studio"
	presenceLabelInvisible = "Invisible"
	presenceLabelUnknown   = "Unknown"
)

var presenceLabels = map[Presence]string{
	PresenceOffline:   presenceLabelOffline,
	PresenceOnline:    presenceLabelOnline,
	PresenceInGame:    presenceLabelInGame,
	PresenceInStudio:  presenceLabelInStudio,
	PresenceInvisible: presenceLabelInvisible,
	PresenceUnknown:   presenceLabelUnknown,
}

// PresenceFromCode maps a provider presence code to a Presence.
// Codes outside the known range map to PresenceUnknown.
func PresenceFromCode(code int) Presence {
	if code < int(PresenceOffline) || code >= int(PresenceUnknown) {
		return PresenceUnknown
	}
	return Presence(code)
}

// String returns the human readable presence label.
func (presence Presence) String() string {
	if label, exists := presenceLabels[presence]; exists {
		return label
	}
	return presenceLabelUnknown
}

// MarshalJSON encodes the presence as its label.
func (presence Presence) MarshalJSON() ([]byte, error) {
	return json.Marshal(presence.String())
}

// UnmarshalJSON decodes a presence label produced by MarshalJSON.
func (presence *Presence) UnmarshalJSON(data []byte) error {
	var label string
	if err := json.Unmarshal(data, &label); err != nil {
		return fmt.Errorf("decode presence: %w", err)
	}
	for candidate, candidateLabel := range presenceLabels {
		if candidateLabel == label {
			*presence = candidate
			return nil
		}
	}
	*presence = PresenceUnknown
	return nil
}
