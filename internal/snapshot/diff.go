package snapshot

import (
	"sort"
	"strconv"
)

const (
	fieldLabelDisplayName = "Display Name"
	fieldLabelDescription = "Description"
	fieldLabelPresence    = "Presence"
)

// ProfilesDiffer reports whether the display name, description, or presence changed.
// Avatar and user name changes are not considered profile changes.
func ProfilesDiffer(previousProfile Profile, currentProfile Profile) bool {
	return len(ProfileChanges(previousProfile, currentProfile)) > 0
}

// ProfileChanges lists the tracked profile fields that differ, in rendering order.
func ProfileChanges(previousProfile Profile, currentProfile Profile) []FieldChange {
	candidates := []FieldChange{
		{Label: fieldLabelDisplayName, PreviousValue: previousProfile.DisplayName, CurrentValue: currentProfile.DisplayName},
		{Label: fieldLabelDescription, PreviousValue: previousProfile.Description, CurrentValue: currentProfile.Description},
		{Label: fieldLabelPresence, PreviousValue: previousProfile.Presence.String(), CurrentValue: currentProfile.Presence.String()},
	}
	var changes []FieldChange
	for _, candidate := range candidates {
		if candidate.PreviousValue != candidate.CurrentValue {
			changes = append(changes, candidate)
		}
	}
	return changes
}

// DiffRelationships compares two relationship lists. Entries are sorted by ascending account identifier.
// Accounts present on both sides under a different name are reported as renamed, never as added or removed.
func DiffRelationships(previousSet RelationshipSet, currentSet RelationshipSet) RelationshipDiff {
	var diff RelationshipDiff
	for accountID, userName := range currentSet {
		previousName, existed := previousSet[accountID]
		if !existed {
			diff.Added = append(diff.Added, AccountEntry{AccountID: accountID, UserName: userName})
			continue
		}
		if previousName != userName {
			diff.Renamed = append(diff.Renamed, RenamedEntry{AccountID: accountID, PreviousName: previousName, CurrentName: userName})
		}
	}
	for accountID, userName := range previousSet {
		if _, exists := currentSet[accountID]; !exists {
			diff.Removed = append(diff.Removed, AccountEntry{AccountID: accountID, UserName: userName})
		}
	}

	sort.Slice(diff.Added, func(firstIndex, secondIndex int) bool {
		return accountIDLess(diff.Added[firstIndex].AccountID, diff.Added[secondIndex].AccountID)
	})
	sort.Slice(diff.Removed, func(firstIndex, secondIndex int) bool {
		return accountIDLess(diff.Removed[firstIndex].AccountID, diff.Removed[secondIndex].AccountID)
	})
	sort.Slice(diff.Renamed, func(firstIndex, secondIndex int) bool {
		return accountIDLess(diff.Renamed[firstIndex].AccountID, diff.Renamed[secondIndex].AccountID)
	})
	return diff
}

// RelationshipSetsEqual reports whether two relationship lists hold the same identifiers and names.
func RelationshipSetsEqual(firstSet RelationshipSet, secondSet RelationshipSet) bool {
	if len(firstSet) != len(secondSet) {
		return false
	}
	for accountID, userName := range firstSet {
		otherName, exists := secondSet[accountID]
		if !exists || otherName != userName {
			return false
		}
	}
	return true
}

// Delta is the change description between a baseline and the current tick.
type Delta struct {
	Profile        Profile
	ProfileChanges []FieldChange
	Relationships  map[RelationshipKind]RelationshipDiff

	relationshipsChanged bool
}

// BuildDelta compares a baseline state against the state fetched this tick.
// The baseline must be initialized.
func BuildDelta(baselineState TrackerState, currentState TrackerState) Delta {
	var baselineProfile, currentProfile Profile
	if baselineState.Profile != nil {
		baselineProfile = *baselineState.Profile
	}
	if currentState.Profile != nil {
		currentProfile = *currentState.Profile
	}

	delta := Delta{
		Profile:        currentProfile,
		ProfileChanges: ProfileChanges(baselineProfile, currentProfile),
		Relationships:  make(map[RelationshipKind]RelationshipDiff, len(RelationshipKinds)),
	}
	for _, kind := range RelationshipKinds {
		baselineSet := baselineState.Relationships.Set(kind)
		currentSet := currentState.Relationships.Set(kind)
		delta.Relationships[kind] = DiffRelationships(baselineSet, currentSet)
		if !RelationshipSetsEqual(baselineSet, currentSet) {
			delta.relationshipsChanged = true
		}
	}
	return delta
}

// Changed reports whether the tick differs from the baseline.
func (delta Delta) Changed() bool {
	return len(delta.ProfileChanges) > 0 || delta.relationshipsChanged
}

// Empty reports whether the delta has no renderable section.
func (delta Delta) Empty() bool {
	if len(delta.ProfileChanges) > 0 {
		return false
	}
	for _, relationshipDiff := range delta.Relationships {
		if !relationshipDiff.Empty() {
			return false
		}
	}
	return true
}

func accountIDLess(firstAccountID string, secondAccountID string) bool {
	firstNumeric, firstErr := strconv.ParseUint(firstAccountID, 10, 64)
	secondNumeric, secondErr := strconv.ParseUint(secondAccountID, 10, 64)
	if firstErr == nil && secondErr == nil {
		return firstNumeric < secondNumeric
	}
	return firstAccountID < secondAccountID
}
