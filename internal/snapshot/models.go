package snapshot

// Profile is a point-in-time view of the tracked account.
type Profile struct {
	AccountID   string   `json:"id"`
	UserName    string   `json:"username"`
	DisplayName string   `json:"display_name"`
	Description string   `json:"description"`
	AvatarURL   string   `json:"avatar_url,omitempty"`
	Presence    Presence `json:"presence"`
}

// RelationshipSet maps account identifiers to user names for one relationship list.
type RelationshipSet map[string]string

// RelationshipKind identifies one of the tracked relationship lists.
type RelationshipKind int

const (
	RelationshipFriends RelationshipKind = iota
	RelationshipFollowers
	RelationshipFollowing
)

const (
	relationshipLabelFriends   = "Friends"
	relationshipLabelFollowers = "Followers"
	relationshipLabelFollowing = "Following"
)

// RelationshipKinds lists the tracked relationship lists in rendering order.
var RelationshipKinds = []RelationshipKind{RelationshipFriends, RelationshipFollowers, RelationshipFollowing}

// Label returns the display label for the relationship list.
func (kind RelationshipKind) Label() string {
	switch kind {
	case RelationshipFriends:
		return relationshipLabelFriends
	case RelationshipFollowers:
		return relationshipLabelFollowers
	case RelationshipFollowing:
		return relationshipLabelFollowing
	default:
		return ""
	}
}

// Relationships holds the three relationship lists fetched during one tick.
type Relationships struct {
	Friends   RelationshipSet
	Followers RelationshipSet
	Following RelationshipSet
}

// Set returns the relationship list for the supplied kind.
func (relationships Relationships) Set(kind RelationshipKind) RelationshipSet {
	switch kind {
	case RelationshipFriends:
		return relationships.Friends
	case RelationshipFollowers:
		return relationships.Followers
	case RelationshipFollowing:
		return relationships.Following
	default:
		return nil
	}
}

// Replace stores the relationship list for the supplied kind.
func (relationships *Relationships) Replace(kind RelationshipKind, relationshipSet RelationshipSet) {
	switch kind {
	case RelationshipFriends:
		relationships.Friends = relationshipSet
	case RelationshipFollowers:
		relationships.Followers = relationshipSet
	case RelationshipFollowing:
		relationships.Following = relationshipSet
	}
}

// TrackerState is the last known bundle held by the monitor loop.
// A nil Profile means the tracker has not been initialized yet.
type TrackerState struct {
	Profile       *Profile
	Relationships Relationships
}

// Initialized reports whether a baseline profile has been stored.
func (state TrackerState) Initialized() bool {
	return state.Profile != nil
}

// AccountEntry is a single relationship list entry.
type AccountEntry struct {
	AccountID string
	UserName  string
}

// RenamedEntry is an account present on both sides of a diff under a different name.
type RenamedEntry struct {
	AccountID    string
	PreviousName string
	CurrentName  string
}

// RelationshipDiff describes how a relationship list changed between two ticks.
type RelationshipDiff struct {
	Added   []AccountEntry
	Removed []AccountEntry
	Renamed []RenamedEntry
}

// Empty reports whether the diff has no entries to render.
func (diff RelationshipDiff) Empty() bool {
	return len(diff.Added) == 0 && len(diff.Removed) == 0 && len(diff.Renamed) == 0
}

// FieldChange describes a single profile attribute that changed.
type FieldChange struct {
	Label         string
	PreviousValue string
	CurrentValue  string
}
