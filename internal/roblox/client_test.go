package roblox_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/profile-watch/pwatch/internal/roblox"
	"github.com/profile-watch/pwatch/internal/snapshot"
)

const (
	jsonContentType     = "application/json"
	contentTypeHeader   = "Content-Type"
	testAccountID       = "1"
	testMissingAccount  = "404"
	testAvatarImageURL  = "https://tr.rbxcdn.com/neo-headshot.png"
	testSecondPageToken = "page-2"
)

type fakeProviderServer struct {
	server             *httptest.Server
	batchRequestCount  atomic.Int32
	failFollowers      bool
	failPresence       bool
	emptyPresence      bool
	omitDescription    bool
	unknownUserNames   map[string]bool
	usernamesResponses map[string]int64
}

func newFakeProviderServer(t *testing.T) *fakeProviderServer {
	t.Helper()
	provider := &fakeProviderServer{
		unknownUserNames:   map[string]bool{},
		usernamesResponses: map[string]int64{"neo": 1},
	}
	provider.server = httptest.NewServer(http.HandlerFunc(provider.serveHTTP))
	t.Cleanup(provider.server.Close)
	return provider
}

func (provider *fakeProviderServer) client(t *testing.T) *roblox.Client {
	t.Helper()
	client, err := roblox.NewClient(roblox.Config{
		UsersBaseURL:      provider.server.URL,
		ThumbnailsBaseURL: provider.server.URL,
		PresenceBaseURL:   provider.server.URL,
		FriendsBaseURL:    provider.server.URL,
		HTTPClient:        provider.server.Client(),
		MaxConcurrent:     2,
	})
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	return client
}

func writeJSON(writer http.ResponseWriter, statusCode int, payload any) {
	writer.Header().Set(contentTypeHeader, jsonContentType)
	writer.WriteHeader(statusCode)
	_ = json.NewEncoder(writer).Encode(payload)
}

func (provider *fakeProviderServer) serveHTTP(writer http.ResponseWriter, request *http.Request) {
	switch {
	case request.Method == http.MethodPost && request.URL.Path == "/v1/usernames/users":
		var body struct {
			UserNames []string `json:"usernames"`
		}
		_ = json.NewDecoder(request.Body).Decode(&body)
		data := []map[string]any{}
		for _, userName := range body.UserNames {
			if accountID, exists := provider.usernamesResponses[userName]; exists {
				data = append(data, map[string]any{"id": accountID, "name": userName})
			}
		}
		writeJSON(writer, http.StatusOK, map[string]any{"data": data})
	case request.Method == http.MethodGet && request.URL.Path == "/v1/users/"+testMissingAccount:
		writeJSON(writer, http.StatusNotFound, map[string]any{"errors": []any{}})
	case request.Method == http.MethodGet && request.URL.Path == "/v1/users/"+testAccountID:
		profile := map[string]any{"id": 1, "name": "neo", "displayName": "Neo"}
		if !provider.omitDescription {
			profile["description"] = "hi"
		}
		writeJSON(writer, http.StatusOK, profile)
	case request.URL.Path == "/v1/users/avatar-headshot":
		writeJSON(writer, http.StatusOK, map[string]any{"data": []map[string]any{{"imageUrl": testAvatarImageURL}}})
	case request.URL.Path == "/v1/presence/users":
		if provider.failPresence {
			writer.WriteHeader(http.StatusInternalServerError)
			return
		}
		if provider.emptyPresence {
			writeJSON(writer, http.StatusOK, map[string]any{"userPresences": []map[string]any{}})
			return
		}
		writeJSON(writer, http.StatusOK, map[string]any{"userPresences": []map[string]any{{"userPresenceType": 2}}})
	case request.URL.Path == "/v1/users/1/friends":
		writeJSON(writer, http.StatusOK, map[string]any{"data": []map[string]any{{"id": 42}}, "nextPageCursor": nil})
	case request.URL.Path == "/v1/users/1/followers":
		if provider.failFollowers {
			writer.WriteHeader(http.StatusTooManyRequests)
			return
		}
		if request.URL.Query().Get("cursor") == testSecondPageToken {
			writeJSON(writer, http.StatusOK, map[string]any{"data": []map[string]any{{"id": 8}}, "nextPageCursor": ""})
			return
		}
		writeJSON(writer, http.StatusOK, map[string]any{"data": []map[string]any{{"id": 7}, {"id": 42}}, "nextPageCursor": testSecondPageToken})
	case request.URL.Path == "/v1/users/1/followings":
		writeJSON(writer, http.StatusOK, map[string]any{"data": []map[string]any{}})
	case request.Method == http.MethodPost && request.URL.Path == "/v1/users":
		provider.batchRequestCount.Add(1)
		var body struct {
			UserIDs []int64 `json:"userIds"`
		}
		_ = json.NewDecoder(request.Body).Decode(&body)
		names := map[int64]string{7: "morpheus", 8: "oracle", 42: "trinity"}
		data := []map[string]any{}
		for _, userID := range body.UserIDs {
			name, exists := names[userID]
			if !exists {
				continue
			}
			data = append(data, map[string]any{"id": userID, "name": name})
		}
		writeJSON(writer, http.StatusOK, map[string]any{"data": data})
	default:
		writer.WriteHeader(http.StatusNotFound)
	}
}

func TestResolveUserID(t *testing.T) {
	provider := newFakeProviderServer(t)
	client := provider.client(t)

	testCases := []struct {
		name          string
		identifier    string
		expectedID    string
		expectedError error
		expectError   bool
	}{
		{name: "numeric identifier passes through", identifier: " 12345 ", expectedID: "12345"},
		{name: "user name resolves", identifier: "neo", expectedID: "1"},
		{name: "unknown user name", identifier: "smith", expectError: true, expectedError: roblox.ErrUserNotFound},
		{name: "empty identifier", identifier: "   ", expectError: true},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			accountID, err := client.ResolveUserID(context.Background(), testCase.identifier)
			if testCase.expectError {
				if err == nil {
					t.Fatalf("expected error, got id %s", accountID)
				}
				if testCase.expectedError != nil && !errors.Is(err, testCase.expectedError) {
					t.Fatalf("expected %v, got %v", testCase.expectedError, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if accountID != testCase.expectedID {
				t.Fatalf("ResolveUserID = %s, want %s", accountID, testCase.expectedID)
			}
		})
	}
}

func TestFetchProfile(t *testing.T) {
	testCases := []struct {
		name            string
		configure       func(provider *fakeProviderServer)
		accountID       string
		expectedProfile snapshot.Profile
		expectedError   error
	}{
		{
			name:      "complete profile",
			configure: func(*fakeProviderServer) {},
			accountID: testAccountID,
			expectedProfile: snapshot.Profile{
				AccountID: "1", UserName: "neo", DisplayName: "Neo", Description: "hi",
				AvatarURL: testAvatarImageURL, Presence: snapshot.PresenceInGame,
			},
		},
		{
			name: "presence failure degrades to unknown and description defaults",
			configure: func(provider *fakeProviderServer) {
				provider.failPresence = true
				provider.omitDescription = true
			},
			accountID: testAccountID,
			expectedProfile: snapshot.Profile{
				AccountID: "1", UserName: "neo", DisplayName: "Neo", Description: "No description.",
				AvatarURL: testAvatarImageURL, Presence: snapshot.PresenceUnknown,
			},
		},
		{
			name: "empty presence response degrades to unknown",
			configure: func(provider *fakeProviderServer) {
				provider.emptyPresence = true
			},
			accountID: testAccountID,
			expectedProfile: snapshot.Profile{
				AccountID: "1", UserName: "neo", DisplayName: "Neo", Description: "hi",
				AvatarURL: testAvatarImageURL, Presence: snapshot.PresenceUnknown,
			},
		},
		{
			name:          "missing profile",
			configure:     func(*fakeProviderServer) {},
			accountID:     testMissingAccount,
			expectedError: roblox.ErrProfileNotFound,
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			provider := newFakeProviderServer(t)
			testCase.configure(provider)

			profile, err := provider.client(t).FetchProfile(context.Background(), testCase.accountID)
			if testCase.expectedError != nil {
				if !errors.Is(err, testCase.expectedError) {
					t.Fatalf("expected %v, got %v", testCase.expectedError, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if difference := cmp.Diff(testCase.expectedProfile, profile); difference != "" {
				t.Fatalf("unexpected profile (-want +got):\n%s", difference)
			}
		})
	}
}

func TestFetchRelationships(t *testing.T) {
	testCases := []struct {
		name        string
		kind        snapshot.RelationshipKind
		failure     bool
		expectedSet snapshot.RelationshipSet
		expectError bool
	}{
		{
			name:        "single page friends",
			kind:        snapshot.RelationshipFriends,
			expectedSet: snapshot.RelationshipSet{"42": "trinity"},
		},
		{
			name:        "followers follow the page cursor",
			kind:        snapshot.RelationshipFollowers,
			expectedSet: snapshot.RelationshipSet{"7": "morpheus", "8": "oracle", "42": "trinity"},
		},
		{
			name:        "empty following",
			kind:        snapshot.RelationshipFollowing,
			expectedSet: snapshot.RelationshipSet{},
		},
		{
			name:        "failed page surfaces an error",
			kind:        snapshot.RelationshipFollowers,
			failure:     true,
			expectError: true,
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			provider := newFakeProviderServer(t)
			provider.failFollowers = testCase.failure

			relationshipSet, err := provider.client(t).FetchRelationships(context.Background(), testAccountID, testCase.kind)
			if testCase.expectError {
				if err == nil {
					t.Fatalf("expected error, got %v", relationshipSet)
				}
				if !strings.Contains(err.Error(), "followers") {
					t.Fatalf("expected error to name the relationship list, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if difference := cmp.Diff(testCase.expectedSet, relationshipSet); difference != "" {
				t.Fatalf("unexpected relationship set (-want +got):\n%s", difference)
			}
		})
	}
}

func TestFetchRelationshipsKeepsUnresolvedIdentifiers(t *testing.T) {
	provider := newFakeProviderServer(t)
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path == "/v1/users/1/friends" {
			writeJSON(writer, http.StatusOK, map[string]any{"data": []map[string]any{{"id": 42}, {"id": 99}}})
			return
		}
		provider.serveHTTP(writer, request)
	}))
	t.Cleanup(server.Close)

	client, err := roblox.NewClient(roblox.Config{UsersBaseURL: server.URL, FriendsBaseURL: server.URL, HTTPClient: server.Client()})
	if err != nil {
		t.Fatalf("create client: %v", err)
	}

	relationshipSet, err := client.FetchRelationships(context.Background(), testAccountID, snapshot.RelationshipFriends)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectedSet := snapshot.RelationshipSet{"42": "trinity", "99": "99"}
	if difference := cmp.Diff(expectedSet, relationshipSet); difference != "" {
		t.Fatalf("unexpected relationship set (-want +got):\n%s", difference)
	}
}

func TestFetchRelationshipsSharedLookupOutlivesCancelledCaller(t *testing.T) {
	provider := newFakeProviderServer(t)
	batchStarted := make(chan struct{}, 1)
	followingServed := make(chan struct{}, 1)
	releaseBatch := make(chan struct{})
	var releaseOnce sync.Once
	release := func() { releaseOnce.Do(func() { close(releaseBatch) }) }

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		switch {
		case request.URL.Path == "/v1/users/1/followings":
			writeJSON(writer, http.StatusOK, map[string]any{"data": []map[string]any{{"id": 42}}})
			select {
			case followingServed <- struct{}{}:
			default:
			}
			return
		case request.Method == http.MethodPost && request.URL.Path == "/v1/users":
			select {
			case batchStarted <- struct{}{}:
			default:
			}
			<-releaseBatch
		}
		provider.serveHTTP(writer, request)
	}))
	t.Cleanup(server.Close)
	t.Cleanup(release)

	client, err := roblox.NewClient(roblox.Config{UsersBaseURL: server.URL, FriendsBaseURL: server.URL, HTTPClient: server.Client()})
	if err != nil {
		t.Fatalf("create client: %v", err)
	}

	cancelledContext, cancel := context.WithCancel(context.Background())
	defer cancel()
	cancelledResult := make(chan error, 1)
	go func() {
		_, fetchErr := client.FetchRelationships(cancelledContext, testAccountID, snapshot.RelationshipFriends)
		cancelledResult <- fetchErr
	}()
	select {
	case <-batchStarted:
	case <-time.After(2 * time.Second):
		t.Fatalf("batch lookup was not requested")
	}

	type fetchResult struct {
		relationshipSet snapshot.RelationshipSet
		err             error
	}
	waitingResult := make(chan fetchResult, 1)
	go func() {
		relationshipSet, fetchErr := client.FetchRelationships(context.Background(), testAccountID, snapshot.RelationshipFollowing)
		waitingResult <- fetchResult{relationshipSet: relationshipSet, err: fetchErr}
	}()
	select {
	case <-followingServed:
	case <-time.After(2 * time.Second):
		t.Fatalf("following list was not requested")
	}

	cancel()
	select {
	case cancelledErr := <-cancelledResult:
		if !errors.Is(cancelledErr, context.Canceled) {
			t.Fatalf("expected cancellation, got %v", cancelledErr)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("cancelled caller did not return")
	}
	release()

	select {
	case result := <-waitingResult:
		if result.err != nil {
			t.Fatalf("unexpected error: %v", result.err)
		}
		if difference := cmp.Diff(snapshot.RelationshipSet{"42": "trinity"}, result.relationshipSet); difference != "" {
			t.Fatalf("unexpected relationship set (-want +got):\n%s", difference)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("waiting caller did not return")
	}
}

func TestNewClientRejectsInvalidBaseURL(t *testing.T) {
	if _, err := roblox.NewClient(roblox.Config{UsersBaseURL: "users.roblox.com"}); err == nil {
		t.Fatalf("expected error for base url without scheme")
	}
}
