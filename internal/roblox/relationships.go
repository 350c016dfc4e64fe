package roblox

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/profile-watch/pwatch/internal/snapshot"
)

const (
	friendsPathFormat              = "/v1/users/%s/friends"
	followersPathFormat            = "/v1/users/%s/followers"
	followingPathFormat            = "/v1/users/%s/followings"
	batchUsersPath                 = "/v1/users"
	pageLimitValue                 = "100"
	userLookupBatchSize            = 100
	errMessageUnknownRelationship  = "unknown relationship kind"
	errMessageFetchRelationships   = "fetch relationships"
	errMessageResolveUserNames     = "resolve user names"
	errMessageRepeatedPageCursor   = "relationship pagination returned a repeated cursor"
	logMessageRelationshipsFetched = "relationships fetched"
	logFieldRelationship           = "relationship"
	logFieldCount                  = "count"
	logFieldPages                  = "pages"
)

var errRepeatedPageCursor = errors.New(errMessageRepeatedPageCursor)

type relationshipPageResponse struct {
	NextPageCursor string `json:"nextPageCursor"`
	Data           []struct {
		ID int64 `json:"id"`
	} `json:"data"`
}

type batchUsersRequest struct {
	UserIDs            []int64 `json:"userIds"`
	ExcludeBannedUsers bool    `json:"excludeBannedUsers"`
}

type batchUsersResponse struct {
	Data []struct {
		ID          int64  `json:"id"`
		Name        string `json:"name"`
		DisplayName string `json:"displayName"`
	} `json:"data"`
}

// FetchRelationships retrieves the complete relationship list of the supplied kind.
// Accounts the batch lookup omits keep their identifier as the user name.
func (client *Client) FetchRelationships(ctx context.Context, accountID string, kind snapshot.RelationshipKind) (snapshot.RelationshipSet, error) {
	pathFormat, err := relationshipPathFormat(kind)
	if err != nil {
		return nil, err
	}

	memberIDs, pageCount, err := client.fetchPaginatedIDs(ctx, client.friendsBaseURL+fmt.Sprintf(pathFormat, accountID))
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", errMessageFetchRelationships, strings.ToLower(kind.Label()), err)
	}

	userNames, err := client.resolveUserNames(ctx, memberIDs)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", errMessageFetchRelationships, strings.ToLower(kind.Label()), err)
	}

	relationshipSet := make(snapshot.RelationshipSet, len(memberIDs))
	for _, memberID := range memberIDs {
		if userName, exists := userNames[memberID]; exists {
			relationshipSet[memberID] = userName
			continue
		}
		relationshipSet[memberID] = memberID
	}

	client.logger.Debug(logMessageRelationshipsFetched,
		zap.String(logFieldAccountID, accountID),
		zap.String(logFieldRelationship, kind.Label()),
		zap.Int(logFieldCount, len(relationshipSet)),
		zap.Int(logFieldPages, pageCount),
	)
	return relationshipSet, nil
}

func relationshipPathFormat(kind snapshot.RelationshipKind) (string, error) {
	switch kind {
	case snapshot.RelationshipFriends:
		return friendsPathFormat, nil
	case snapshot.RelationshipFollowers:
		return followersPathFormat, nil
	case snapshot.RelationshipFollowing:
		return followingPathFormat, nil
	default:
		return "", fmt.Errorf("%s: %d", errMessageUnknownRelationship, kind)
	}
}

func (client *Client) fetchPaginatedIDs(ctx context.Context, requestURL string) ([]string, int, error) {
	var memberIDs []string
	seenCursors := map[string]struct{}{}
	cursor := ""
	pageCount := 0
	for {
		queryParameters := map[string]string{"limit": pageLimitValue}
		if cursor != "" {
			queryParameters["cursor"] = cursor
		}

		var pageResponse relationshipPageResponse
		response, err := client.restClient.R().
			SetContext(ctx).
			SetQueryParams(queryParameters).
			SetResult(&pageResponse).
			Get(requestURL)
		if err != nil {
			return nil, pageCount, err
		}
		if !response.IsSuccess() {
			return nil, pageCount, unexpectedStatus(response)
		}
		pageCount++

		for _, member := range pageResponse.Data {
			memberIDs = append(memberIDs, strconv.FormatInt(member.ID, 10))
		}

		cursor = strings.TrimSpace(pageResponse.NextPageCursor)
		if cursor == "" {
			return memberIDs, pageCount, nil
		}
		if _, repeated := seenCursors[cursor]; repeated {
			return nil, pageCount, errRepeatedPageCursor
		}
		seenCursors[cursor] = struct{}{}
	}
}

// resolveUserNames looks up user names in batches using a bounded worker pool.
func (client *Client) resolveUserNames(ctx context.Context, accountIDs []string) (map[string]string, error) {
	userNames := make(map[string]string, len(accountIDs))
	if len(accountIDs) == 0 {
		return userNames, nil
	}

	var userNamesMutex sync.Mutex
	group, groupContext := errgroup.WithContext(ctx)
	group.SetLimit(client.workerCount)
	for startIndex := 0; startIndex < len(accountIDs); startIndex += userLookupBatchSize {
		endIndex := startIndex + userLookupBatchSize
		if endIndex > len(accountIDs) {
			endIndex = len(accountIDs)
		}
		batch := accountIDs[startIndex:endIndex]
		group.Go(func() error {
			batchNames, err := client.lookupBatch(groupContext, batch)
			if err != nil {
				return err
			}
			userNamesMutex.Lock()
			for accountID, userName := range batchNames {
				userNames[accountID] = userName
			}
			userNamesMutex.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("%s: %w", errMessageResolveUserNames, err)
	}
	return userNames, nil
}

// lookupBatch shares one request between concurrent lookups of an identical batch,
// which happens when two relationship lists hold the same members in the same order.
// The shared request is detached from the caller's cancellation and bounded by the
// client timeout; each caller still stops waiting when its own context ends.
func (client *Client) lookupBatch(ctx context.Context, accountIDs []string) (map[string]string, error) {
	flightKey := strings.Join(accountIDs, ",")
	sharedContext := context.WithoutCancel(ctx)
	resultChannel := client.flightGroup.DoChan(flightKey, func() (interface{}, error) {
		return client.requestBatch(sharedContext, accountIDs)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result := <-resultChannel:
		if result.Err != nil {
			return nil, result.Err
		}
		batchNames, _ := result.Val.(map[string]string)
		return batchNames, nil
	}
}

func (client *Client) requestBatch(ctx context.Context, accountIDs []string) (map[string]string, error) {
	numericIDs := make([]int64, 0, len(accountIDs))
	for _, accountID := range accountIDs {
		numericID, err := strconv.ParseInt(accountID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", errMessageInvalidAccountID, err)
		}
		numericIDs = append(numericIDs, numericID)
	}

	var usersResponse batchUsersResponse
	response, err := client.restClient.R().
		SetContext(ctx).
		SetBody(batchUsersRequest{UserIDs: numericIDs}).
		SetResult(&usersResponse).
		Post(client.usersBaseURL + batchUsersPath)
	if err != nil {
		return nil, err
	}
	if !response.IsSuccess() {
		return nil, unexpectedStatus(response)
	}

	batchNames := make(map[string]string, len(usersResponse.Data))
	for _, user := range usersResponse.Data {
		batchNames[strconv.FormatInt(user.ID, 10)] = user.Name
	}
	return batchNames, nil
}
