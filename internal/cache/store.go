// Package cache provides TTL-based caching for tracker API data so that
// navigating the UI does not refetch unchanged issues and users.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/issuetrackhq/tracker-tui/internal/logger"
	"github.com/issuetrackhq/tracker-tui/internal/trackerapi"
)

// API is the subset of the tracker client the store depends on.
type API interface {
	ListIssues(ctx context.Context) ([]trackerapi.Issue, error)
	GetIssue(ctx context.Context, id int64) (trackerapi.Issue, error)
	CreateIssue(ctx context.Context, input trackerapi.NewIssue) error
	UpdateIssue(ctx context.Context, id int64, input trackerapi.NewIssue) error
	DeleteIssue(ctx context.Context, id int64) error
	GetUser(ctx context.Context, userID string) (trackerapi.User, error)
}

type issueEntry struct {
	issue     trackerapi.Issue
	fetchedAt time.Time
}

type userEntry struct {
	user      trackerapi.User
	fetchedAt time.Time
}

// Store caches issue and user reads with a freshness TTL and forwards
// mutations to the API, invalidating affected entries on success.
type Store struct {
	api API
	ttl time.Duration

	mu            sync.Mutex
	flight        singleflight.Group
	issues        []trackerapi.Issue
	issuesFetched time.Time
	issueByID     map[int64]issueEntry
	users         map[string]userEntry
}

// NewStore creates a Store over api with the given freshness window.
// A non-positive ttl disables caching and every read hits the API.
func NewStore(api API, ttl time.Duration) *Store {
	return &Store{
		api:       api,
		ttl:       ttl,
		issueByID: make(map[int64]issueEntry),
		users:     make(map[string]userEntry),
	}
}

// Issues returns the issue list, served from cache while fresh. Concurrent
// misses are collapsed into a single API request.
func (s *Store) Issues(ctx context.Context) ([]trackerapi.Issue, error) {
	s.mu.Lock()
	if s.issues != nil && s.fresh(s.issuesFetched) {
		cached := s.issues
		s.mu.Unlock()
		return cached, nil
	}
	s.mu.Unlock()

	v, err, _ := s.flight.Do("issues", func() (interface{}, error) {
		s.mu.Lock()
		if s.issues != nil && s.fresh(s.issuesFetched) {
			cached := s.issues
			s.mu.Unlock()
			return cached, nil
		}
		s.mu.Unlock()

		issues, err := s.api.ListIssues(ctx)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		s.issues = issues
		s.issuesFetched = time.Now()
		// The list carries full issues, so refresh the per-id entries too.
		for _, issue := range issues {
			s.issueByID[issue.ID] = issueEntry{issue: issue, fetchedAt: s.issuesFetched}
		}
		s.mu.Unlock()

		logger.Debug("cache: refreshed issue list count=%d", len(issues))
		return issues, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]trackerapi.Issue), nil
}

// Issue returns a single issue by id, served from cache while fresh.
// An id of zero means "no issue" and returns the zero value without any
// request; callers use it for create-mode forms.
func (s *Store) Issue(ctx context.Context, id int64) (trackerapi.Issue, error) {
	if id == 0 {
		return trackerapi.Issue{}, nil
	}

	v, err, _ := s.flight.Do(fmt.Sprintf("issue:%d", id), func() (interface{}, error) {
		s.mu.Lock()
		if entry, ok := s.issueByID[id]; ok && s.fresh(entry.fetchedAt) {
			s.mu.Unlock()
			return entry.issue, nil
		}
		s.mu.Unlock()

		issue, err := s.api.GetIssue(ctx, id)
		if err != nil {
			return trackerapi.Issue{}, err
		}

		s.mu.Lock()
		s.issueByID[id] = issueEntry{issue: issue, fetchedAt: time.Now()}
		s.mu.Unlock()
		return issue, nil
	})
	if err != nil {
		return trackerapi.Issue{}, err
	}
	return v.(trackerapi.Issue), nil
}

// User returns the display projection for a user id, served from cache while
// fresh. An empty id returns the zero value without any request.
func (s *Store) User(ctx context.Context, userID string) (trackerapi.User, error) {
	if userID == "" {
		return trackerapi.User{}, nil
	}

	v, err, _ := s.flight.Do("user:"+userID, func() (interface{}, error) {
		s.mu.Lock()
		if entry, ok := s.users[userID]; ok && s.fresh(entry.fetchedAt) {
			s.mu.Unlock()
			return entry.user, nil
		}
		s.mu.Unlock()

		user, err := s.api.GetUser(ctx, userID)
		if err != nil {
			return trackerapi.User{}, err
		}

		s.mu.Lock()
		s.users[userID] = userEntry{user: user, fetchedAt: time.Now()}
		s.mu.Unlock()
		return user, nil
	})
	if err != nil {
		return trackerapi.User{}, err
	}
	return v.(trackerapi.User), nil
}

// CreateIssue forwards the create and invalidates the issue list on success.
func (s *Store) CreateIssue(ctx context.Context, input trackerapi.NewIssue) error {
	if err := s.api.CreateIssue(ctx, input); err != nil {
		return err
	}
	s.InvalidateIssues()
	return nil
}

// UpdateIssue forwards the update and invalidates the list and the issue's
// entry on success.
func (s *Store) UpdateIssue(ctx context.Context, id int64, input trackerapi.NewIssue) error {
	if err := s.api.UpdateIssue(ctx, id, input); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.issueByID, id)
	s.issues = nil
	s.mu.Unlock()
	return nil
}

// DeleteIssue forwards the delete and invalidates the list and the issue's
// entry on success.
func (s *Store) DeleteIssue(ctx context.Context, id int64) error {
	if err := s.api.DeleteIssue(ctx, id); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.issueByID, id)
	s.issues = nil
	s.mu.Unlock()
	return nil
}

// InvalidateIssues drops the cached issue list so the next read refetches.
func (s *Store) InvalidateIssues() {
	s.mu.Lock()
	s.issues = nil
	s.mu.Unlock()
}

// InvalidateAll drops every cached entry.
func (s *Store) InvalidateAll() {
	s.mu.Lock()
	s.issues = nil
	s.issueByID = make(map[int64]issueEntry)
	s.users = make(map[string]userEntry)
	s.mu.Unlock()
}

func (s *Store) fresh(fetchedAt time.Time) bool {
	if s.ttl <= 0 {
		return false
	}
	return time.Since(fetchedAt) < s.ttl
}
