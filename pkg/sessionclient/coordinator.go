// Package sessionclient keeps one access token fresh for an API client.
// When a request fails authentication, the coordinator performs a single
// refresh exchange no matter how many requests failed concurrently, and
// every caller waits for that one outcome.
package sessionclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Sentinel errors exposed by the coordinator.
var (
	ErrMissingRefresher = errors.New("sessionclient.missing_refresher")
	ErrRefreshRejected  = errors.New("sessionclient.refresh_rejected")
)

// Refresher performs the token refresh exchange against the server. It
// returns the new access token.
type Refresher interface {
	Refresh(ctx context.Context) (string, error)
}

// RefresherFunc adapts a function to the Refresher interface.
type RefresherFunc func(ctx context.Context) (string, error)

// Refresh calls the wrapped function.
func (refresh RefresherFunc) Refresh(ctx context.Context) (string, error) {
	return refresh(ctx)
}

// TokenStorage is an optional fallback the coordinator reads at most once,
// on first access, to seed the in-memory token.
type TokenStorage interface {
	Load() (string, error)
}

// Config configures a Coordinator.
type Config struct {
	Refresher Refresher
	Storage   TokenStorage
	// OnSignOut runs after a refresh fails terminally and the token has been
	// cleared.
	OnSignOut func()
	Logger    *zap.Logger
}

type refreshOutcome struct {
	token string
	err   error
}

// Coordinator owns the client's access token. It is safe for concurrent use;
// all state transitions happen under one mutex, and callers that arrive while
// a refresh is in flight park on a waiter channel instead of starting a
// second exchange.
type Coordinator struct {
	mutex      sync.Mutex
	token      string
	hydrated   bool
	refreshing bool
	waiters    []chan refreshOutcome

	refresher Refresher
	storage   TokenStorage
	onSignOut func()
	logger    *zap.Logger
}

// NewCoordinator constructs a Coordinator.
func NewCoordinator(configuration Config) (*Coordinator, error) {
	if configuration.Refresher == nil {
		return nil, fmt.Errorf("sessionclient.new: %w", ErrMissingRefresher)
	}
	logger := configuration.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		refresher: configuration.Refresher,
		storage:   configuration.Storage,
		onSignOut: configuration.OnSignOut,
		logger:    logger,
	}, nil
}

// Token returns the current access token, hydrating from storage on first
// access. An empty string means no session.
func (coordinator *Coordinator) Token() string {
	coordinator.mutex.Lock()
	defer coordinator.mutex.Unlock()
	coordinator.hydrateLocked()
	return coordinator.token
}

// SetToken installs a token obtained out of band, such as after login.
func (coordinator *Coordinator) SetToken(token string) {
	coordinator.mutex.Lock()
	defer coordinator.mutex.Unlock()
	coordinator.hydrated = true
	coordinator.token = token
}

// Clear drops the current token without contacting the server.
func (coordinator *Coordinator) Clear() {
	coordinator.mutex.Lock()
	defer coordinator.mutex.Unlock()
	coordinator.hydrated = true
	coordinator.token = ""
}

// EnsureFreshToken is called after a request failed authentication with
// failedToken. It returns a token expected to work, refreshing at most once
// across all concurrent callers:
//
//   - if the stored token already differs from the failed one, another
//     caller's refresh has landed and that token is returned directly;
//   - if a refresh is in flight, the caller waits for its outcome;
//   - otherwise this caller performs the refresh and fans the outcome out to
//     everyone who queued behind it.
//
// A failed refresh is terminal: the token is cleared, the sign-out hook runs,
// and every waiter receives the error.
func (coordinator *Coordinator) EnsureFreshToken(ctx context.Context, failedToken string) (string, error) {
	coordinator.mutex.Lock()
	coordinator.hydrateLocked()

	if coordinator.token != "" && coordinator.token != failedToken {
		token := coordinator.token
		coordinator.mutex.Unlock()
		return token, nil
	}

	if coordinator.refreshing {
		waiter := make(chan refreshOutcome, 1)
		coordinator.waiters = append(coordinator.waiters, waiter)
		coordinator.mutex.Unlock()
		outcome := <-waiter
		return outcome.token, outcome.err
	}

	coordinator.refreshing = true
	coordinator.mutex.Unlock()

	token, refreshErr := coordinator.refresher.Refresh(ctx)
	if refreshErr == nil && strings.TrimSpace(token) == "" {
		refreshErr = fmt.Errorf("sessionclient.refresh: empty token: %w", ErrRefreshRejected)
	}

	coordinator.mutex.Lock()
	coordinator.refreshing = false
	if refreshErr != nil {
		coordinator.token = ""
	} else {
		coordinator.token = token
	}
	waiters := coordinator.waiters
	coordinator.waiters = nil
	coordinator.mutex.Unlock()

	outcome := refreshOutcome{token: token, err: refreshErr}
	if refreshErr != nil {
		outcome.token = ""
	}
	for _, waiter := range waiters {
		waiter <- outcome
	}

	if refreshErr != nil {
		coordinator.logger.Warn("session refresh failed",
			zap.String("code", "sessionclient.refresh_failed"),
			zap.Error(refreshErr))
		if coordinator.onSignOut != nil {
			coordinator.onSignOut()
		}
		return "", refreshErr
	}
	return token, nil
}

func (coordinator *Coordinator) hydrateLocked() {
	if coordinator.hydrated {
		return
	}
	coordinator.hydrated = true
	if coordinator.storage == nil {
		return
	}
	stored, loadErr := coordinator.storage.Load()
	if loadErr != nil {
		coordinator.logger.Debug("token storage read failed",
			zap.String("code", "sessionclient.storage_read_failed"),
			zap.Error(loadErr))
		return
	}
	coordinator.token = strings.TrimSpace(stored)
}
