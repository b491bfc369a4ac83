package sessionclient

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type countingRefresher struct {
	mutex sync.Mutex
	calls int
	gate  chan struct{}
	token string
	err   error
}

func (refresher *countingRefresher) Refresh(ctx context.Context) (string, error) {
	refresher.mutex.Lock()
	refresher.calls++
	refresher.mutex.Unlock()
	if refresher.gate != nil {
		<-refresher.gate
	}
	return refresher.token, refresher.err
}

func (refresher *countingRefresher) callCount() int {
	refresher.mutex.Lock()
	defer refresher.mutex.Unlock()
	return refresher.calls
}

type countingStorage struct {
	mutex sync.Mutex
	loads int
	token string
}

func (storage *countingStorage) Load() (string, error) {
	storage.mutex.Lock()
	defer storage.mutex.Unlock()
	storage.loads++
	return storage.token, nil
}

func newTestCoordinator(t *testing.T, configuration Config) *Coordinator {
	t.Helper()
	coordinator, err := NewCoordinator(configuration)
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	return coordinator
}

func TestNewCoordinatorRequiresRefresher(t *testing.T) {
	t.Parallel()
	if _, err := NewCoordinator(Config{}); !errors.Is(err, ErrMissingRefresher) {
		t.Fatalf("expected ErrMissingRefresher, got %v", err)
	}
}

func TestConcurrentFailuresShareOneRefresh(t *testing.T) {
	t.Parallel()

	const concurrentCallers = 16
	refresher := &countingRefresher{token: "fresh-token", gate: make(chan struct{})}
	coordinator := newTestCoordinator(t, Config{Refresher: refresher})
	coordinator.SetToken("stale-token")

	results := make(chan string, concurrentCallers)
	failures := make(chan error, concurrentCallers)
	for index := 0; index < concurrentCallers; index++ {
		go func() {
			token, err := coordinator.EnsureFreshToken(context.Background(), "stale-token")
			if err != nil {
				failures <- err
				return
			}
			results <- token
		}()
	}

	// Hold the refresh open until every other caller has parked behind it.
	deadline := time.Now().Add(5 * time.Second)
	for {
		coordinator.mutex.Lock()
		parked := len(coordinator.waiters)
		coordinator.mutex.Unlock()
		if parked == concurrentCallers-1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("only %d callers parked behind the refresh", parked)
		}
		time.Sleep(time.Millisecond)
	}
	close(refresher.gate)

	for index := 0; index < concurrentCallers; index++ {
		select {
		case token := <-results:
			if token != "fresh-token" {
				t.Fatalf("expected every caller to get the fresh token, got %q", token)
			}
		case err := <-failures:
			t.Fatalf("unexpected caller error: %v", err)
		case <-time.After(5 * time.Second):
			t.Fatalf("caller %d never completed", index)
		}
	}

	if calls := refresher.callCount(); calls != 1 {
		t.Fatalf("expected exactly one refresh exchange, got %d", calls)
	}
	if token := coordinator.Token(); token != "fresh-token" {
		t.Fatalf("expected coordinator to hold the fresh token, got %q", token)
	}
}

func TestAlreadyRotatedTokenSkipsRefresh(t *testing.T) {
	t.Parallel()

	refresher := &countingRefresher{token: "unused"}
	coordinator := newTestCoordinator(t, Config{Refresher: refresher})
	coordinator.SetToken("rotated-token")

	token, err := coordinator.EnsureFreshToken(context.Background(), "stale-token")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "rotated-token" {
		t.Fatalf("expected the already-rotated token, got %q", token)
	}
	if calls := refresher.callCount(); calls != 0 {
		t.Fatalf("expected no refresh exchange, got %d", calls)
	}
}

func TestTerminalFailureClearsTokenAndSignsOut(t *testing.T) {
	t.Parallel()

	refreshErr := errors.New("session revoked")
	refresher := &countingRefresher{err: refreshErr}
	signedOut := make(chan struct{}, 1)
	coordinator := newTestCoordinator(t, Config{
		Refresher: refresher,
		OnSignOut: func() { signedOut <- struct{}{} },
	})
	coordinator.SetToken("stale-token")

	if _, err := coordinator.EnsureFreshToken(context.Background(), "stale-token"); !errors.Is(err, refreshErr) {
		t.Fatalf("expected refresh error, got %v", err)
	}
	select {
	case <-signedOut:
	case <-time.After(time.Second):
		t.Fatalf("sign-out hook never ran")
	}
	if token := coordinator.Token(); token != "" {
		t.Fatalf("expected cleared token, got %q", token)
	}
}

func TestFailureFansOutToAllWaiters(t *testing.T) {
	t.Parallel()

	const concurrentCallers = 4
	refreshErr := errors.New("session revoked")
	refresher := &countingRefresher{err: refreshErr, gate: make(chan struct{})}
	coordinator := newTestCoordinator(t, Config{Refresher: refresher})
	coordinator.SetToken("stale-token")

	errorsSeen := make(chan error, concurrentCallers)
	for index := 0; index < concurrentCallers; index++ {
		go func() {
			_, err := coordinator.EnsureFreshToken(context.Background(), "stale-token")
			errorsSeen <- err
		}()
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		coordinator.mutex.Lock()
		parked := len(coordinator.waiters)
		coordinator.mutex.Unlock()
		if parked == concurrentCallers-1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("only %d callers parked behind the refresh", parked)
		}
		time.Sleep(time.Millisecond)
	}
	close(refresher.gate)

	for index := 0; index < concurrentCallers; index++ {
		select {
		case err := <-errorsSeen:
			if !errors.Is(err, refreshErr) {
				t.Fatalf("expected refresh error for caller %d, got %v", index, err)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("caller %d never completed", index)
		}
	}
	if calls := refresher.callCount(); calls != 1 {
		t.Fatalf("expected a single failed exchange, got %d", calls)
	}
}

func TestStorageHydratesAtMostOnce(t *testing.T) {
	t.Parallel()

	storage := &countingStorage{token: "stored-token"}
	coordinator := newTestCoordinator(t, Config{
		Refresher: &countingRefresher{token: "unused"},
		Storage:   storage,
	})

	if token := coordinator.Token(); token != "stored-token" {
		t.Fatalf("expected hydrated token, got %q", token)
	}
	_ = coordinator.Token()
	_ = coordinator.Token()

	storage.mutex.Lock()
	loads := storage.loads
	storage.mutex.Unlock()
	if loads != 1 {
		t.Fatalf("expected one storage read, got %d", loads)
	}
}

func TestEmptyRefreshTokenIsRejected(t *testing.T) {
	t.Parallel()

	coordinator := newTestCoordinator(t, Config{Refresher: &countingRefresher{token: "  "}})
	coordinator.SetToken("stale-token")

	if _, err := coordinator.EnsureFreshToken(context.Background(), "stale-token"); !errors.Is(err, ErrRefreshRejected) {
		t.Fatalf("expected ErrRefreshRejected, got %v", err)
	}
}
