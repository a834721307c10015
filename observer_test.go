package queryx

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestObserverBasicSuccess(t *testing.T) {
	fn := func(ctx context.Context, n int) (string, error) {
		return fmt.Sprintf("%d", n), nil
	}
	ep := NewEndpoint(fn, EndpointOptions[int]{})
	obs := ep.Use()

	if err := obs.SetArgAsync(context.Background(), 10); err != nil {
		t.Fatal(err)
	}
	data, ok := obs.Data()
	if !ok || data != "10" {
		t.Fatalf("data = %q, %v; want 10, true", data, ok)
	}
	if obs.Status() != StatusSuccess {
		t.Fatalf("status = %v, want Success", obs.Status())
	}
	if obs.IsLoading() {
		t.Fatal("expected IsLoading = false")
	}
}

func TestObserverTriggerCancelResetsToIdle(t *testing.T) {
	started := make(chan struct{})
	fn := func(ctx context.Context, s string) (string, error) {
		close(started)
		select {
		case <-time.After(time.Second):
			return "too-slow", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	ep := NewEndpoint(fn, EndpointOptions[string]{})
	obs := ep.Use()

	errCh := make(chan error, 1)
	go func() {
		_, err := obs.TriggerAsync(context.Background(), "test")
		errCh <- err
	}()

	<-started
	obs.Cancel()

	err := <-errCh
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("TriggerAsync error = %v, want context.Canceled", err)
	}
	if obs.Status() != StatusIdle {
		t.Fatalf("status = %v, want Idle", obs.Status())
	}
	if obs.Err() != nil {
		t.Fatalf("err = %v, want nil", obs.Err())
	}
	if obs.HasData() {
		t.Fatal("expected HasData = false")
	}
}

func TestObserverKeepsLatestOnRefetch(t *testing.T) {
	// The second attempt's result must win regardless of how the first
	// resolved.
	var n atomic.Int32
	fn := func(ctx context.Context, s string) (string, error) {
		i := n.Add(1)
		return fmt.Sprintf("attempt-%d", i), nil
	}
	ep := NewEndpoint(fn, EndpointOptions[string]{DefaultStaleTime: time.Hour})
	obs := ep.Use()

	if err := obs.SetArgAsync(context.Background(), "default"); err != nil {
		t.Fatal(err)
	}
	data, _ := obs.Data()
	if data != "attempt-1" {
		t.Fatalf("after initial setArg, data = %q, want %q", data, "attempt-1")
	}

	v, err := obs.RefetchAsync(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if v != "attempt-2" {
		t.Fatalf("refetch result = %q, want %q", v, "attempt-2")
	}
	data, _ = obs.Data()
	if data != "attempt-2" {
		t.Fatalf("final data = %q, want %q", data, "attempt-2")
	}
}

func TestObserverLastDataSurvivesArgChange(t *testing.T) {
	// Once Success, LastData stays set through subsequent states until
	// detach.
	fn := func(ctx context.Context, n int) (string, error) {
		if n == 2 {
			return "", errors.New("boom")
		}
		return fmt.Sprintf("%d", n), nil
	}
	ep := NewEndpoint(fn, EndpointOptions[int]{DefaultStaleTime: time.Hour})
	obs := ep.Use()

	if err := obs.SetArgAsync(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	if _, ok := obs.LastData(); !ok {
		t.Fatal("expected LastData to be set after first success")
	}

	_ = obs.SetArgAsync(context.Background(), 2) // fails
	last, ok := obs.LastData()
	if !ok || last != "1" {
		t.Fatalf("LastData = %q, %v; want %q, true", last, ok, "1")
	}
	if obs.IsError() == false {
		t.Fatal("expected current state to be Error")
	}
}

func TestObserverRefetchAsyncMisuseWithoutArg(t *testing.T) {
	fn := func(ctx context.Context, n int) (string, error) { return "", nil }
	ep := NewEndpoint(fn, EndpointOptions[int]{})
	obs := ep.Use()

	if _, err := obs.RefetchAsync(context.Background()); !errors.Is(err, ErrNoCurrentExecution) {
		t.Fatalf("got %v, want ErrNoCurrentExecution", err)
	}
	if err := obs.Refetch(); !errors.Is(err, ErrNoCurrentExecution) {
		t.Fatalf("got %v, want ErrNoCurrentExecution", err)
	}
}

func TestObserverDetachIsIdempotentAndRemovesMembership(t *testing.T) {
	fn := func(ctx context.Context, n int) (string, error) { return "v", nil }
	ep := NewEndpoint(fn, EndpointOptions[int]{})
	obs := ep.Use()
	if err := obs.SetArgAsync(context.Background(), 1); err != nil {
		t.Fatal(err)
	}

	exec := ep.cache.GetOrAdd(1)
	if count := exec.observerCount(); count != 1 {
		t.Fatalf("observer count before detach = %d, want 1", count)
	}

	obs.Detach()
	obs.Detach() // idempotent

	if count := exec.observerCount(); count != 0 {
		t.Fatalf("observer count after detach = %d, want 0", count)
	}
}

func TestObserverOnStateChangedFiresOnTransitions(t *testing.T) {
	release := make(chan struct{})
	fn := func(ctx context.Context, n int) (string, error) {
		<-release
		return "v", nil
	}
	ep := NewEndpoint(fn, EndpointOptions[int]{})
	obs := ep.Use()

	var fires atomic.Int32
	unsubscribe := obs.OnStateChanged(func() { fires.Add(1) })
	defer unsubscribe()

	go obs.SetArgAsync(context.Background(), 1)
	// Wait for the switch onto the new execution and its Idle -> Loading
	// transition.
	deadline := time.Now().Add(time.Second)
	for fires.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if fires.Load() < 2 {
		t.Fatal("expected stateChanged notifications for the execution switch and the Loading transition")
	}

	close(release)
	deadline = time.Now().Add(time.Second)
	for fires.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if fires.Load() < 3 {
		t.Fatalf("fires = %d, want >= 3 (switch + loading + success)", fires.Load())
	}

	unsubscribe()
	before := fires.Load()
	obs2 := ep.Use()
	_ = obs2.SetArgAsync(context.Background(), 2)
	if fires.Load() != before {
		t.Fatal("unsubscribed listener must not fire again")
	}
}

func TestObserverDedupConcurrentSetArgAsync(t *testing.T) {
	// N observers calling SetArgAsync with the same argument concurrently
	// must still result in exactly one underlying call.
	var calls atomic.Int32
	release := make(chan struct{})
	fn := func(ctx context.Context, n int) (string, error) {
		calls.Add(1)
		<-release
		return fmt.Sprintf("%d", n), nil
	}
	ep := NewEndpoint(fn, EndpointOptions[int]{DefaultStaleTime: time.Hour})

	const n = 10
	observers := make([]*Observer[int, string], n)
	for i := range observers {
		observers[i] = ep.Use()
	}

	var wg sync.WaitGroup
	wg.Add(n)
	for i := range observers {
		go func(i int) {
			defer wg.Done()
			_ = observers[i].SetArgAsync(context.Background(), 1)
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for i, o := range observers {
		d, _ := o.Data()
		if d != "1" {
			t.Fatalf("observer[%d].Data() = %q, want %q", i, d, "1")
		}
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("fn called %d times, want 1 (dedup)", got)
	}
}
