package pending

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestGoValue(t *testing.T) {
	p := Go(func() ([]byte, error) {
		return []byte("ok"), nil
	})

	got, err := p.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if string(got) != "ok" {
		t.Errorf("got %q, want ok", got)
	}
}

func TestGoError(t *testing.T) {
	want := errors.New("boom")
	p := Go(func() (int, error) {
		return 42, want
	})

	got, err := p.Wait(context.Background())
	if !errors.Is(err, want) {
		t.Errorf("err = %v, want %v", err, want)
	}
	// Never both a value and an error.
	if got != 0 {
		t.Errorf("value = %d, want zero alongside an error", got)
	}
}

func TestGoPanic(t *testing.T) {
	p := Go(func() (int, error) {
		panic("native call exploded")
	})

	_, err := p.Wait(context.Background())
	if err == nil {
		t.Fatal("expected error from panicking call")
	}
	if !strings.Contains(err.Error(), "native call exploded") {
		t.Errorf("error should carry the panic value, got %v", err)
	}
}

func TestWaitContext(t *testing.T) {
	release := make(chan struct{})
	p := Go(func() (int, error) {
		<-release
		return 1, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := p.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}

	// The call keeps running and still completes.
	close(release)
	got, err := p.Wait(context.Background())
	if err != nil || got != 1 {
		t.Errorf("Wait after release = %d, %v; want 1, nil", got, err)
	}
}

func TestResolved(t *testing.T) {
	p := Resolved("v", nil)

	select {
	case <-p.Done():
	default:
		t.Fatal("Resolved result should already be done")
	}

	got, err := p.Wait(context.Background())
	if !p.Ready() || err != nil || got != "v" {
		t.Errorf("Wait() = %q, %v; Ready() = %v", got, err, p.Ready())
	}
}

func TestFailed(t *testing.T) {
	want := errors.New("unsupported")
	p := Failed[[]byte](want)

	got, err := p.Wait(context.Background())
	if got != nil || !errors.Is(err, want) {
		t.Errorf("Wait() = %v, %v", got, err)
	}
}

func TestResultNotReady(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	p := Go(func() (int, error) {
		<-release
		return 0, nil
	})

	if p.Ready() {
		t.Error("result should not be ready before completion")
	}
}
