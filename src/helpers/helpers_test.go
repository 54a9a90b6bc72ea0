package helpers

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestNewTransportError(t *testing.T) {
	err := NewTransportError("quote", 502, errors.New("bad gateway"))
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("got %T, want *TransportError", err)
	}
	if te.Dataset != "quote" || te.StatusCode != 502 {
		t.Errorf("transport error = %+v", te)
	}
	if StatusCode(fmt.Errorf("wrapped: %w", err)) != 502 {
		t.Error("status lost through wrapping")
	}
	if IsCancellation(err) {
		t.Error("502 reported as cancellation")
	}
}

func TestCanceledContextIsCancellation(t *testing.T) {
	err := NewTransportError("profile", 0, fmt.Errorf("do: %w", context.Canceled))
	var ce *CancellationError
	if !errors.As(err, &ce) {
		t.Fatalf("got %T, want *CancellationError", err)
	}
	if !IsCancellation(err) {
		t.Error("IsCancellation = false")
	}

	// An expired deadline is a failure the user should see.
	err = NewTransportError("profile", 0, context.DeadlineExceeded)
	if IsCancellation(err) {
		t.Error("deadline reported as cancellation")
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{NewTransportError("x", 0, errors.New("reset")), true},
		{NewTransportError("x", 429, errors.New("slow down")), true},
		{NewTransportError("x", 503, errors.New("down")), true},
		{NewTransportError("x", 404, errors.New("missing")), false},
		{NewTransportError("x", 0, context.Canceled), false},
		{NewValidationError("bad input"), false},
		{errors.New("plain"), true},
	}
	for _, tt := range tests {
		if got := Retryable(tt.err); got != tt.want {
			t.Errorf("Retryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestRetryWithBackoffStopsOnPermanentError(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), nil, "op", 3, time.Millisecond, func() error {
		calls++
		return NewTransportError("x", 404, errors.New("missing"))
	})
	if err == nil || calls != 1 {
		t.Errorf("calls = %d, err = %v", calls, err)
	}
}

func TestRetryWithBackoffRecovers(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), nil, "op", 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return NewTransportError("x", 500, errors.New("boom"))
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Errorf("calls = %d, err = %v", calls, err)
	}
}

func TestRetryWithBackoffHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := RetryWithBackoff(ctx, nil, "op", 5, time.Hour, func() error {
		calls++
		cancel()
		return NewTransportError("x", 500, errors.New("boom"))
	})
	if !errors.Is(err, context.Canceled) || calls != 1 {
		t.Errorf("calls = %d, err = %v", calls, err)
	}
}

func TestIncompleteDataMessage(t *testing.T) {
	err := NewIncompleteDataError("ZZZZ")
	want := `Data for "ZZZZ" is currently unavailable or incomplete.`
	if err.Error() != want {
		t.Errorf("message = %q, want %q", err.Error(), want)
	}
}

func TestProxyManager(t *testing.T) {
	pm := NewProxyManager([]string{"10.0.0.1:8080", "", "socks5://10.0.0.2:1080", "ftp://nope"}, "", nil)
	if !pm.HasProxies() {
		t.Fatal("no proxies kept")
	}
	first, _ := pm.GetCurrentProxy()
	if first != "http://10.0.0.1:8080" {
		t.Errorf("first proxy = %q", first)
	}
	pm.RotateProxy()
	second, _ := pm.GetCurrentProxy()
	if second != "socks5://10.0.0.2:1080" {
		t.Errorf("second proxy = %q", second)
	}
	pm.RotateProxy()
	if again, _ := pm.GetCurrentProxy(); again != first {
		t.Errorf("rotation did not wrap: %q", again)
	}

	pinned := NewProxyManager(nil, "agent/1.0", nil)
	if pinned.HasProxies() || pinned.GetUserAgent() != "agent/1.0" {
		t.Error("pinned user agent not used")
	}
}
