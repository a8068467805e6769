package approval

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/shopfront/client-go/internal/orders"
	"github.com/shopfront/client-go/pkg/config"
	pkgerrors "github.com/shopfront/client-go/pkg/errors"
)

func startListener(t *testing.T, waitLimit time.Duration) *Listener {
	t.Helper()
	listener, err := NewListener(config.CallbackConfig{
		ListenAddr: "127.0.0.1:0",
		WaitLimit:  waitLimit,
	}, nil)
	if err != nil {
		t.Fatalf("building listener: %v", err)
	}
	if err := listener.Start(context.Background()); err != nil {
		t.Fatalf("starting listener: %v", err)
	}
	t.Cleanup(func() {
		listener.Close(context.Background())
	})
	return listener
}

func TestApproveDeliversMatchingConfirmation(t *testing.T) {
	t.Parallel()

	listener := startListener(t, 5*time.Second)

	go func() {
		// Give Approve a moment to start waiting before the redirect lands.
		time.Sleep(50 * time.Millisecond)
		url := fmt.Sprintf("%s?order_id=PAYPAL-1&payment_id=PAY-9", listener.URL())
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
		}
	}()

	paymentID, err := listener.Approve(context.Background(), orders.Pending{ID: "PAYPAL-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if paymentID != "PAY-9" {
		t.Fatalf("unexpected payment id %q", paymentID)
	}
}

func TestApproveDiscardsForeignConfirmations(t *testing.T) {
	t.Parallel()

	listener := startListener(t, 5*time.Second)

	go func() {
		time.Sleep(50 * time.Millisecond)
		for _, query := range []string{
			"order_id=OTHER&payment_id=PAY-1",
			"order_id=PAYPAL-1&payment_id=PAY-2",
		} {
			resp, err := http.Get(fmt.Sprintf("%s?%s", listener.URL(), query))
			if err == nil {
				resp.Body.Close()
			}
		}
	}()

	paymentID, err := listener.Approve(context.Background(), orders.Pending{ID: "PAYPAL-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if paymentID != "PAY-2" {
		t.Fatalf("expected the matching confirmation, got %q", paymentID)
	}
}

func TestApprovalRequiresBothIdentifiers(t *testing.T) {
	t.Parallel()

	listener := startListener(t, time.Second)

	resp, err := http.Get(fmt.Sprintf("%s?order_id=PAYPAL-1", listener.URL()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected bad request, got %d", resp.StatusCode)
	}
}

func TestApproveTimesOut(t *testing.T) {
	t.Parallel()

	listener := startListener(t, 50*time.Millisecond)

	_, err := listener.Approve(context.Background(), orders.Pending{ID: "PAYPAL-1"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected timeout conflict, got %v", err)
	}
}

func TestApproveHonorsContextCancellation(t *testing.T) {
	t.Parallel()

	listener := startListener(t, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := listener.Approve(ctx, orders.Pending{ID: "PAYPAL-1"})
	if err != context.Canceled {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}
