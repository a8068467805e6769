package approval

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shopfront/client-go/internal/orders"
	"github.com/shopfront/client-go/pkg/config"
	pkgerrors "github.com/shopfront/client-go/pkg/errors"
	"github.com/shopfront/client-go/pkg/logger"
)

// Confirmation is a payment approval delivered by the provider's redirect.
type Confirmation struct {
	OrderID   string
	PaymentID string
}

// Listener runs a loopback HTTP endpoint that the payment provider redirects
// the shopper's browser to after approval. The order payload carries no
// return URL; the redirect target is registered with the provider out of
// band and must match the configured listen address. One listener serves one
// checkout; the first matching confirmation wins and later redirects get a
// done page.
type Listener struct {
	cfg config.CallbackConfig
	log *logger.Logger

	server        *http.Server
	addr          string
	confirmations chan Confirmation
}

func NewListener(cfg config.CallbackConfig, log *logger.Logger) (*Listener, error) {
	if cfg.ListenAddr == "" {
		return nil, fmt.Errorf("callback listen address required")
	}
	if log == nil {
		log = logger.New(logger.Options{ServiceName: "approval"})
	}
	return &Listener{
		cfg:           cfg,
		log:           log,
		confirmations: make(chan Confirmation, 1),
	}, nil
}

// Start binds the loopback address and begins serving the approval route.
// Call Close when the checkout finishes either way.
func (l *Listener) Start(ctx context.Context) error {
	if l.server != nil {
		return fmt.Errorf("listener already started")
	}

	listener, err := net.Listen("tcp", l.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("binding approval callback address: %w", err)
	}
	l.addr = listener.Addr().String()

	r := chi.NewRouter()
	r.Get("/approval", l.handleApproval)
	r.Get("/cancel", l.handleCancel)

	l.server = &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := l.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			l.log.Error(ctx, "approval listener stopped", err)
		}
	}()

	l.log.Info(ctx, fmt.Sprintf("approval listener on http://%s/approval", l.addr))
	return nil
}

// URL returns the redirect target to hand to the payment provider. Only valid
// after Start.
func (l *Listener) URL() string {
	return fmt.Sprintf("http://%s/approval", l.addr)
}

func (l *Listener) handleApproval(w http.ResponseWriter, r *http.Request) {
	orderID := strings.TrimSpace(r.URL.Query().Get("order_id"))
	paymentID := strings.TrimSpace(r.URL.Query().Get("payment_id"))
	if orderID == "" || paymentID == "" {
		http.Error(w, "order_id and payment_id are required", http.StatusBadRequest)
		return
	}

	select {
	case l.confirmations <- Confirmation{OrderID: orderID, PaymentID: paymentID}:
	default:
		// Checkout already has a confirmation; nothing more to record.
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, "<html><body><h1>Payment approved</h1><p>You can close this tab and return to the store.</p></body></html>")
}

func (l *Listener) handleCancel(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, "<html><body><h1>Payment canceled</h1><p>Your cart is unchanged.</p></body></html>")
}

// Approve waits for the browser redirect that confirms the pending order,
// bounded by the configured wait limit. Confirmations for other orders are
// discarded.
func (l *Listener) Approve(ctx context.Context, pending orders.Pending) (string, error) {
	if l.server == nil {
		return "", fmt.Errorf("listener not started")
	}

	deadline := time.NewTimer(l.cfg.WaitLimit)
	defer deadline.Stop()

	for {
		select {
		case confirmation := <-l.confirmations:
			if confirmation.OrderID != pending.ID {
				l.log.Warn(ctx, fmt.Sprintf("discarding approval for unknown order %q", confirmation.OrderID))
				continue
			}
			return confirmation.PaymentID, nil
		case <-deadline.C:
			return "", pkgerrors.New(pkgerrors.CodeStateConflict, "payment approval timed out")
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// Close shuts the listener down, releasing the loopback port.
func (l *Listener) Close(ctx context.Context) error {
	if l.server == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return l.server.Shutdown(shutdownCtx)
}
