package orders

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shopfront/client-go/internal/catalog"
	"github.com/shopfront/client-go/internal/gateway"
	pkgerrors "github.com/shopfront/client-go/pkg/errors"
)

// PaymentStatusPaid is the only verification result that releases the cart.
const PaymentStatusPaid = "paid"

// ShippingAddress is the destination block submitted with an order.
type ShippingAddress struct {
	Name    string `json:"name" validate:"required"`
	Street  string `json:"street" validate:"required"`
	City    string `json:"city" validate:"required"`
	State   string `json:"state" validate:"required"`
	ZipCode string `json:"zip_code" validate:"required"`
	Country string `json:"country" validate:"required"`
}

// ItemInput is one line of a pending order, prices fixed as decimal strings.
type ItemInput struct {
	Product  int64  `json:"product"`
	Quantity int    `json:"quantity"`
	Price    string `json:"price"`
}

// CreateInput is the pending-order snapshot submitted to the backend.
type CreateInput struct {
	Items           []ItemInput     `json:"items"`
	Total           string          `json:"total"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	PaymentMethod   string          `json:"payment_method"`
	Currency        string          `json:"currency"`
}

// Pending identifies a created order awaiting payment. The backend owns the
// order from here on; the client keeps only the identifier for verification.
type Pending struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Item is one line of a placed order as returned by the history endpoint.
type Item struct {
	ID        int64           `json:"id"`
	Product   catalog.Product `json:"product"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Order is one entry of the shopper's order history.
type Order struct {
	ID          int64           `json:"id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Status      string          `json:"status"`
	Items       []Item          `json:"items"`
	CreatedAt   time.Time       `json:"created_at"`
}

type caller interface {
	DoJSON(ctx context.Context, req gateway.Request, out any) error
}

// Service drives order creation, payment verification, and history reads.
type Service struct {
	api caller
}

func NewService(api caller) (*Service, error) {
	if api == nil {
		return nil, fmt.Errorf("gateway client required")
	}
	return &Service{api: api}, nil
}

// Create submits the pending-order snapshot and returns the order identifier.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Pending, error) {
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order must contain at least one item")
	}

	var pending Pending
	err := s.api.DoJSON(ctx, gateway.Request{
		Method:    http.MethodPost,
		Path:      "orders/",
		Body:      input,
		Operation: "create_order",
	}, &pending)
	if err != nil {
		return nil, err
	}
	if pending.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "backend returned no order id")
	}
	return &pending, nil
}

// VerifyPayment asks the backend to confirm the payment state of an order.
func (s *Service) VerifyPayment(ctx context.Context, orderID, paymentID string) (string, error) {
	if orderID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	var result struct {
		Status string `json:"status"`
	}
	err := s.api.DoJSON(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   "orders/verify-payment/",
		Body: map[string]string{
			"orderID":   orderID,
			"paymentID": paymentID,
		},
		Operation: "verify_payment",
	}, &result)
	if err != nil {
		return "", err
	}
	return result.Status, nil
}

// Get fetches one order's detail with its line items.
func (s *Service) Get(ctx context.Context, id int64) (*Order, error) {
	if id <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	var result Order
	err := s.api.DoJSON(ctx, gateway.Request{
		Method:    http.MethodGet,
		Path:      fmt.Sprintf("orders/%d/", id),
		Operation: "get_order",
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// History lists the shopper's orders, newest first per the backend.
func (s *Service) History(ctx context.Context) ([]Order, error) {
	var result []Order
	err := s.api.DoJSON(ctx, gateway.Request{
		Method:    http.MethodGet,
		Path:      "orders/",
		Operation: "list_orders",
	}, &result)
	if err != nil {
		return nil, err
	}
	return result, nil
}
