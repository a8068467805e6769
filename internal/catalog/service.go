package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shopfront/client-go/internal/gateway"
	pkgerrors "github.com/shopfront/client-go/pkg/errors"
)

// Product mirrors the backend's product representation.
type Product struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Price          decimal.Decimal `json:"price"`
	InventoryCount int             `json:"inventory_count"`
	Status         string          `json:"status"`
	Image          string          `json:"image,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Page is one page of product summaries.
type Page struct {
	Count    int       `json:"count"`
	Next     string    `json:"next"`
	Previous string    `json:"previous"`
	Results  []Product `json:"results"`
}

type caller interface {
	DoJSON(ctx context.Context, req gateway.Request, out any) error
}

// Service reads the product catalog through the gateway.
type Service struct {
	api caller
}

func NewService(api caller) (*Service, error) {
	if api == nil {
		return nil, fmt.Errorf("gateway client required")
	}
	return &Service{api: api}, nil
}

// List fetches a page of products, optionally filtered by a search term.
func (s *Service) List(ctx context.Context, page int, search string) (*Page, error) {
	if page < 1 {
		page = 1
	}

	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	if term := strings.TrimSpace(search); term != "" {
		query.Set("search", term)
	}

	var result Page
	err := s.api.DoJSON(ctx, gateway.Request{
		Method:    http.MethodGet,
		Path:      "products/",
		Query:     query,
		Operation: "list_products",
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Get fetches one product's detail.
func (s *Service) Get(ctx context.Context, id int64) (*Product, error) {
	if id <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}

	var result Product
	err := s.api.DoJSON(ctx, gateway.Request{
		Method:    http.MethodGet,
		Path:      fmt.Sprintf("products/%d/", id),
		Operation: "get_product",
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}
