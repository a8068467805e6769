package catalog

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/shopfront/client-go/internal/gateway"
	pkgerrors "github.com/shopfront/client-go/pkg/errors"
)

func decimalFromString(t *testing.T, value string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(value)
	if err != nil {
		t.Fatalf("parsing decimal %q: %v", value, err)
	}
	return d
}

type stubCaller struct {
	lastReq gateway.Request
	payload string
	err     error
}

func (s *stubCaller) DoJSON(ctx context.Context, req gateway.Request, out any) error {
	s.lastReq = req
	if s.err != nil {
		return s.err
	}
	if out == nil || s.payload == "" {
		return nil
	}
	return json.Unmarshal([]byte(s.payload), out)
}

func TestListBuildsQuery(t *testing.T) {
	t.Parallel()

	api := &stubCaller{payload: `{"count":1,"results":[{"id":5,"name":"Mug","price":"12.50"}]}`}
	svc, err := NewService(api)
	if err != nil {
		t.Fatalf("building service: %v", err)
	}

	page, err := svc.List(context.Background(), 0, "  mug ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if api.lastReq.Path != "products/" {
		t.Fatalf("unexpected path %q", api.lastReq.Path)
	}
	if got := api.lastReq.Query.Get("page"); got != "1" {
		t.Fatalf("page below 1 must clamp, got %q", got)
	}
	if got := api.lastReq.Query.Get("search"); got != "mug" {
		t.Fatalf("search term must be trimmed, got %q", got)
	}
	if len(page.Results) != 1 || !page.Results[0].Price.Equal(decimalFromString(t, "12.50")) {
		t.Fatalf("unexpected page: %+v", page)
	}
}

func TestGetValidatesID(t *testing.T) {
	t.Parallel()

	svc, err := NewService(&stubCaller{})
	if err != nil {
		t.Fatalf("building service: %v", err)
	}

	if _, err := svc.Get(context.Background(), 0); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGetBuildsPath(t *testing.T) {
	t.Parallel()

	api := &stubCaller{payload: `{"id":7,"name":"Shirt","price":"30.00"}`}
	svc, err := NewService(api)
	if err != nil {
		t.Fatalf("building service: %v", err)
	}

	product, err := svc.Get(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if api.lastReq.Path != "products/7/" {
		t.Fatalf("unexpected path %q", api.lastReq.Path)
	}
	if product.ID != 7 || product.Name != "Shirt" {
		t.Fatalf("unexpected product: %+v", product)
	}
}
