package storage

import "context"

// CartItem is the persisted shape of one cart line item. Prices are stored as
// decimal strings so the record round-trips without float drift.
type CartItem struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Price     string `json:"price"`
	Image     string `json:"image,omitempty"`
	Quantity  int    `json:"quantity"`
}

// Credentials is the persisted access/refresh token pair.
type Credentials struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Store is the durable client-side record store. Two independent records are
// kept: the cart line items and the credential pair. Each record is read once
// at startup and overwritten wholesale on every save.
type Store interface {
	LoadCart(ctx context.Context) ([]CartItem, error)
	SaveCart(ctx context.Context, items []CartItem) error

	LoadCredentials(ctx context.Context) (*Credentials, error)
	SaveCredentials(ctx context.Context, creds Credentials) error
	ClearCredentials(ctx context.Context) error

	Close() error
}
