package cart

import (
	"github.com/shopspring/decimal"

	"github.com/shopfront/client-go/internal/storage"
)

// Product carries the display fields a line item keeps from the catalog.
type Product struct {
	ID    int64
	Name  string
	Price decimal.Decimal
	Image string
}

// LineItem is one product-and-quantity entry. Quantity is always >= 1; an
// item dropping to zero is removed from the cart instead.
type LineItem struct {
	Product  Product
	Quantity int
}

// Subtotal returns price x quantity for this line.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.Product.Price.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

func toRecords(items []LineItem) []storage.CartItem {
	records := make([]storage.CartItem, 0, len(items))
	for _, item := range items {
		records = append(records, storage.CartItem{
			ProductID: item.Product.ID,
			Name:      item.Product.Name,
			Price:     item.Product.Price.String(),
			Image:     item.Product.Image,
			Quantity:  item.Quantity,
		})
	}
	return records
}

func fromRecords(records []storage.CartItem) []LineItem {
	items := make([]LineItem, 0, len(records))
	for _, record := range records {
		price, err := decimal.NewFromString(record.Price)
		if err != nil || record.Quantity < 1 {
			// Skip records that no longer parse instead of poisoning the cart.
			continue
		}
		items = append(items, LineItem{
			Product: Product{
				ID:    record.ProductID,
				Name:  record.Name,
				Price: price,
				Image: record.Image,
			},
			Quantity: record.Quantity,
		})
	}
	return items
}
