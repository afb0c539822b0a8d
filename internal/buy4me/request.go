package buy4me

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/parcelrate/internal/pricing"
)

var (
	ErrNotFound     = errors.New("buy4me request not found")
	ErrInvalidInput = errors.New("invalid buy4me input")
	ErrClosed       = errors.New("buy4me request is closed")
)

type Status string

const (
	StatusDraft             Status = "DRAFT"
	StatusSubmitted         Status = "SUBMITTED"
	StatusOrderPlaced       Status = "ORDER_PLACED"
	StatusInTransit         Status = "IN_TRANSIT"
	StatusWarehouseArrived  Status = "WAREHOUSE_ARRIVED"
	StatusShippedToCustomer Status = "SHIPPED_TO_CUSTOMER"
	StatusCompleted         Status = "COMPLETED"
	StatusCancelled         Status = "CANCELLED"
)

// ParseStatus accepts a status name in any case.
func ParseStatus(raw string) (Status, bool) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	switch s {
	case StatusDraft, StatusSubmitted, StatusOrderPlaced, StatusInTransit,
		StatusWarehouseArrived, StatusShippedToCustomer, StatusCompleted, StatusCancelled:
		return s, true
	}
	return "", false
}

func (s Status) closed() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Request is a purchase a customer asks us to make on their behalf.
type Request struct {
	ID                 int64
	CustomerEmail      string
	ShippingAddress    string
	Notes              string
	CityID             *int64
	CityDeliveryCharge decimal.Decimal
	TotalCost          decimal.Decimal
	Status             Status
	PaymentStatus      string
	Version            int
	Items              []Item
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type Item struct {
	ID                     int64
	RequestID              int64
	ProductName            string
	ProductURL             string
	Quantity               int
	Color                  string
	Size                   string
	Notes                  string
	UnitPrice              decimal.Decimal
	StoreToWarehouseCharge decimal.Decimal
	Currency               string
	CreatedAt              time.Time
}

// Total is quantity × unit price plus the store-to-warehouse charge.
func (it Item) Total() decimal.Decimal {
	return pricing.Round(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))).Add(it.StoreToWarehouseCharge))
}

// ItemsTotal sums every item total.
func ItemsTotal(items []Item) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.Total())
	}
	return sum
}

type CreateInput struct {
	CustomerEmail   string
	ShippingAddress string
	Notes           string
	CityID          *int64
	Items           []ItemInput
}

// ItemInput describes a new item. Quantity 0 means 1 and an empty currency
// means USD.
type ItemInput struct {
	ProductName            string
	ProductURL             string
	Quantity               int
	Color                  string
	Size                   string
	Notes                  string
	UnitPrice              decimal.Decimal
	StoreToWarehouseCharge decimal.Decimal
	Currency               string
}

func (in ItemInput) item() (Item, error) {
	it := Item{
		ProductName:            strings.TrimSpace(in.ProductName),
		ProductURL:             strings.TrimSpace(in.ProductURL),
		Quantity:               in.Quantity,
		Color:                  in.Color,
		Size:                   in.Size,
		Notes:                  in.Notes,
		UnitPrice:              in.UnitPrice,
		StoreToWarehouseCharge: in.StoreToWarehouseCharge,
		Currency:               strings.ToUpper(strings.TrimSpace(in.Currency)),
	}
	if it.Quantity == 0 {
		it.Quantity = 1
	}
	if it.Currency == "" {
		it.Currency = "USD"
	}
	return it, validateItem(it)
}

// ItemPatch edits an item. Nil fields keep their stored value.
type ItemPatch struct {
	ProductName            *string
	ProductURL             *string
	Quantity               *int
	Color                  *string
	Size                   *string
	Notes                  *string
	UnitPrice              *decimal.Decimal
	StoreToWarehouseCharge *decimal.Decimal
}

func (p ItemPatch) apply(it *Item) {
	if p.ProductName != nil {
		it.ProductName = strings.TrimSpace(*p.ProductName)
	}
	if p.ProductURL != nil {
		it.ProductURL = strings.TrimSpace(*p.ProductURL)
	}
	if p.Quantity != nil {
		it.Quantity = *p.Quantity
	}
	if p.Color != nil {
		it.Color = *p.Color
	}
	if p.Size != nil {
		it.Size = *p.Size
	}
	if p.Notes != nil {
		it.Notes = *p.Notes
	}
	if p.UnitPrice != nil {
		it.UnitPrice = *p.UnitPrice
	}
	if p.StoreToWarehouseCharge != nil {
		it.StoreToWarehouseCharge = *p.StoreToWarehouseCharge
	}
}

func validateItem(it Item) error {
	switch {
	case it.ProductName == "":
		return fmt.Errorf("%w: product_name is required", ErrInvalidInput)
	case it.Quantity <= 0:
		return fmt.Errorf("%w: quantity must be a positive integer", ErrInvalidInput)
	case it.UnitPrice.IsNegative():
		return fmt.Errorf("%w: unit_price must be >= 0", ErrInvalidInput)
	case it.StoreToWarehouseCharge.IsNegative():
		return fmt.Errorf("%w: store_to_warehouse_delivery_charge must be >= 0", ErrInvalidInput)
	case len(it.Currency) != 3:
		return fmt.Errorf("%w: currency must have 3 letters", ErrInvalidInput)
	}
	return nil
}
