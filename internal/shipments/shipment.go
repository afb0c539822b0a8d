package shipments

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/parcelrate/internal/pricing"
)

var (
	ErrNotFound        = errors.New("shipment not found")
	ErrVersionConflict = errors.New("shipment was modified by another request")
	ErrInvalidInput    = errors.New("invalid shipment input")
)

// Status is the delivery state of a shipment.
type Status string

const (
	StatusPending        Status = "PENDING"
	StatusProcessing     Status = "PROCESSING"
	StatusInTransit      Status = "IN_TRANSIT"
	StatusOutForDelivery Status = "OUT_FOR_DELIVERY"
	StatusDelivered      Status = "DELIVERED"
	StatusFailedDelivery Status = "FAILED_DELIVERY"
	StatusReturned       Status = "RETURNED"
	StatusCancelled      Status = "CANCELLED"
)

var statuses = []Status{
	StatusPending, StatusProcessing, StatusInTransit, StatusOutForDelivery,
	StatusDelivered, StatusFailedDelivery, StatusReturned, StatusCancelled,
}

// ParseStatus accepts a status name in any case.
func ParseStatus(raw string) (Status, bool) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	for _, known := range statuses {
		if s == known {
			return s, true
		}
	}
	return "", false
}

// Final reports whether no further edits are accepted.
func (s Status) Final() bool {
	return s == StatusDelivered || s == StatusCancelled || s == StatusReturned
}

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "PENDING"
	PaymentPaid       PaymentStatus = "PAID"
	PaymentCODPending PaymentStatus = "COD_PENDING"
	PaymentCODPaid    PaymentStatus = "COD_PAID"
)

// initialPaymentStatus follows the payment method.
func initialPaymentStatus(m pricing.PaymentMethod) PaymentStatus {
	if m == pricing.PaymentCOD {
		return PaymentCODPending
	}
	return PaymentPending
}

// Party is the sender or the recipient of a shipment.
type Party struct {
	Name      string
	Email     string
	Phone     string
	Address   string
	CountryID int64
}

// TrackingEntry is one step of the delivery history.
type TrackingEntry struct {
	Status      Status
	Location    string
	Description string
	At          time.Time
}

// Shipment is a persisted shipment request. Cost holds the breakdown from
// the last calculation and is what every cost column is derived from.
type Shipment struct {
	ID             int64
	TrackingNumber string
	Sender         Party
	Recipient      Party
	ServiceTypeID  int64
	CityID         *int64
	Weight         *decimal.Decimal
	Dimensions     *pricing.Dimensions
	Extras         []pricing.ExtraSelection
	PaymentMethod  pricing.PaymentMethod
	PaymentStatus  PaymentStatus
	Status         Status
	Notes          string
	Cost           pricing.Result
	Tracking       []TrackingEntry
	Version        int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (sh Shipment) pricingInput() pricing.Input {
	return pricing.Input{
		SenderCountryID:    sh.Sender.CountryID,
		RecipientCountryID: sh.Recipient.CountryID,
		ServiceTypeID:      sh.ServiceTypeID,
		Weight:             sh.Weight,
		Dimensions:         sh.Dimensions,
		CityID:             sh.CityID,
		Extras:             sh.Extras,
		PaymentMethod:      sh.PaymentMethod,
	}
}

// CreateInput holds everything a customer submits for a new shipment.
type CreateInput struct {
	Sender        Party
	Recipient     Party
	ServiceTypeID int64
	Weight        *decimal.Decimal
	Dimensions    *pricing.Dimensions
	CityID        *int64
	Extras        []pricing.ExtraSelection
	PaymentMethod pricing.PaymentMethod
	Notes         string
}

// UpdateInput is a partial edit. Nil fields keep their stored value.
// Version, when set, must match the stored version.
type UpdateInput struct {
	Version       int
	Sender        *Party
	Recipient     *Party
	ServiceTypeID *int64
	Weight        *decimal.Decimal
	Dimensions    *pricing.Dimensions
	CityID        *int64
	ClearCity     bool
	Extras        *[]pricing.ExtraSelection
	PaymentMethod *pricing.PaymentMethod
	Notes         *string
}

func (in UpdateInput) apply(sh *Shipment) {
	if in.Sender != nil {
		sh.Sender = *in.Sender
	}
	if in.Recipient != nil {
		sh.Recipient = *in.Recipient
	}
	if in.ServiceTypeID != nil {
		sh.ServiceTypeID = *in.ServiceTypeID
	}
	if in.Weight != nil {
		w := *in.Weight
		sh.Weight = &w
	}
	if in.Dimensions != nil {
		dims := *in.Dimensions
		sh.Dimensions = &dims
	}
	if in.ClearCity {
		sh.CityID = nil
	} else if in.CityID != nil {
		id := *in.CityID
		sh.CityID = &id
	}
	if in.Extras != nil {
		sh.Extras = append([]pricing.ExtraSelection(nil), (*in.Extras)...)
	}
	if in.PaymentMethod != nil && *in.PaymentMethod != sh.PaymentMethod {
		sh.PaymentMethod = *in.PaymentMethod
		if sh.PaymentStatus == PaymentPending || sh.PaymentStatus == PaymentCODPending {
			sh.PaymentStatus = initialPaymentStatus(sh.PaymentMethod)
		}
	}
	if in.Notes != nil {
		sh.Notes = *in.Notes
	}
}

// ListFilter narrows List. A zero Limit means 50.
type ListFilter struct {
	Status Status
	Limit  int
}
