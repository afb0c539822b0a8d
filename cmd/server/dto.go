package main

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/parcelrate/internal/buy4me"
	"github.com/Simplici0/parcelrate/internal/pricing"
	"github.com/Simplici0/parcelrate/internal/shipments"
)

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func optionalWeight(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.StringFixed(2)
	return &s
}

type dimensionsRequest struct {
	Length decimal.Decimal `json:"length" validate:"gte=0"`
	Width  decimal.Decimal `json:"width" validate:"gte=0"`
	Height decimal.Decimal `json:"height" validate:"gte=0"`
}

func (d *dimensionsRequest) toDomain() *pricing.Dimensions {
	if d == nil {
		return nil
	}
	return &pricing.Dimensions{Length: d.Length, Width: d.Width, Height: d.Height}
}

type extraRequest struct {
	ID       int64 `json:"id" validate:"gt=0"`
	Quantity int   `json:"quantity" validate:"gte=0"`
}

func extrasToDomain(in []extraRequest) []pricing.ExtraSelection {
	out := make([]pricing.ExtraSelection, 0, len(in))
	for _, e := range in {
		out = append(out, pricing.ExtraSelection{ID: e.ID, Quantity: e.Quantity})
	}
	return out
}

type quoteRequest struct {
	SenderCountryID    int64              `json:"sender_country_id" validate:"gt=0"`
	RecipientCountryID int64              `json:"recipient_country_id" validate:"gt=0"`
	ServiceTypeID      int64              `json:"service_type_id" validate:"gt=0"`
	Weight             *decimal.Decimal   `json:"weight" validate:"omitempty,gte=0"`
	Dimensions         *dimensionsRequest `json:"dimensions"`
	CityID             *int64             `json:"city_id" validate:"omitempty,gt=0"`
	Extras             []extraRequest     `json:"extras" validate:"dive"`
	PaymentMethod      string             `json:"payment_method"`
}

func (q quoteRequest) toInput(method pricing.PaymentMethod) pricing.Input {
	return pricing.Input{
		SenderCountryID:    q.SenderCountryID,
		RecipientCountryID: q.RecipientCountryID,
		ServiceTypeID:      q.ServiceTypeID,
		Weight:             q.Weight,
		Dimensions:         q.Dimensions.toDomain(),
		CityID:             q.CityID,
		Extras:             extrasToDomain(q.Extras),
		PaymentMethod:      method,
	}
}

type chargeLineResponse struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Value  string `json:"value"`
	Amount string `json:"amount"`
}

type extraLineResponse struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Quantity int    `json:"quantity"`
	Amount   string `json:"amount"`
}

type breakdownResponse struct {
	ZoneID                 int64                `json:"zone_id,omitempty"`
	ZoneName               string               `json:"zone_name,omitempty"`
	ServiceTypeID          int64                `json:"service_type_id,omitempty"`
	ServiceName            string               `json:"service_name,omitempty"`
	DeliveryTime           string               `json:"delivery_time,omitempty"`
	ServicePrice           string               `json:"service_price"`
	BaseRate               string               `json:"base_rate"`
	PerKgRate              string               `json:"per_kg_rate"`
	WeightCharge           string               `json:"weight_charge"`
	AdditionalCharges      []chargeLineResponse `json:"additional_charges"`
	TotalAdditionalCharges string               `json:"total_additional_charges"`
	Extras                 []extraLineResponse  `json:"extras"`
	ExtrasTotal            string               `json:"extras_total"`
	CityDeliveryCharge     string               `json:"city_delivery_charge"`
	CODAmount              string               `json:"cod_amount"`
	Subtotal               string               `json:"subtotal"`
	TotalCost              string               `json:"total_cost"`
	ActualWeight           *string              `json:"actual_weight,omitempty"`
	VolumetricWeight       *string              `json:"volumetric_weight,omitempty"`
	ChargeableWeight       string               `json:"chargeable_weight"`
	DimensionalFactor      int                  `json:"dimensional_factor,omitempty"`
	Errors                 []string             `json:"errors"`
}

func newBreakdownResponse(res pricing.Result) breakdownResponse {
	b := res.Breakdown
	out := breakdownResponse{
		ZoneID:                 res.Route.ZoneID,
		ZoneName:               res.Route.ZoneName,
		ServiceTypeID:          res.Route.ServiceTypeID,
		ServiceName:            res.Route.ServiceName,
		DeliveryTime:           res.Route.DeliveryTime,
		ServicePrice:           money(b.ServicePrice),
		BaseRate:               b.BaseRate.String(),
		PerKgRate:              b.PerKgRate.String(),
		WeightCharge:           money(b.WeightCharge),
		AdditionalCharges:      make([]chargeLineResponse, 0, len(b.AdditionalCharges)),
		TotalAdditionalCharges: money(b.TotalAdditionalCharges),
		Extras:                 make([]extraLineResponse, 0, len(b.Extras)),
		ExtrasTotal:            money(b.ExtrasTotal),
		CityDeliveryCharge:     money(b.CityDeliveryCharge),
		CODAmount:              money(b.CODAmount),
		Subtotal:               money(res.Totals.Subtotal),
		TotalCost:              money(res.Totals.TotalCost),
		ActualWeight:           optionalWeight(res.Weight.ActualWeight),
		VolumetricWeight:       optionalWeight(res.Weight.VolumetricWeight),
		ChargeableWeight:       money(res.Weight.ChargeableWeight),
		DimensionalFactor:      res.Weight.Factor,
		Errors:                 res.Errors,
	}
	for _, c := range b.AdditionalCharges {
		out.AdditionalCharges = append(out.AdditionalCharges, chargeLineResponse{
			ID: c.ID, Name: c.Name, Type: string(c.Type), Value: c.Value.String(), Amount: money(c.Amount),
		})
	}
	for _, e := range b.Extras {
		out.Extras = append(out.Extras, extraLineResponse{
			ID: e.ID, Name: e.Name, Type: string(e.Type), Quantity: e.Quantity, Amount: money(e.Amount),
		})
	}
	if out.Errors == nil {
		out.Errors = []string{}
	}
	return out
}

type convertRequest struct {
	FromCurrency string          `json:"from_currency" validate:"required,len=3"`
	FromAmount   decimal.Decimal `json:"from_amount" validate:"gte=0"`
	ToCurrency   string          `json:"to_currency" validate:"required,len=3"`
}

type convertResponse struct {
	FromCurrency    string `json:"from_currency"`
	FromAmount      string `json:"from_amount"`
	ToCurrency      string `json:"to_currency"`
	ConvertedAmount string `json:"converted_amount"`
}

type partyRequest struct {
	Name      string `json:"name" validate:"required"`
	Email     string `json:"email" validate:"omitempty,email"`
	Phone     string `json:"phone"`
	Address   string `json:"address" validate:"required"`
	CountryID int64  `json:"country_id" validate:"gt=0"`
}

func (p partyRequest) toDomain() shipments.Party {
	return shipments.Party{Name: p.Name, Email: p.Email, Phone: p.Phone, Address: p.Address, CountryID: p.CountryID}
}

type createShipmentRequest struct {
	Sender        partyRequest       `json:"sender"`
	Recipient     partyRequest       `json:"recipient"`
	ServiceTypeID int64              `json:"service_type_id" validate:"gt=0"`
	Weight        *decimal.Decimal   `json:"weight" validate:"omitempty,gte=0"`
	Dimensions    *dimensionsRequest `json:"dimensions"`
	CityID        *int64             `json:"city_id" validate:"omitempty,gt=0"`
	Extras        []extraRequest     `json:"extras" validate:"dive"`
	PaymentMethod string             `json:"payment_method"`
	Notes         string             `json:"notes"`
}

type updateShipmentRequest struct {
	Version       int                `json:"version" validate:"gte=0"`
	Sender        *partyRequest      `json:"sender"`
	Recipient     *partyRequest      `json:"recipient"`
	ServiceTypeID *int64             `json:"service_type_id" validate:"omitempty,gt=0"`
	Weight        *decimal.Decimal   `json:"weight" validate:"omitempty,gte=0"`
	Dimensions    *dimensionsRequest `json:"dimensions"`
	CityID        *int64             `json:"city_id" validate:"omitempty,gt=0"`
	ClearCity     bool               `json:"clear_city"`
	Extras        *[]extraRequest    `json:"extras" validate:"omitempty,dive"`
	PaymentMethod *string            `json:"payment_method"`
	Notes         *string            `json:"notes"`
}

type statusRequest struct {
	Status      string `json:"status" validate:"required"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

type partyResponse struct {
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Address   string `json:"address"`
	CountryID int64  `json:"country_id"`
}

type trackingResponse struct {
	Status      string    `json:"status"`
	Location    string    `json:"location"`
	Description string    `json:"description"`
	At          time.Time `json:"at"`
}

type shipmentResponse struct {
	ID             int64              `json:"id"`
	TrackingNumber string             `json:"tracking_number"`
	Status         string             `json:"status"`
	PaymentMethod  string             `json:"payment_method"`
	PaymentStatus  string             `json:"payment_status"`
	Sender         partyResponse      `json:"sender"`
	Recipient      partyResponse      `json:"recipient"`
	ServiceTypeID  int64              `json:"service_type_id"`
	CityID         *int64             `json:"city_id,omitempty"`
	Weight         *string            `json:"weight,omitempty"`
	Extras         []extraRequest     `json:"extras"`
	Notes          string             `json:"notes"`
	Version        int                `json:"version"`
	Cost           breakdownResponse  `json:"cost"`
	Tracking       []trackingResponse `json:"tracking,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

func party(p shipments.Party) partyResponse {
	return partyResponse{Name: p.Name, Email: p.Email, Phone: p.Phone, Address: p.Address, CountryID: p.CountryID}
}

func newShipmentResponse(sh shipments.Shipment) shipmentResponse {
	out := shipmentResponse{
		ID:             sh.ID,
		TrackingNumber: sh.TrackingNumber,
		Status:         string(sh.Status),
		PaymentMethod:  string(sh.PaymentMethod),
		PaymentStatus:  string(sh.PaymentStatus),
		Sender:         party(sh.Sender),
		Recipient:      party(sh.Recipient),
		ServiceTypeID:  sh.ServiceTypeID,
		CityID:         sh.CityID,
		Weight:         optionalWeight(sh.Weight),
		Extras:         make([]extraRequest, 0, len(sh.Extras)),
		Notes:          sh.Notes,
		Version:        sh.Version,
		Cost:           newBreakdownResponse(sh.Cost),
		CreatedAt:      sh.CreatedAt,
		UpdatedAt:      sh.UpdatedAt,
	}
	for _, e := range sh.Extras {
		out.Extras = append(out.Extras, extraRequest{ID: e.ID, Quantity: e.Quantity})
	}
	for _, t := range sh.Tracking {
		out.Tracking = append(out.Tracking, trackingResponse{
			Status: string(t.Status), Location: t.Location, Description: t.Description, At: t.At,
		})
	}
	return out
}

type buy4meItemRequest struct {
	ProductName            string          `json:"product_name" validate:"required"`
	ProductURL             string          `json:"product_url" validate:"omitempty,url"`
	Quantity               int             `json:"quantity" validate:"gte=0"`
	Color                  string          `json:"color"`
	Size                   string          `json:"size"`
	Notes                  string          `json:"notes"`
	UnitPrice              decimal.Decimal `json:"unit_price" validate:"gte=0"`
	StoreToWarehouseCharge decimal.Decimal `json:"store_to_warehouse_delivery_charge" validate:"gte=0"`
	Currency               string          `json:"currency" validate:"omitempty,len=3"`
}

func (it buy4meItemRequest) toDomain() buy4me.ItemInput {
	return buy4me.ItemInput{
		ProductName:            it.ProductName,
		ProductURL:             it.ProductURL,
		Quantity:               it.Quantity,
		Color:                  it.Color,
		Size:                   it.Size,
		Notes:                  it.Notes,
		UnitPrice:              it.UnitPrice,
		StoreToWarehouseCharge: it.StoreToWarehouseCharge,
		Currency:               it.Currency,
	}
}

type createBuy4meRequest struct {
	CustomerEmail   string              `json:"customer_email" validate:"omitempty,email"`
	ShippingAddress string              `json:"shipping_address" validate:"required"`
	Notes           string              `json:"notes"`
	CityID          *int64              `json:"city_id" validate:"omitempty,gt=0"`
	Items           []buy4meItemRequest `json:"items" validate:"dive"`
}

type buy4meItemPatchRequest struct {
	ProductName            *string          `json:"product_name"`
	ProductURL             *string          `json:"product_url" validate:"omitempty,url"`
	Quantity               *int             `json:"quantity" validate:"omitempty,gt=0"`
	Color                  *string          `json:"color"`
	Size                   *string          `json:"size"`
	Notes                  *string          `json:"notes"`
	UnitPrice              *decimal.Decimal `json:"unit_price" validate:"omitempty,gte=0"`
	StoreToWarehouseCharge *decimal.Decimal `json:"store_to_warehouse_delivery_charge" validate:"omitempty,gte=0"`
}

func (p buy4meItemPatchRequest) toDomain() buy4me.ItemPatch {
	return buy4me.ItemPatch{
		ProductName:            p.ProductName,
		ProductURL:             p.ProductURL,
		Quantity:               p.Quantity,
		Color:                  p.Color,
		Size:                   p.Size,
		Notes:                  p.Notes,
		UnitPrice:              p.UnitPrice,
		StoreToWarehouseCharge: p.StoreToWarehouseCharge,
	}
}

type buy4meCityRequest struct {
	CityID *int64 `json:"city_id" validate:"omitempty,gt=0"`
}

type buy4meStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type buy4meItemResponse struct {
	ID                     int64  `json:"id"`
	ProductName            string `json:"product_name"`
	ProductURL             string `json:"product_url,omitempty"`
	Quantity               int    `json:"quantity"`
	Color                  string `json:"color,omitempty"`
	Size                   string `json:"size,omitempty"`
	Notes                  string `json:"notes,omitempty"`
	UnitPrice              string `json:"unit_price"`
	StoreToWarehouseCharge string `json:"store_to_warehouse_delivery_charge"`
	Currency               string `json:"currency"`
	Total                  string `json:"total"`
}

type buy4meResponse struct {
	ID                 int64                `json:"id"`
	CustomerEmail      string               `json:"customer_email,omitempty"`
	ShippingAddress    string               `json:"shipping_address"`
	Notes              string               `json:"notes,omitempty"`
	CityID             *int64               `json:"city_id,omitempty"`
	CityDeliveryCharge string               `json:"city_delivery_charge"`
	TotalCost          string               `json:"total_cost"`
	Status             string               `json:"status"`
	PaymentStatus      string               `json:"payment_status"`
	Version            int                  `json:"version"`
	Items              []buy4meItemResponse `json:"items"`
	CreatedAt          time.Time            `json:"created_at"`
	UpdatedAt          time.Time            `json:"updated_at"`
}

func newBuy4meResponse(req buy4me.Request) buy4meResponse {
	out := buy4meResponse{
		ID:                 req.ID,
		CustomerEmail:      req.CustomerEmail,
		ShippingAddress:    req.ShippingAddress,
		Notes:              req.Notes,
		CityID:             req.CityID,
		CityDeliveryCharge: money(req.CityDeliveryCharge),
		TotalCost:          money(req.TotalCost),
		Status:             string(req.Status),
		PaymentStatus:      req.PaymentStatus,
		Version:            req.Version,
		Items:              make([]buy4meItemResponse, 0, len(req.Items)),
		CreatedAt:          req.CreatedAt,
		UpdatedAt:          req.UpdatedAt,
	}
	for _, it := range req.Items {
		out.Items = append(out.Items, buy4meItemResponse{
			ID:                     it.ID,
			ProductName:            it.ProductName,
			ProductURL:             it.ProductURL,
			Quantity:               it.Quantity,
			Color:                  it.Color,
			Size:                   it.Size,
			Notes:                  it.Notes,
			UnitPrice:              money(it.UnitPrice),
			StoreToWarehouseCharge: money(it.StoreToWarehouseCharge),
			Currency:               it.Currency,
			Total:                  money(it.Total()),
		})
	}
	return out
}
