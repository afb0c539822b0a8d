package main

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/Simplici0/parcelrate/internal/pricing"
)

type countryRequest struct {
	Name string `json:"name" validate:"required"`
	Code string `json:"code" validate:"required,len=2"`
	Type string `json:"country_type" validate:"required,oneof=DEPARTURE DESTINATION"`
}

func (s *server) handleCreateCountry(w http.ResponseWriter, r *http.Request) {
	var req countryRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.refs.CreateCountry(r.Context(), pricing.Country{Name: req.Name, Code: req.Code, Type: pricing.CountryType(req.Type)})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, countryResponse{ID: c.ID, Name: c.Name, Code: c.Code, Type: string(c.Type)})
}

type zoneRequest struct {
	Name                  string  `json:"name" validate:"required"`
	Description           string  `json:"description"`
	DepartureCountryIDs   []int64 `json:"departure_country_ids" validate:"min=1,dive,gt=0"`
	DestinationCountryIDs []int64 `json:"destination_country_ids" validate:"min=1,dive,gt=0"`
}

type zoneResponse struct {
	ID                    int64   `json:"id"`
	Name                  string  `json:"name"`
	Description           string  `json:"description,omitempty"`
	DepartureCountryIDs   []int64 `json:"departure_country_ids"`
	DestinationCountryIDs []int64 `json:"destination_country_ids"`
}

func (s *server) handleCreateZone(w http.ResponseWriter, r *http.Request) {
	var req zoneRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	z, err := s.refs.CreateZone(r.Context(), pricing.Zone{
		Name:                  req.Name,
		Description:           req.Description,
		DepartureCountryIDs:   req.DepartureCountryIDs,
		DestinationCountryIDs: req.DestinationCountryIDs,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, zoneResponse{
		ID:                    z.ID,
		Name:                  z.Name,
		Description:           z.Description,
		DepartureCountryIDs:   z.DepartureCountryIDs,
		DestinationCountryIDs: z.DestinationCountryIDs,
	})
}

type serviceTypeRequest struct {
	Name         string          `json:"name" validate:"required"`
	Description  string          `json:"description"`
	DeliveryTime string          `json:"delivery_time"`
	Price        decimal.Decimal `json:"price" validate:"gte=0"`
}

func (s *server) handleCreateServiceType(w http.ResponseWriter, r *http.Request) {
	var req serviceTypeRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	st, err := s.refs.CreateServiceType(r.Context(), pricing.ServiceType{
		Name:         req.Name,
		Description:  req.Description,
		DeliveryTime: req.DeliveryTime,
		Price:        req.Price,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, serviceTypeResponse{
		ID:                st.ID,
		Name:              st.Name,
		Description:       st.Description,
		DeliveryTime:      st.DeliveryTime,
		Price:             money(st.Price),
		DimensionalFactor: pricing.DefaultDimensionalFactor,
	})
}

type weightRateRequest struct {
	ZoneID        int64           `json:"zone_id" validate:"gt=0"`
	ServiceTypeID int64           `json:"service_type_id" validate:"gt=0"`
	MinWeight     decimal.Decimal `json:"min_weight" validate:"gte=0"`
	MaxWeight     decimal.Decimal `json:"max_weight" validate:"gte=0"`
	BaseRate      decimal.Decimal `json:"base_rate" validate:"gte=0"`
	PerKgRate     decimal.Decimal `json:"per_kg_rate" validate:"gte=0"`
}

type weightRateResponse struct {
	ID            int64  `json:"id"`
	ZoneID        int64  `json:"zone_id"`
	ServiceTypeID int64  `json:"service_type_id"`
	MinWeight     string `json:"min_weight"`
	MaxWeight     string `json:"max_weight"`
	BaseRate      string `json:"base_rate"`
	PerKgRate     string `json:"per_kg_rate"`
}

func (s *server) handleCreateWeightRate(w http.ResponseWriter, r *http.Request) {
	var req weightRateRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	rate, err := s.refs.CreateWeightRate(r.Context(), pricing.WeightRate{
		ZoneID:        req.ZoneID,
		ServiceTypeID: req.ServiceTypeID,
		MinWeight:     req.MinWeight,
		MaxWeight:     req.MaxWeight,
		BaseRate:      req.BaseRate,
		PerKgRate:     req.PerKgRate,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, weightRateResponse{
		ID:            rate.ID,
		ZoneID:        rate.ZoneID,
		ServiceTypeID: rate.ServiceTypeID,
		MinWeight:     rate.MinWeight.String(),
		MaxWeight:     rate.MaxWeight.String(),
		BaseRate:      rate.BaseRate.String(),
		PerKgRate:     rate.PerKgRate.String(),
	})
}

type dimensionalFactorRequest struct {
	ServiceTypeID int64 `json:"service_type_id" validate:"gt=0"`
	Factor        int   `json:"factor" validate:"gt=0"`
}

func (s *server) handleCreateDimensionalFactor(w http.ResponseWriter, r *http.Request) {
	var req dimensionalFactorRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	f, err := s.refs.CreateDimensionalFactor(r.Context(), pricing.DimensionalFactor{ServiceTypeID: req.ServiceTypeID, Factor: req.Factor})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": f.ID, "service_type_id": f.ServiceTypeID, "factor": f.Factor})
}

type additionalChargeRequest struct {
	Name           string          `json:"name" validate:"required"`
	Description    string          `json:"description"`
	Type           string          `json:"charge_type" validate:"required,oneof=FIXED PERCENTAGE"`
	Value          decimal.Decimal `json:"value" validate:"gte=0"`
	ZoneIDs        []int64         `json:"zone_ids" validate:"min=1,dive,gt=0"`
	ServiceTypeIDs []int64         `json:"service_type_ids" validate:"min=1,dive,gt=0"`
}

type additionalChargeResponse struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	Description    string  `json:"description,omitempty"`
	Type           string  `json:"charge_type"`
	Value          string  `json:"value"`
	ZoneIDs        []int64 `json:"zone_ids"`
	ServiceTypeIDs []int64 `json:"service_type_ids"`
}

func (s *server) handleCreateAdditionalCharge(w http.ResponseWriter, r *http.Request) {
	var req additionalChargeRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.refs.CreateAdditionalCharge(r.Context(), pricing.AdditionalCharge{
		Name:           req.Name,
		Description:    req.Description,
		Type:           pricing.ChargeType(req.Type),
		Value:          req.Value,
		ZoneIDs:        req.ZoneIDs,
		ServiceTypeIDs: req.ServiceTypeIDs,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, additionalChargeResponse{
		ID:             c.ID,
		Name:           c.Name,
		Description:    c.Description,
		Type:           string(c.Type),
		Value:          c.Value.String(),
		ZoneIDs:        c.ZoneIDs,
		ServiceTypeIDs: c.ServiceTypeIDs,
	})
}

type extraCreateRequest struct {
	Name        string          `json:"name" validate:"required"`
	Description string          `json:"description"`
	Type        string          `json:"charge_type" validate:"required,oneof=FIXED PERCENTAGE"`
	Value       decimal.Decimal `json:"value" validate:"gte=0"`
}

func (s *server) handleCreateExtra(w http.ResponseWriter, r *http.Request) {
	var req extraCreateRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	e, err := s.refs.CreateExtra(r.Context(), pricing.Extra{
		Name:        req.Name,
		Description: req.Description,
		Type:        pricing.ChargeType(req.Type),
		Value:       req.Value,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, extraResponse{ID: e.ID, Name: e.Name, Description: e.Description, Type: string(e.Type), Value: e.Value.String()})
}

type cityRequest struct {
	Name           string          `json:"name" validate:"required"`
	DeliveryCharge decimal.Decimal `json:"delivery_charge" validate:"gte=0"`
}

func (s *server) handleCreateCity(w http.ResponseWriter, r *http.Request) {
	var req cityRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.refs.CreateCity(r.Context(), pricing.City{Name: req.Name, DeliveryCharge: req.DeliveryCharge})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, cityResponse{ID: c.ID, Name: c.Name, DeliveryCharge: money(c.DeliveryCharge)})
}

type currencyRequest struct {
	Code           string          `json:"code" validate:"required,len=3"`
	Name           string          `json:"name"`
	ConversionRate decimal.Decimal `json:"conversion_rate" validate:"gt=0"`
}

func (s *server) handleUpsertCurrency(w http.ResponseWriter, r *http.Request) {
	var req currencyRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.refs.UpsertCurrency(r.Context(), pricing.Currency{Code: req.Code, Name: req.Name, ConversionRate: req.ConversionRate})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, currencyResponse{Code: c.Code, Name: c.Name, ConversionRate: c.ConversionRate.String()})
}

type codFeeRequest struct {
	Percent decimal.Decimal `json:"percent" validate:"gte=0,lte=100"`
}

func (s *server) handleSetCODFee(w http.ResponseWriter, r *http.Request) {
	var req codFeeRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.refs.SetCODFeePercent(r.Context(), req.Percent); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"percent": req.Percent.String()})
}

type activeRequest struct {
	Active *bool `json:"active" validate:"required"`
}

func (s *server) handleSetActive(w http.ResponseWriter, r *http.Request) {
	resource := strings.ToLower(chi.URLParam(r, "resource"))
	id, err := idParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req activeRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.refs.SetActive(r.Context(), resource, id, *req.Active); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"resource": resource, "id": id, "active": *req.Active})
}
