package main

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Simplici0/parcelrate/internal/pricing"
)

func (s *server) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	method, ok := pricing.ParsePaymentMethod(req.PaymentMethod)
	if !ok {
		s.writeError(w, r, &badRequest{msg: "validation failed", fields: map[string]string{"payment_method": "must be one of: ONLINE COD"}})
		return
	}

	snap, err := s.refs.Snapshot(r.Context(), nil)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	in := req.toInput(method)
	res := pricing.Quote(snap, in)
	if len(res.Errors) == 0 {
		s.metrics.RecordQuote()
		writeJSON(w, http.StatusOK, newBreakdownResponse(res))
		return
	}

	s.metrics.RecordQuote(quoteErrorKinds(snap, in)...)
	writeJSON(w, http.StatusBadRequest, newBreakdownResponse(res))
}

// quoteErrorKinds classifies a failed quote for metrics by replaying it in
// strict mode.
func quoteErrorKinds(snap pricing.Snapshot, in pricing.Input) []string {
	_, err := pricing.Calculate(snap, in)
	var pe *pricing.Error
	if errors.As(err, &pe) {
		return []string{string(pe.Kind)}
	}
	return []string{"unknown"}
}

func (s *server) handleConvert(w http.ResponseWriter, r *http.Request) {
	var req convertRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	snap, err := s.refs.Snapshot(r.Context(), nil)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	from := strings.ToUpper(req.FromCurrency)
	to := strings.ToUpper(req.ToCurrency)
	converted, err := pricing.Convert(snap, from, req.FromAmount, to)
	s.metrics.RecordConversion(err == nil)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, convertResponse{
		FromCurrency:    from,
		FromAmount:      money(req.FromAmount),
		ToCurrency:      to,
		ConvertedAmount: money(converted),
	})
}

type countryResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
	Type string `json:"country_type"`
}

func (s *server) handleListCountries(w http.ResponseWriter, r *http.Request) {
	filter := pricing.CountryType(strings.ToUpper(r.URL.Query().Get("country_type")))
	if filter != "" && filter != pricing.CountryDeparture && filter != pricing.CountryDestination {
		s.writeError(w, r, &badRequest{msg: "country_type must be DEPARTURE or DESTINATION"})
		return
	}

	snap, err := s.refs.Snapshot(r.Context(), nil)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]countryResponse, 0)
	for _, c := range snap.Countries() {
		if !c.Active || (filter != "" && c.Type != filter) {
			continue
		}
		out = append(out, countryResponse{ID: c.ID, Name: c.Name, Code: c.Code, Type: string(c.Type)})
	}
	writeJSON(w, http.StatusOK, out)
}

type serviceTypeResponse struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	Description       string `json:"description,omitempty"`
	DeliveryTime      string `json:"delivery_time,omitempty"`
	Price             string `json:"price"`
	DimensionalFactor int    `json:"dimensional_factor"`
}

func (s *server) handleListServiceTypes(w http.ResponseWriter, r *http.Request) {
	snap, err := s.refs.Snapshot(r.Context(), nil)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]serviceTypeResponse, 0)
	for _, st := range snap.ServiceTypes() {
		if !st.Active {
			continue
		}
		out = append(out, serviceTypeResponse{
			ID:                st.ID,
			Name:              st.Name,
			Description:       st.Description,
			DeliveryTime:      st.DeliveryTime,
			Price:             money(st.Price),
			DimensionalFactor: pricing.DimensionalFactorFor(snap, st.ID),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type extraResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Type        string `json:"charge_type"`
	Value       string `json:"value"`
}

func (s *server) handleListExtras(w http.ResponseWriter, r *http.Request) {
	snap, err := s.refs.Snapshot(r.Context(), nil)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]extraResponse, 0)
	for _, e := range snap.Extras() {
		if !e.Active {
			continue
		}
		out = append(out, extraResponse{ID: e.ID, Name: e.Name, Description: e.Description, Type: string(e.Type), Value: e.Value.String()})
	}
	writeJSON(w, http.StatusOK, out)
}

type cityResponse struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	DeliveryCharge string `json:"delivery_charge"`
}

func (s *server) handleListCities(w http.ResponseWriter, r *http.Request) {
	snap, err := s.refs.Snapshot(r.Context(), nil)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]cityResponse, 0)
	for _, c := range snap.Cities() {
		if !c.Active {
			continue
		}
		out = append(out, cityResponse{ID: c.ID, Name: c.Name, DeliveryCharge: money(c.DeliveryCharge)})
	}
	writeJSON(w, http.StatusOK, out)
}

type currencyResponse struct {
	Code           string `json:"code"`
	Name           string `json:"name"`
	ConversionRate string `json:"conversion_rate"`
}

func (s *server) handleListCurrencies(w http.ResponseWriter, r *http.Request) {
	snap, err := s.refs.Snapshot(r.Context(), nil)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]currencyResponse, 0)
	for _, c := range snap.Currencies() {
		out = append(out, currencyResponse{Code: c.Code, Name: c.Name, ConversionRate: c.ConversionRate.String()})
	}
	writeJSON(w, http.StatusOK, out)
}
