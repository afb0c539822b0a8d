package main

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/Simplici0/parcelrate/internal/pricing"
	"github.com/Simplici0/parcelrate/internal/shipments"
)

func paymentMethod(raw string) (pricing.PaymentMethod, error) {
	m, ok := pricing.ParsePaymentMethod(raw)
	if !ok {
		return "", &badRequest{msg: "validation failed", fields: map[string]string{"payment_method": "must be one of: ONLINE COD"}}
	}
	return m, nil
}

func (s *server) handleCreateShipment(w http.ResponseWriter, r *http.Request) {
	var req createShipmentRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	method, err := paymentMethod(req.PaymentMethod)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	sh, err := s.shipments.Create(r.Context(), shipments.CreateInput{
		Sender:        req.Sender.toDomain(),
		Recipient:     req.Recipient.toDomain(),
		ServiceTypeID: req.ServiceTypeID,
		Weight:        req.Weight,
		Dimensions:    req.Dimensions.toDomain(),
		CityID:        req.CityID,
		Extras:        extrasToDomain(req.Extras),
		PaymentMethod: method,
		Notes:         req.Notes,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newShipmentResponse(sh))
}

func (s *server) handleListShipments(w http.ResponseWriter, r *http.Request) {
	var f shipments.ListFilter
	if raw := r.URL.Query().Get("status"); raw != "" {
		st, ok := shipments.ParseStatus(raw)
		if !ok {
			s.writeError(w, r, &badRequest{msg: "unknown status " + strconv.Quote(raw)})
			return
		}
		f.Status = st
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeError(w, r, &badRequest{msg: "limit must be a positive integer"})
			return
		}
		f.Limit = n
	}

	list, err := s.shipments.List(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]shipmentResponse, 0, len(list))
	for _, sh := range list {
		out = append(out, newShipmentResponse(sh))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) handleGetShipment(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sh, err := s.shipments.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newShipmentResponse(sh))
}

func (s *server) handleTrackShipment(w http.ResponseWriter, r *http.Request) {
	sh, err := s.shipments.GetByTracking(r.Context(), r.URL.Query().Get("tracking_number"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newShipmentResponse(sh))
}

func (s *server) handleUpdateShipment(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req updateShipmentRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	in := shipments.UpdateInput{
		Version:       req.Version,
		ServiceTypeID: req.ServiceTypeID,
		Weight:        req.Weight,
		Dimensions:    req.Dimensions.toDomain(),
		CityID:        req.CityID,
		ClearCity:     req.ClearCity,
		Notes:         req.Notes,
	}
	if req.Sender != nil {
		p := req.Sender.toDomain()
		in.Sender = &p
	}
	if req.Recipient != nil {
		p := req.Recipient.toDomain()
		in.Recipient = &p
	}
	if req.Extras != nil {
		extras := extrasToDomain(*req.Extras)
		in.Extras = &extras
	}
	if req.PaymentMethod != nil {
		m, err := paymentMethod(*req.PaymentMethod)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		in.PaymentMethod = &m
	}

	sh, err := s.shipments.Update(r.Context(), id, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newShipmentResponse(sh))
}

func (s *server) handleShipmentStatus(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req statusRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	status, ok := shipments.ParseStatus(req.Status)
	if !ok {
		s.writeError(w, r, &badRequest{msg: "unknown status " + strconv.Quote(req.Status)})
		return
	}

	sh, err := s.shipments.UpdateStatus(r.Context(), id, status, req.Location, req.Description)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newShipmentResponse(sh))
}

func (s *server) handleShipmentReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sh, err := s.shipments.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := s.receipts.Generate(&buf, sh); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (s *server) handleRecalculateShipment(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sh, changed, err := s.shipments.Recalculate(r.Context(), id, "admin")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Changed  bool             `json:"changed"`
		Shipment shipmentResponse `json:"shipment"`
	}{changed, newShipmentResponse(sh)})
}
