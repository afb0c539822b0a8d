package main

import (
	"net/http"
	"strconv"

	"github.com/Simplici0/parcelrate/internal/buy4me"
)

func (s *server) handleCreateBuy4me(w http.ResponseWriter, r *http.Request) {
	var req createBuy4meRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	in := buy4me.CreateInput{
		CustomerEmail:   req.CustomerEmail,
		ShippingAddress: req.ShippingAddress,
		Notes:           req.Notes,
		CityID:          req.CityID,
		Items:           make([]buy4me.ItemInput, 0, len(req.Items)),
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, it.toDomain())
	}

	out, err := s.buy4me.CreateRequest(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newBuy4meResponse(out))
}

func (s *server) handleGetBuy4me(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.buy4me.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newBuy4meResponse(out))
}

func (s *server) handleAddBuy4meItem(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req buy4meItemRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.buy4me.AddItem(r.Context(), id, req.toDomain())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newBuy4meResponse(out))
}

func (s *server) handleUpdateBuy4meItem(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	itemID, err := idParam(r, "itemID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req buy4meItemPatchRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.buy4me.UpdateItem(r.Context(), id, itemID, req.toDomain())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newBuy4meResponse(out))
}

func (s *server) handleRemoveBuy4meItem(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	itemID, err := idParam(r, "itemID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.buy4me.RemoveItem(r.Context(), id, itemID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newBuy4meResponse(out))
}

func (s *server) handleSetBuy4meCity(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req buy4meCityRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.buy4me.SetCity(r.Context(), id, req.CityID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newBuy4meResponse(out))
}

func (s *server) handleBuy4meStatus(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req buy4meStatusRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	status, ok := buy4me.ParseStatus(req.Status)
	if !ok {
		s.writeError(w, r, &badRequest{msg: "unknown status " + strconv.Quote(req.Status)})
		return
	}
	out, err := s.buy4me.UpdateStatus(r.Context(), id, status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newBuy4meResponse(out))
}
