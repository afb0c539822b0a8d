package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/Simplici0/parcelrate/internal/buy4me"
	"github.com/Simplici0/parcelrate/internal/pricing"
	"github.com/Simplici0/parcelrate/internal/refdata"
	"github.com/Simplici0/parcelrate/internal/shipments"
)

const maxBodyBytes = 1 << 20

// badRequest is a malformed body or an invalid path parameter.
type badRequest struct {
	msg    string
	fields map[string]string
}

func (e *badRequest) Error() string { return e.msg }

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// Decimals validate as numbers so gte/gt tags work on them.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// decode reads a JSON body into dst and validates it.
func (s *server) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return &badRequest{msg: "request body is required"}
		}
		return &badRequest{msg: fmt.Sprintf("invalid JSON body: %v", err)}
	}

	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validate request: %w", err)
		}
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			key := strings.SplitN(fe.Namespace(), ".", 2)
			name := fe.Field()
			if len(key) == 2 {
				name = key[1]
			}
			fields[name] = describeTag(fe)
		}
		return &badRequest{msg: "validation failed", fields: fields}
	}
	return nil
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	case "len":
		return "must have length " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "min":
		return "must contain at least " + fe.Param() + " item(s)"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, &badRequest{msg: "invalid " + name}
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type errorResponse struct {
	Error  string            `json:"error"`
	Field  string            `json:"field,omitempty"`
	Kind   string            `json:"kind,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

// writeError maps domain errors onto HTTP statuses. Anything unrecognised is
// logged and reported as a 500 without details.
func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		br *badRequest
		pe *pricing.Error
	)
	switch {
	case errors.As(err, &br):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: br.msg, Fields: br.fields})
	case errors.As(err, &pe):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: pe.Message, Field: pe.Field, Kind: string(pe.Kind)})
	case errors.Is(err, shipments.ErrNotFound),
		errors.Is(err, buy4me.ErrNotFound),
		errors.Is(err, refdata.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: rootMessage(err)})
	case errors.Is(err, shipments.ErrVersionConflict),
		errors.Is(err, buy4me.ErrClosed):
		writeJSON(w, http.StatusConflict, errorResponse{Error: rootMessage(err)})
	case errors.Is(err, shipments.ErrInvalidInput),
		errors.Is(err, buy4me.ErrInvalidInput),
		errors.Is(err, refdata.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: rootMessage(err)})
	default:
		s.log.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

// rootMessage drops the "verb noun:" prefixes added while the error
// travelled up, keeping the sentinel and its detail.
func rootMessage(err error) string {
	for _, sentinel := range []error{
		shipments.ErrNotFound, shipments.ErrVersionConflict, shipments.ErrInvalidInput,
		buy4me.ErrNotFound, buy4me.ErrInvalidInput, buy4me.ErrClosed,
		refdata.ErrNotFound, refdata.ErrInvalidInput,
	} {
		if !errors.Is(err, sentinel) {
			continue
		}
		msg := err.Error()
		if i := strings.Index(msg, sentinel.Error()); i >= 0 {
			return msg[i:]
		}
		return sentinel.Error()
	}
	return err.Error()
}
