package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/medflow/pharmacy-backend/internal/pharmacy/service"
	"github.com/medflow/pharmacy-backend/pkg/errors"
	"github.com/medflow/pharmacy-backend/pkg/httputil"
	"github.com/medflow/pharmacy-backend/pkg/logger"
)

const dateLayout = "2006-01-02"

// InvoiceHandler handles invoice endpoints
type InvoiceHandler struct {
	settler Settler
	queries Queries
	logger  *logger.Logger
}

// NewInvoiceHandler creates a new invoice handler
func NewInvoiceHandler(settler Settler, queries Queries, log *logger.Logger) *InvoiceHandler {
	return &InvoiceHandler{
		settler: settler,
		queries: queries,
		logger:  log,
	}
}

// Settle sells the requested medicines as the authenticated user
func (h *InvoiceHandler) Settle(w http.ResponseWriter, r *http.Request) {
	var in service.SettleInput
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.Error(w, err)
		return
	}
	in.UserID = httputil.GetUserID(r.Context())

	inv, err := h.settler.Settle(r.Context(), in)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, inv)
}

// List returns a page of invoices, or all invoices in [start, end] when both are given
func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("start") != "" || q.Get("end") != "" {
		h.listByDateRange(w, r, q.Get("start"), q.Get("end"))
		return
	}

	page, perPage := httputil.Pagination(r)
	invoices, total, err := h.queries.ListInvoices(r.Context(), page, perPage)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, invoices, httputil.NewMeta(page, perPage, total))
}

func (h *InvoiceHandler) listByDateRange(w http.ResponseWriter, r *http.Request, rawStart, rawEnd string) {
	start, err := parseBound("start", rawStart, false)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	end, err := parseBound("end", rawEnd, true)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	invoices, err := h.queries.ListInvoicesByDateRange(r.Context(), start, end)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, invoices)
}

// ListMine lists the invoices issued by the caller
func (h *InvoiceHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	h.listForUser(w, r, httputil.GetUserID(r.Context()))
}

func (h *InvoiceHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	h.listForUser(w, r, chi.URLParam(r, "userID"))
}

func (h *InvoiceHandler) listForUser(w http.ResponseWriter, r *http.Request, userID string) {
	invoices, err := h.queries.ListInvoicesByUser(r.Context(), userID)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, invoices)
}

func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	inv, err := h.queries.GetInvoice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, inv)
}

// parseBound accepts RFC3339 or a bare date. A bare end date covers the whole day.
func parseBound(field, raw string, end bool) (time.Time, error) {
	if raw == "" {
		return time.Time{}, errors.ValidationMessage(field+" is required", map[string]string{field: "this field is required"})
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	d, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, errors.ValidationMessage(field+" must be RFC3339 or YYYY-MM-DD",
			map[string]string{field: "must be RFC3339 or YYYY-MM-DD"})
	}
	if end {
		d = d.Add(24*time.Hour - time.Nanosecond)
	}
	return d, nil
}
