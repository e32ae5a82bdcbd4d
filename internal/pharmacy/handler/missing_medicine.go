package handler

import (
	"net/http"

	"github.com/medflow/pharmacy-backend/pkg/httputil"
)

// MissingMedicineHandler serves the missing-medicine ledger
type MissingMedicineHandler struct {
	queries Queries
}

func NewMissingMedicineHandler(queries Queries) *MissingMedicineHandler {
	return &MissingMedicineHandler{queries: queries}
}

// List returns a page of ledger records, newest first
func (h *MissingMedicineHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := httputil.Pagination(r)
	records, total, err := h.queries.ListMissingMedicines(r.Context(), page, perPage)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSONWithMeta(w, http.StatusOK, records, httputil.NewMeta(page, perPage, total))
}
