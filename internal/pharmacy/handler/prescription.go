package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/medflow/pharmacy-backend/internal/pharmacy/service"
	"github.com/medflow/pharmacy-backend/pkg/httputil"
	"github.com/medflow/pharmacy-backend/pkg/logger"
)

// PrescriptionHandler handles prescription endpoints
type PrescriptionHandler struct {
	reconciler Reconciler
	queries    Queries
	logger     *logger.Logger
}

// NewPrescriptionHandler creates a new prescription handler
func NewPrescriptionHandler(reconciler Reconciler, queries Queries, log *logger.Logger) *PrescriptionHandler {
	return &PrescriptionHandler{
		reconciler: reconciler,
		queries:    queries,
		logger:     log,
	}
}

// Create reconciles a prescription against the catalog
func (h *PrescriptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in service.CreatePrescriptionInput
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.reconciler.CreatePrescription(r.Context(), in)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, result)
}

// List returns a page of prescriptions, or the matches for ?q=
func (h *PrescriptionHandler) List(w http.ResponseWriter, r *http.Request) {
	if q := r.URL.Query().Get("q"); q != "" {
		prescriptions, err := h.queries.SearchPrescriptions(r.Context(), q)
		if err != nil {
			httputil.Error(w, err)
			return
		}
		httputil.JSON(w, http.StatusOK, prescriptions)
		return
	}

	page, perPage := httputil.Pagination(r)
	prescriptions, total, err := h.queries.ListPrescriptions(r.Context(), page, perPage)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, prescriptions, httputil.NewMeta(page, perPage, total))
}

func (h *PrescriptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.queries.GetPrescription(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, p)
}

func (h *PrescriptionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.reconciler.DeletePrescription(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.NoContent(w)
}

func (h *PrescriptionHandler) ListByPatient(w http.ResponseWriter, r *http.Request) {
	prescriptions, err := h.queries.ListByPatient(r.Context(), chi.URLParam(r, "embg"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, prescriptions)
}

func (h *PrescriptionHandler) ListByDoctor(w http.ResponseWriter, r *http.Request) {
	prescriptions, err := h.queries.ListByDoctor(r.Context(), chi.URLParam(r, "doctor"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, prescriptions)
}

// Exists reports whether the patient already has a prescription
func (h *PrescriptionHandler) Exists(w http.ResponseWriter, r *http.Request) {
	exists, err := h.queries.EmbgExists(r.Context(), chi.URLParam(r, "embg"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, map[string]bool{"exists": exists})
}
