package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
	"github.com/medflow/pharmacy-backend/internal/pharmacy/handler"
	"github.com/medflow/pharmacy-backend/internal/pharmacy/service"
	"github.com/medflow/pharmacy-backend/pkg/errors"
	"github.com/medflow/pharmacy-backend/pkg/logger"
	"github.com/medflow/pharmacy-backend/pkg/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReconciler struct {
	got       service.CreatePrescriptionInput
	result    *service.ReconciliationResult
	err       error
	deletedID string
}

func (f *fakeReconciler) CreatePrescription(ctx context.Context, in service.CreatePrescriptionInput) (*service.ReconciliationResult, error) {
	f.got = in
	return f.result, f.err
}

func (f *fakeReconciler) DeletePrescription(ctx context.Context, id string) error {
	f.deletedID = id
	return f.err
}

type fakeSettler struct {
	got service.SettleInput
	inv *domain.Invoice
	err error
}

func (f *fakeSettler) Settle(ctx context.Context, in service.SettleInput) (*domain.Invoice, error) {
	f.got = in
	return f.inv, f.err
}

type fakeQueries struct {
	calls        []string
	arg          string
	page, per    int
	start, end   time.Time
	err          error
	prescription *domain.Prescription
	exists       bool
}

func (f *fakeQueries) record(call, arg string) {
	f.calls = append(f.calls, call)
	f.arg = arg
}

func (f *fakeQueries) GetPrescription(ctx context.Context, id string) (*domain.Prescription, error) {
	f.record("GetPrescription", id)
	return f.prescription, f.err
}

func (f *fakeQueries) ListPrescriptions(ctx context.Context, page, perPage int) ([]*domain.Prescription, int64, error) {
	f.record("ListPrescriptions", "")
	f.page, f.per = page, perPage
	return []*domain.Prescription{}, 45, f.err
}

func (f *fakeQueries) ListByPatient(ctx context.Context, embg string) ([]*domain.Prescription, error) {
	f.record("ListByPatient", embg)
	return []*domain.Prescription{}, f.err
}

func (f *fakeQueries) ListByDoctor(ctx context.Context, doctor string) ([]*domain.Prescription, error) {
	f.record("ListByDoctor", doctor)
	return []*domain.Prescription{}, f.err
}

func (f *fakeQueries) SearchPrescriptions(ctx context.Context, q string) ([]*domain.Prescription, error) {
	f.record("SearchPrescriptions", q)
	return []*domain.Prescription{}, f.err
}

func (f *fakeQueries) EmbgExists(ctx context.Context, embg string) (bool, error) {
	f.record("EmbgExists", embg)
	return f.exists, f.err
}

func (f *fakeQueries) GetInvoice(ctx context.Context, id string) (*domain.Invoice, error) {
	f.record("GetInvoice", id)
	return &domain.Invoice{ID: id}, f.err
}

func (f *fakeQueries) ListInvoices(ctx context.Context, page, perPage int) ([]*domain.InvoiceSummary, int64, error) {
	f.record("ListInvoices", "")
	f.page, f.per = page, perPage
	return []*domain.InvoiceSummary{}, 0, f.err
}

func (f *fakeQueries) ListInvoicesByUser(ctx context.Context, userID string) ([]*domain.InvoiceSummary, error) {
	f.record("ListInvoicesByUser", userID)
	return []*domain.InvoiceSummary{}, f.err
}

func (f *fakeQueries) ListInvoicesByDateRange(ctx context.Context, start, end time.Time) ([]*domain.InvoiceSummary, error) {
	f.record("ListInvoicesByDateRange", "")
	f.start, f.end = start, end
	return []*domain.InvoiceSummary{}, f.err
}

func (f *fakeQueries) ListMissingMedicines(ctx context.Context, page, perPage int) ([]*domain.MissingMedicineRecord, int64, error) {
	f.record("ListMissingMedicines", "")
	f.page, f.per = page, perPage
	return []*domain.MissingMedicineRecord{}, 3, f.err
}

type fixture struct {
	router     chi.Router
	reconciler *fakeReconciler
	settler    *fakeSettler
	queries    *fakeQueries
}

func newFixture() *fixture {
	f := &fixture{
		reconciler: &fakeReconciler{},
		settler:    &fakeSettler{},
		queries:    &fakeQueries{},
	}
	log := logger.Nop()
	f.router = chi.NewRouter()
	handler.Mount(f.router,
		handler.NewPrescriptionHandler(f.reconciler, f.queries, log),
		handler.NewInvoiceHandler(f.settler, f.queries, log),
		handler.NewMissingMedicineHandler(f.queries),
	)
	return f
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
	Meta *struct {
		Page       int   `json:"page"`
		PerPage    int   `json:"per_page"`
		Total      int64 `json:"total"`
		TotalPages int   `json:"total_pages"`
	} `json:"meta"`
}

func (e envelope) object(t *testing.T) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(e.Data, &out))
	return out
}

// ============================================================================
// Prescriptions
// ============================================================================

func TestPrescriptionHandler_Create(t *testing.T) {
	f := newFixture()
	f.reconciler.result = &service.ReconciliationResult{
		Prescription: &domain.Prescription{ID: "rx-1", Status: domain.StatusPending},
		MissingMedicines: []domain.MissingLine{
			{MedicineName: "Aspirin", Quantity: 2},
		},
	}

	req := testutil.NewHTTPRequest(http.MethodPost, "/prescriptions", map[string]interface{}{
		"patient_id":   "0101990450001",
		"patient_name": "Elena Nikolova",
		"doctor_name":  "Dr. Ilievski",
		"medicines": []map[string]interface{}{
			{"medicine_name": "Aspirin", "quantity": 2},
		},
	})
	rr := testutil.ExecuteRequest(f.router, req)

	testutil.AssertStatus(t, rr, http.StatusCreated)
	assert.Equal(t, "0101990450001", f.reconciler.got.PatientID)
	require.Len(t, f.reconciler.got.Medicines, 1)
	assert.Equal(t, 2, f.reconciler.got.Medicines[0].Quantity)

	var body envelope
	testutil.ParseJSONBody(t, rr, &body)
	assert.True(t, body.Success)
	data := body.object(t)
	assert.Equal(t, "Pending", data["prescription"].(map[string]interface{})["status"])
	assert.Len(t, data["missing_medicines"], 1)
}

func TestPrescriptionHandler_CreateErrors(t *testing.T) {
	t.Run("malformed body", func(t *testing.T) {
		f := newFixture()
		req := testutil.NewHTTPRequest(http.MethodPost, "/prescriptions", nil)
		rr := testutil.ExecuteRequest(f.router, req)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("validation details are returned", func(t *testing.T) {
		f := newFixture()
		f.reconciler.err = errors.ValidationMessage("at least one medicine is required",
			map[string]string{"medicines": "at least one medicine is required"})

		req := testutil.NewHTTPRequest(http.MethodPost, "/prescriptions", map[string]string{"patient_id": "0101990450001"})
		rr := testutil.ExecuteRequest(f.router, req)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)

		var body envelope
		testutil.ParseJSONBody(t, rr, &body)
		require.NotNil(t, body.Error)
		assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
		assert.Equal(t, "at least one medicine is required", body.Error.Details["medicines"])
	})

	t.Run("duplicate patient", func(t *testing.T) {
		f := newFixture()
		f.reconciler.err = errors.Conflict("a prescription for this patient already exists")

		req := testutil.NewHTTPRequest(http.MethodPost, "/prescriptions", map[string]string{"patient_id": "0101990450001"})
		rr := testutil.ExecuteRequest(f.router, req)
		testutil.AssertStatus(t, rr, http.StatusConflict)
	})
}

func TestPrescriptionHandler_Routes(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		status int
		call   string
		arg    string
	}{
		{"list", http.MethodGet, "/prescriptions?page=2&per_page=10", http.StatusOK, "ListPrescriptions", ""},
		{"search", http.MethodGet, "/prescriptions?q=marko", http.StatusOK, "SearchPrescriptions", "marko"},
		{"get", http.MethodGet, "/prescriptions/rx-1", http.StatusOK, "GetPrescription", "rx-1"},
		{"by patient", http.MethodGet, "/prescriptions/patient/0101990450001", http.StatusOK, "ListByPatient", "0101990450001"},
		{"by doctor", http.MethodGet, "/prescriptions/doctor/Ilievski", http.StatusOK, "ListByDoctor", "Ilievski"},
		{"exists", http.MethodGet, "/prescriptions/exists/0101990450001", http.StatusOK, "EmbgExists", "0101990450001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.queries.prescription = &domain.Prescription{ID: "rx-1"}

			rr := testutil.ExecuteRequest(f.router, testutil.NewHTTPRequest(tt.method, tt.path, nil))
			testutil.AssertStatus(t, rr, tt.status)
			assert.Equal(t, []string{tt.call}, f.queries.calls)
			assert.Equal(t, tt.arg, f.queries.arg)
		})
	}
}

func TestPrescriptionHandler_ListPagination(t *testing.T) {
	f := newFixture()

	rr := testutil.ExecuteRequest(f.router, testutil.NewHTTPRequest(http.MethodGet, "/prescriptions?page=2&per_page=10", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)
	assert.Equal(t, 2, f.queries.page)
	assert.Equal(t, 10, f.queries.per)

	var body envelope
	testutil.ParseJSONBody(t, rr, &body)
	require.NotNil(t, body.Meta)
	assert.Equal(t, int64(45), body.Meta.Total)
	assert.Equal(t, 5, body.Meta.TotalPages)
}

func TestPrescriptionHandler_Exists(t *testing.T) {
	f := newFixture()
	f.queries.exists = true

	rr := testutil.ExecuteRequest(f.router, testutil.NewHTTPRequest(http.MethodGet, "/prescriptions/exists/0101990450001", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)

	var body envelope
	testutil.ParseJSONBody(t, rr, &body)
	assert.Equal(t, true, body.object(t)["exists"])
}

func TestPrescriptionHandler_Delete(t *testing.T) {
	t.Run("deleted", func(t *testing.T) {
		f := newFixture()
		rr := testutil.ExecuteRequest(f.router, testutil.NewHTTPRequest(http.MethodDelete, "/prescriptions/rx-1", nil))
		testutil.AssertStatus(t, rr, http.StatusNoContent)
		assert.Equal(t, "rx-1", f.reconciler.deletedID)
	})

	t.Run("referenced by invoice", func(t *testing.T) {
		f := newFixture()
		f.reconciler.err = errors.Conflict("prescription is referenced by an invoice")
		rr := testutil.ExecuteRequest(f.router, testutil.NewHTTPRequest(http.MethodDelete, "/prescriptions/rx-1", nil))
		testutil.AssertStatus(t, rr, http.StatusConflict)
	})
}

// ============================================================================
// Invoices
// ============================================================================

func TestInvoiceHandler_Settle(t *testing.T) {
	f := newFixture()
	f.settler.inv = &domain.Invoice{
		ID:          "inv-1",
		UserName:    "Ana Petrova",
		TotalAmount: decimal.RequireFromString("15.00"),
	}

	req := testutil.NewHTTPRequest(http.MethodPost, "/invoices", map[string]interface{}{
		"user_id": "spoofed",
		"items": []map[string]interface{}{
			{"medicine_id": "11111111-1111-1111-1111-111111111111", "quantity": 3},
		},
	})
	rr := testutil.ExecuteRequest(f.router, testutil.WithUser(req, "user-1"))

	testutil.AssertStatus(t, rr, http.StatusCreated)
	assert.Equal(t, "user-1", f.settler.got.UserID)
	require.Len(t, f.settler.got.Items, 1)
	assert.Equal(t, 3, f.settler.got.Items[0].Quantity)

	var body envelope
	testutil.ParseJSONBody(t, rr, &body)
	data := body.object(t)
	assert.Equal(t, "inv-1", data["id"])
	assert.Equal(t, "15", data["total_amount"])
}

func TestInvoiceHandler_SettleErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"insufficient stock", errors.Conflict("insufficient stock for Paracetamol, available: 1"), http.StatusConflict},
		{"unknown medicine", errors.NotFoundWithMessage("one or more medicines do not exist"), http.StatusNotFound},
		{"integrity failure", errors.Internal("failed to settle invoice"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.settler.err = tt.err

			req := testutil.NewHTTPRequest(http.MethodPost, "/invoices", map[string]interface{}{"items": []interface{}{}})
			rr := testutil.ExecuteRequest(f.router, testutil.WithUser(req, "user-1"))
			testutil.AssertStatus(t, rr, tt.status)
		})
	}
}

func TestInvoiceHandler_Routes(t *testing.T) {
	tests := []struct {
		name string
		path string
		call string
		arg  string
	}{
		{"list", "/invoices", "ListInvoices", ""},
		{"mine", "/invoices/mine", "ListInvoicesByUser", "user-1"},
		{"by user", "/invoices/user/user-2", "ListInvoicesByUser", "user-2"},
		{"get", "/invoices/inv-1", "GetInvoice", "inv-1"},
		{"missing medicines", "/missing-medicines", "ListMissingMedicines", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			req := testutil.WithUser(testutil.NewHTTPRequest(http.MethodGet, tt.path, nil), "user-1")

			rr := testutil.ExecuteRequest(f.router, req)
			testutil.AssertStatus(t, rr, http.StatusOK)
			assert.Equal(t, []string{tt.call}, f.queries.calls)
			assert.Equal(t, tt.arg, f.queries.arg)
		})
	}
}

func TestInvoiceHandler_DateRange(t *testing.T) {
	t.Run("bare dates cover whole days", func(t *testing.T) {
		f := newFixture()
		rr := testutil.ExecuteRequest(f.router,
			testutil.NewHTTPRequest(http.MethodGet, "/invoices?start=2024-03-01&end=2024-03-31", nil))

		testutil.AssertStatus(t, rr, http.StatusOK)
		assert.Equal(t, []string{"ListInvoicesByDateRange"}, f.queries.calls)
		assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), f.queries.start)
		assert.Equal(t, time.Date(2024, 3, 31, 23, 59, 59, 999999999, time.UTC), f.queries.end)
	})

	t.Run("RFC3339 bounds", func(t *testing.T) {
		f := newFixture()
		rr := testutil.ExecuteRequest(f.router,
			testutil.NewHTTPRequest(http.MethodGet, "/invoices?start=2024-03-01T10:00:00Z&end=2024-03-01T12:00:00Z", nil))

		testutil.AssertStatus(t, rr, http.StatusOK)
		assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), f.queries.end)
	})

	t.Run("malformed bound", func(t *testing.T) {
		f := newFixture()
		rr := testutil.ExecuteRequest(f.router,
			testutil.NewHTTPRequest(http.MethodGet, "/invoices?start=yesterday&end=2024-03-01", nil))

		testutil.AssertStatus(t, rr, http.StatusBadRequest)
		assert.Empty(t, f.queries.calls)
	})

	t.Run("missing bound", func(t *testing.T) {
		f := newFixture()
		rr := testutil.ExecuteRequest(f.router,
			testutil.NewHTTPRequest(http.MethodGet, "/invoices?start=2024-03-01", nil))

		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})
}

func TestMissingMedicineHandler_List(t *testing.T) {
	f := newFixture()

	rr := testutil.ExecuteRequest(f.router, testutil.NewHTTPRequest(http.MethodGet, "/missing-medicines?per_page=500", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)
	assert.Equal(t, 20, f.queries.per)

	var body struct {
		Data []interface{} `json:"data"`
		Meta struct {
			Total int64 `json:"total"`
		} `json:"meta"`
	}
	testutil.ParseJSONBody(t, rr, &body)
	assert.Equal(t, int64(3), body.Meta.Total)
}
