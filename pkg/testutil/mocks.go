package testutil

import (
	"context"
	"database/sql/driver"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/medflow/pharmacy-backend/pkg/database"
	"github.com/medflow/pharmacy-backend/pkg/logger"
)

var whitespace = regexp.MustCompile(`\s+`)

// containsSQL matches when the expected text appears in the statement,
// ignoring differences in whitespace. Expectations stay literal SQL.
var containsSQL = sqlmock.QueryMatcherFunc(func(expected, actual string) error {
	e := strings.TrimSpace(whitespace.ReplaceAllString(expected, " "))
	a := whitespace.ReplaceAllString(actual, " ")
	if !strings.Contains(a, e) {
		return fmt.Errorf("statement %q does not contain %q", a, e)
	}
	return nil
})

// MockDB is a sqlmock-backed sqlx handle.
//
//	mockDB := testutil.NewMockDB(t)
//	defer mockDB.Close()
//	mockDB.ExpectQuery("FROM medicines WHERE id = ANY($1)").WillReturnRows(...)
//	repo := repository.NewMedicineRepository(mockDB.Wrap())
type MockDB struct {
	sqlmock.Sqlmock
	DB *sqlx.DB
}

func NewMockDB(t *testing.T) *MockDB {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(containsSQL))
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	return &MockDB{Sqlmock: mock, DB: sqlx.NewDb(db, "postgres")}
}

// Wrap returns the mock as a *database.DB for repositories
func (m *MockDB) Wrap() *database.DB {
	return database.Wrap(m.DB, logger.Nop())
}

func (m *MockDB) Close() error {
	return m.DB.Close()
}

// ExpectationsWereMet fails t when an expectation was not consumed
func (m *MockDB) ExpectationsWereMet(t *testing.T) {
	t.Helper()
	if err := m.Sqlmock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled mock expectations: %v", err)
	}
}

func MockRows(columns ...string) *sqlmock.Rows {
	return sqlmock.NewRows(columns)
}

// MedicineColumns are the columns repositories select for a medicine
var MedicineColumns = []string{
	"id", "name", "category", "batch_number", "expiry_date", "price", "quantity", "supplier_id", "created_at", "updated_at",
}

// PrescriptionColumns are the columns repositories select for a prescription
var PrescriptionColumns = []string{
	"id", "embg", "patient_name", "doctor_name", "date_issued", "status", "created_at", "updated_at",
}

// AnyTime matches any time.Time argument
type AnyTime struct{}

func (AnyTime) Match(v driver.Value) bool {
	_, ok := v.(time.Time)
	return ok
}

// AnyUUID matches any string argument that parses as a UUID
type AnyUUID struct{}

func (AnyUUID) Match(v driver.Value) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// PublishedEvent is one call recorded by MockPublisher
type PublishedEvent struct {
	Type    string
	Payload interface{}
}

// MockPublisher records Publish calls. It is safe for concurrent use.
type MockPublisher struct {
	mu     sync.Mutex
	events []PublishedEvent
	// Err, when set, is returned from every Publish call
	Err error
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, eventType string, payload interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	m.events = append(m.events, PublishedEvent{Type: eventType, Payload: payload})
	return nil
}

// Events returns a copy of the events published so far
func (m *MockPublisher) Events() []PublishedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PublishedEvent(nil), m.events...)
}

func (m *MockPublisher) EventsOfType(eventType string) []PublishedEvent {
	var out []PublishedEvent
	for _, e := range m.Events() {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func (m *MockPublisher) AssertEventPublished(t *testing.T, eventType string) {
	t.Helper()
	if len(m.EventsOfType(eventType)) == 0 {
		t.Errorf("expected event %q to be published, got %+v", eventType, m.Events())
	}
}

func (m *MockPublisher) AssertNoEventsPublished(t *testing.T) {
	t.Helper()
	if events := m.Events(); len(events) > 0 {
		t.Errorf("expected no events, but got %d: %+v", len(events), events)
	}
}
