// Package httputil holds the JSON envelope, request decoding and middleware
// shared by the pharmacy HTTP handlers.
package httputil

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/medflow/pharmacy-backend/pkg/errors"
)

const (
	maxBodyBytes   = 1 << 20
	defaultPerPage = 20
	maxPerPage     = 100
)

// Response is the envelope every endpoint answers with
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

type ErrorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// Meta describes the page a list response holds
type Meta struct {
	Page       int   `json:"page,omitempty"`
	PerPage    int   `json:"per_page,omitempty"`
	Total      int64 `json:"total,omitempty"`
	TotalPages int   `json:"total_pages,omitempty"`
}

// NewMeta computes pagination metadata for a page of results
func NewMeta(page, perPage int, total int64) *Meta {
	m := &Meta{Page: page, PerPage: perPage, Total: total}
	if perPage > 0 {
		m.TotalPages = int((total + int64(perPage) - 1) / int64(perPage))
	}
	return m
}

func write(w http.ResponseWriter, status int, body Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func JSON(w http.ResponseWriter, statusCode int, data interface{}) {
	JSONWithMeta(w, statusCode, data, nil)
}

func JSONWithMeta(w http.ResponseWriter, statusCode int, data interface{}, meta *Meta) {
	write(w, statusCode, Response{
		Success: statusCode >= 200 && statusCode < 300,
		Data:    data,
		Meta:    meta,
	})
}

// Error writes err as an error envelope. Errors that are not AppErrors
// become a generic 500 so internals never leak to clients.
func Error(w http.ResponseWriter, err error) {
	var appErr *errors.AppError
	if !errors.As(err, &appErr) {
		appErr = errors.Internal("an unexpected error occurred")
	}

	write(w, appErr.StatusCode, Response{
		Error: &ErrorBody{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: appErr.Details,
		},
	})
}

func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func Created(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusCreated, data)
}

// DecodeJSON reads at most 1 MiB of JSON body into v
func DecodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return errors.BadRequest("invalid JSON body")
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v); err != nil {
		return errors.BadRequest("invalid JSON body")
	}
	return nil
}

// Pagination reads page and per_page. Out-of-range values fall back to page 1
// and 20 per page.
func Pagination(r *http.Request) (page, perPage int) {
	q := r.URL.Query()

	page, _ = strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}

	perPage, _ = strconv.Atoi(q.Get("per_page"))
	if perPage < 1 || perPage > maxPerPage {
		perPage = defaultPerPage
	}

	return page, perPage
}
