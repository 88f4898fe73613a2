// Package common holds the wire types shared by the HTTP API and its
// clients.
package common

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/ryanyen2/Scholet/pkg/errors"
)

// ID is a UUID string such as a session identifier.
type ID string

// Validate checks that id is a well-formed UUID.
func (id ID) Validate() error {
	if id == "" {
		return errors.New(errors.ErrCodeBadRequest, "id cannot be empty")
	}
	if _, err := uuid.Parse(string(id)); err != nil {
		return errors.Wrap(err, errors.ErrCodeBadRequest, "invalid id format").WithDetail(string(id))
	}
	return nil
}

func NewID() ID {
	return ID(uuid.NewString())
}

// Timestamp marshals as RFC 3339 with nanoseconds in UTC.
type Timestamp time.Time

func Now() Timestamp { return Timestamp(time.Now().UTC()) }

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).UTC().Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return err
	}
	*t = Timestamp(parsed.UTC())
	return nil
}

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// Pagination is a 1-based page request. Total is filled in responses.
type Pagination struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
	Total    int `json:"total"`
}

// Normalize fills zero values with the first page and the default size.
func (p Pagination) Normalize() Pagination {
	if p.Page == 0 {
		p.Page = 1
	}
	if p.PageSize == 0 {
		p.PageSize = DefaultPageSize
	}
	return p
}

func (p Pagination) Validate() error {
	if p.Page < 1 {
		return errors.New(errors.ErrCodeBadRequest, "page must be >= 1")
	}
	if p.PageSize < 1 || p.PageSize > MaxPageSize {
		return errors.New(errors.ErrCodeBadRequest, "page_size must be between 1 and 500")
	}
	return nil
}

func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// Page slices items according to p and records the total.
func Page[T any](items []T, p Pagination) ([]T, Pagination) {
	p.Total = len(items)
	start := p.Offset()
	if start >= len(items) {
		return []T{}, p
	}
	end := start + p.PageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], p
}

// ErrorDetail is the error body of a failed request.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// APIResponse wraps every JSON response body.
type APIResponse[T any] struct {
	Success    bool         `json:"success"`
	Data       T            `json:"data,omitempty"`
	Error      *ErrorDetail `json:"error,omitempty"`
	Pagination *Pagination  `json:"pagination,omitempty"`
	RequestID  string       `json:"request_id,omitempty"`
	Timestamp  Timestamp    `json:"timestamp"`
}

type HealthStatus string

const (
	HealthUp       HealthStatus = "up"
	HealthDown     HealthStatus = "down"
	HealthDegraded HealthStatus = "degraded"
)

type ComponentHealth struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Latency string       `json:"latency,omitempty"`
	Message string       `json:"message,omitempty"`
}

// HealthReport aggregates component checks. The overall status is down when
// any required component is down and degraded when an optional one is.
type HealthReport struct {
	Status     HealthStatus      `json:"status"`
	Components []ComponentHealth `json:"components"`
}
