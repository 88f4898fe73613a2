// Package handlers implements the Scholet HTTP API.
package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/ryanyen2/Scholet/internal/infrastructure/monitoring/logging"
	"github.com/ryanyen2/Scholet/pkg/errors"
	"github.com/ryanyen2/Scholet/pkg/types/common"
)

var validate = validator.New()

// writeJSON wraps data in an APIResponse envelope.
func writeJSON[T any](w http.ResponseWriter, r *http.Request, status int, data T, page *common.Pagination) {
	resp := common.APIResponse[T]{
		Success:    status < http.StatusBadRequest,
		Data:       data,
		Pagination: page,
		RequestID:  middleware.GetReqID(r.Context()),
		Timestamp:  common.Now(),
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// writeError renders err with the HTTP status of its code. Errors without a
// code are masked as internal errors.
func writeError(w http.ResponseWriter, r *http.Request, log logging.Logger, err error) {
	var ae *errors.AppError
	if !errors.As(err, &ae) {
		ae = errors.New(errors.ErrCodeInternal, "internal server error").WithCause(err)
	}
	status := ae.HTTPStatus()
	detail := &common.ErrorDetail{Code: ae.Code.String(), Message: ae.Message, Detail: ae.Detail}
	if status >= http.StatusInternalServerError {
		log.Error("request failed", logging.String("path", r.URL.Path), logging.Err(err))
		if ae.Code == errors.ErrCodeInternal {
			detail.Message, detail.Detail = "internal server error", ""
		}
	}
	writeErrorBody(w, r, status, detail)
}

func writeErrorBody(w http.ResponseWriter, r *http.Request, status int, detail *common.ErrorDetail) {
	resp := common.APIResponse[any]{
		Error:     detail,
		RequestID: middleware.GetReqID(r.Context()),
		Timestamp: common.Now(),
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// decodeJSON reads and validates a request body of at most limit bytes.
func decodeJSON(r *http.Request, limit int64, dst interface{}) error {
	body := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(body)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeBadRequest, "failed to read request body")
	}
	if int64(len(data)) > limit {
		return errors.New(errors.ErrCodeBadRequest, "request body too large")
	}
	if len(data) == 0 {
		return errors.New(errors.ErrCodeBadRequest, "request body is required")
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return errors.Wrap(err, errors.ErrCodeBadRequest, "malformed JSON body")
	}
	if err := validate.Struct(dst); err != nil {
		return errors.Wrap(err, errors.ErrCodeValidation, "invalid request body").WithDetail(err.Error())
	}
	return nil
}

func queryInt(r *http.Request, name string) (*int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, errors.New(errors.ErrCodeBadRequest, "query parameter must be an integer").WithDetail(name + "=" + v)
	}
	return &n, nil
}

func queryFloat(r *http.Request, name string) (*float64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, errors.New(errors.ErrCodeInvalidZoom, "query parameter must be a number").WithDetail(name + "=" + v)
	}
	return &f, nil
}

// parsePagination reads page and page_size, defaulting missing values.
func parsePagination(r *http.Request) (common.Pagination, error) {
	page, err := queryInt(r, "page")
	if err != nil {
		return common.Pagination{}, err
	}
	size, err := queryInt(r, "page_size")
	if err != nil {
		return common.Pagination{}, err
	}
	var p common.Pagination
	if page != nil {
		p.Page = *page
	}
	if size != nil {
		p.PageSize = *size
	}
	p = p.Normalize()
	return p, p.Validate()
}
