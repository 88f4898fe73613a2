package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ryanyen2/Scholet/internal/application/explorer"
	"github.com/ryanyen2/Scholet/internal/domain/instruction"
	"github.com/ryanyen2/Scholet/internal/infrastructure/monitoring/logging"
	"github.com/ryanyen2/Scholet/pkg/errors"
	"github.com/ryanyen2/Scholet/pkg/types/common"
)

// DefaultMaxBodyBytes bounds a posted chat message.
const DefaultMaxBodyBytes = 1 << 20

// SourceHTTP tags messages that arrived through the API.
const SourceHTTP = "http"

type ExplorerHandler struct {
	svc          explorer.Service
	logger       logging.Logger
	maxBodyBytes int64
}

func NewExplorerHandler(svc explorer.Service, log logging.Logger, maxBodyBytes int64) *ExplorerHandler {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &ExplorerHandler{svc: svc, logger: log.Named("http"), maxBodyBytes: maxBodyBytes}
}

func (h *ExplorerHandler) RegisterRoutes(r chi.Router) {
	r.Get("/levels", h.Levels)
	r.Get("/dataset", h.Dataset)
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", h.CreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Delete("/", h.DeleteSession)
			r.Get("/bins", h.Bins)
			r.Get("/selection", h.Selection)
			r.Get("/selection/{key}", h.QueryKey)
			r.Post("/messages", h.PostMessage)
			r.Get("/messages", h.ListMessages)
			r.Post("/reset", h.Reset)
			r.Put("/level", h.UpdateLevel)
		})
	})
}

// sessionID reads and validates the {id} path parameter.
func sessionID(r *http.Request) (string, error) {
	id := chi.URLParam(r, "id")
	if err := common.ID(id).Validate(); err != nil {
		return "", err
	}
	return id, nil
}

func (h *ExplorerHandler) Levels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.svc.Levels(), nil)
}

func (h *ExplorerHandler) Dataset(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.svc.Dataset(), nil)
}

func (h *ExplorerHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	info, err := h.svc.CreateSession(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Location", r.URL.Path+"/"+info.ID)
	writeJSON(w, r, http.StatusCreated, info, nil)
}

func (h *ExplorerHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	info, err := h.svc.GetSession(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, info, nil)
}

func (h *ExplorerHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.svc.DeleteSession(r.Context(), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Bins serves GET /sessions/{id}/bins?level=&zoom=&column=.
func (h *ExplorerHandler) Bins(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	level, err := queryInt(r, "level")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	zoom, err := queryFloat(r, "zoom")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	res, err := h.svc.Bins(r.Context(), &explorer.BinsInput{
		SessionID: id,
		Level:     level,
		Zoom:      zoom,
		Column:    r.URL.Query().Get("column"),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res, nil)
}

func (h *ExplorerHandler) Selection(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	res, err := h.svc.Selection(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res, nil)
}

func (h *ExplorerHandler) QueryKey(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	res, err := h.svc.QueryKey(r.Context(), id, chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res, nil)
}

func (h *ExplorerHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var msg instruction.Message
	if err := decodeJSON(r, h.maxBodyBytes, &msg); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	res, err := h.svc.ApplyMessage(r.Context(), id, SourceHTTP, msg)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res, nil)
}

func (h *ExplorerHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	p, err := parsePagination(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	msgs, err := h.svc.Messages(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	items, page := common.Page(msgs, p)
	writeJSON(w, r, http.StatusOK, items, &page)
}

func (h *ExplorerHandler) Reset(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.svc.Reset(r.Context(), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type UpdateLevelRequest struct {
	Level *int `json:"level" validate:"required"`
}

func (h *ExplorerHandler) UpdateLevel(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req UpdateLevelRequest
	if err := decodeJSON(r, h.maxBodyBytes, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.svc.UpdateDefaultLevel(r.Context(), id, *req.Level); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	info, err := h.svc.GetSession(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, info, nil)
}

// NotFound renders unknown routes with the standard error envelope.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, logging.NewNopLogger(), errors.NotFound("route not found").WithDetail(r.URL.Path))
}

// MethodNotAllowed renders a 405 with the standard error envelope.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeErrorBody(w, r, http.StatusMethodNotAllowed, &common.ErrorDetail{
		Code:    errors.ErrCodeBadRequest.String(),
		Message: "method not allowed",
		Detail:  r.Method + " " + r.URL.Path,
	})
}
