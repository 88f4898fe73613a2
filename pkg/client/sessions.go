package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ryanyen2/Scholet/pkg/errors"
	"github.com/ryanyen2/Scholet/pkg/types/api"
	"github.com/ryanyen2/Scholet/pkg/types/common"
)

// SessionsClient covers /sessions and everything scoped to one session.
type SessionsClient struct {
	client *Client
}

// BinsQuery selects the layer to fetch. Level and Zoom are mutually
// exclusive; leaving both zero uses the session's default level.
type BinsQuery struct {
	Level  int
	Zoom   *float64
	Column string
}

func (q BinsQuery) encode() string {
	v := url.Values{}
	if q.Level != 0 {
		v.Set("level", strconv.Itoa(q.Level))
	}
	if q.Zoom != nil {
		v.Set("zoom", strconv.FormatFloat(*q.Zoom, 'f', -1, 64))
	}
	if q.Column != "" {
		v.Set("column", q.Column)
	}
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}

// MessagePage is one page of a session's message log.
type MessagePage struct {
	Messages []api.Message
	Page     int
	PageSize int
	Total    int
}

func sessionPath(id string, parts ...string) (string, error) {
	if err := common.ID(id).Validate(); err != nil {
		return "", err
	}
	p := "/sessions/" + id
	for _, part := range parts {
		p += "/" + part
	}
	return p, nil
}

func (s *SessionsClient) Create(ctx context.Context) (*api.Session, error) {
	var out api.Session
	if _, err := s.client.do(ctx, http.MethodPost, "/sessions", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *SessionsClient) Get(ctx context.Context, id string) (*api.Session, error) {
	path, err := sessionPath(id)
	if err != nil {
		return nil, err
	}
	var out api.Session
	if _, err := s.client.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *SessionsClient) Delete(ctx context.Context, id string) error {
	path, err := sessionPath(id)
	if err != nil {
		return err
	}
	_, err = s.client.do(ctx, http.MethodDelete, path, nil, nil)
	return err
}

// Bins fetches one layer of groups with the session's selection overlaid.
func (s *SessionsClient) Bins(ctx context.Context, id string, q BinsQuery) (*api.Bins, error) {
	if q.Level != 0 && q.Zoom != nil {
		return nil, errors.InvalidParam("level and zoom are mutually exclusive")
	}
	path, err := sessionPath(id, "bins")
	if err != nil {
		return nil, err
	}
	var out api.Bins
	if _, err := s.client.do(ctx, http.MethodGet, path+q.encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *SessionsClient) Selection(ctx context.Context, id string) (*api.Selection, error) {
	path, err := sessionPath(id, "selection")
	if err != nil {
		return nil, err
	}
	var out api.Selection
	if _, err := s.client.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// QueryKey reports the facets of one entity id or bin key.
func (s *SessionsClient) QueryKey(ctx context.Context, id, key string) (*api.KeyState, error) {
	if key == "" {
		return nil, errors.InvalidParam("key cannot be empty")
	}
	path, err := sessionPath(id, "selection", url.PathEscape(key))
	if err != nil {
		return nil, err
	}
	var out api.KeyState
	if _, err := s.client.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PostMessage applies a chat message's instructions to the session.
func (s *SessionsClient) PostMessage(ctx context.Context, id string, msg api.Message) (*api.ApplyResult, error) {
	path, err := sessionPath(id, "messages")
	if err != nil {
		return nil, err
	}
	var out api.ApplyResult
	if _, err := s.client.do(ctx, http.MethodPost, path, msg, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Messages lists the session's applied messages. Zero page or size uses
// the server defaults.
func (s *SessionsClient) Messages(ctx context.Context, id string, page, pageSize int) (*MessagePage, error) {
	path, err := sessionPath(id, "messages")
	if err != nil {
		return nil, err
	}
	v := url.Values{}
	if page > 0 {
		v.Set("page", strconv.Itoa(page))
	}
	if pageSize > 0 {
		v.Set("page_size", strconv.Itoa(pageSize))
	}
	if len(v) > 0 {
		path += "?" + v.Encode()
	}
	var msgs []api.Message
	p, err := s.client.do(ctx, http.MethodGet, path, nil, &msgs)
	if err != nil {
		return nil, err
	}
	out := &MessagePage{Messages: msgs}
	if p != nil {
		out.Page, out.PageSize, out.Total = p.Page, p.PageSize, p.Total
	}
	return out, nil
}

// Reset clears the session's selection.
func (s *SessionsClient) Reset(ctx context.Context, id string) error {
	path, err := sessionPath(id, "reset")
	if err != nil {
		return err
	}
	_, err = s.client.do(ctx, http.MethodPost, path, nil, nil)
	return err
}

// SetLevel changes the session's default level.
func (s *SessionsClient) SetLevel(ctx context.Context, id string, level int) (*api.Session, error) {
	path, err := sessionPath(id, "level")
	if err != nil {
		return nil, err
	}
	var out api.Session
	if _, err := s.client.do(ctx, http.MethodPut, path, api.UpdateLevelRequest{Level: level}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
