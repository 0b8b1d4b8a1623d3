package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Header names set on every pipeline response.
const (
	HeaderRequestID = "X-Request-ID"
	HeaderDuration  = "X-Duration-Ms"
)

// Response is a complete HTTP response held in memory.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// NewResponse creates a response with an empty header set.
func NewResponse(status int, body []byte) *Response {
	return &Response{Status: status, Header: http.Header{}, Body: body}
}

// NewJSON encodes v as the body of a JSON response.
func NewJSON(status int, v interface{}) (*Response, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	resp := NewResponse(status, body)
	resp.Header.Set("Content-Type", "application/json")
	return resp, nil
}

// Clone returns a deep copy so callers can add headers without touching r.
func (r *Response) Clone() *Response {
	c := &Response{Status: r.Status, Header: r.Header.Clone(), Body: make([]byte, len(r.Body))}
	if c.Header == nil {
		c.Header = http.Header{}
	}
	copy(c.Body, r.Body)
	return c
}

// WriteTo copies the response onto w.
func (r *Response) WriteTo(w http.ResponseWriter) error {
	for k, v := range r.Header {
		w.Header()[k] = v
	}
	status := r.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if len(r.Body) == 0 {
		return nil
	}
	if _, err := w.Write(r.Body); err != nil {
		return fmt.Errorf("write response body: %w", err)
	}
	return nil
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// Meta is attached to every wrapped success response.
type Meta struct {
	RequestID  string `json:"requestId"`
	DurationMs int64  `json:"durationMs"`
}

// Envelope is the success body for plain handler values.
type Envelope struct {
	Data       interface{}     `json:"data"`
	Pagination *PaginationMeta `json:"pagination,omitempty"`
	Meta       Meta            `json:"meta"`
}

// PaginationMeta describes the page returned in an Envelope.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
	HasMore    bool  `json:"hasMore"`
}

// NewPaginationMeta computes page counts for total items.
func NewPaginationMeta(p Pagination, total int64) *PaginationMeta {
	totalPages := 0
	if p.PageSize > 0 {
		totalPages = int((total + int64(p.PageSize) - 1) / int64(p.PageSize))
	}
	return &PaginationMeta{
		Page:       p.Page,
		PageSize:   p.PageSize,
		Total:      total,
		TotalPages: totalPages,
		HasMore:    p.Page < totalPages,
	}
}
