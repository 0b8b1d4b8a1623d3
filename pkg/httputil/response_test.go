package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"message": "success"}

	err := WriteJSON(w, http.StatusOK, data)

	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "success")
}

func TestNewJSON(t *testing.T) {
	resp, err := NewJSON(http.StatusCreated, map[string]string{"id": "s1"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, resp.Status)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.JSONEq(t, `{"id":"s1"}`, string(resp.Body))
}

func TestNewJSONUnencodable(t *testing.T) {
	_, err := NewJSON(http.StatusOK, make(chan int))
	assert.Error(t, err)
}

func TestResponseWriteTo(t *testing.T) {
	resp := NewResponse(http.StatusAccepted, []byte("queued"))
	resp.Header.Set("X-Custom", "1")

	w := httptest.NewRecorder()
	require.NoError(t, resp.WriteTo(w))

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-Custom"))
	assert.Equal(t, "queued", w.Body.String())
}

func TestResponseWriteToDefaultsStatus(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, (&Response{}).WriteTo(w))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestResponseClone(t *testing.T) {
	orig := NewResponse(http.StatusOK, []byte("abc"))
	orig.Header.Set("A", "1")

	c := orig.Clone()
	c.Header.Set("B", "2")
	c.Body[0] = 'z'

	assert.Empty(t, orig.Header.Get("B"))
	assert.Equal(t, "abc", string(orig.Body))
	assert.Equal(t, "1", c.Header.Get("A"))
}

func TestEnvelopeShape(t *testing.T) {
	raw, err := json.Marshal(Envelope{
		Data: map[string]string{"id": "tx1"},
		Meta: Meta{RequestID: "req-1", DurationMs: 3},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":{"id":"tx1"},"meta":{"requestId":"req-1","durationMs":3}}`, string(raw))
}

func TestNewPaginationMeta(t *testing.T) {
	tests := []struct {
		name       string
		p          Pagination
		total      int64
		totalPages int
		hasMore    bool
	}{
		{"empty", Pagination{Page: 1, PageSize: 50}, 0, 0, false},
		{"exact", Pagination{Page: 1, PageSize: 10}, 10, 1, false},
		{"more", Pagination{Page: 1, PageSize: 10}, 11, 2, true},
		{"last", Pagination{Page: 3, PageSize: 10}, 25, 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewPaginationMeta(tt.p, tt.total)
			assert.Equal(t, tt.totalPages, m.TotalPages)
			assert.Equal(t, tt.hasMore, m.HasMore)
		})
	}
}
