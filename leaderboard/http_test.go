package leaderboard

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHandlerInsertAndTop(t *testing.T) {
	h := NewHandler(NewFileStore(t.TempDir()))

	w := serve(t, h, http.MethodGet, "/scores/"+song, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = serve(t, h, http.MethodPost, "/scores/"+song, `{"player":"ada","points":300}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var res InsertResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, 1, res.Rank)
	assert.Equal(t, "ada", res.Entry.Player)
	assert.False(t, res.Entry.Date.IsZero())

	w = serve(t, h, http.MethodPost, "/scores/"+song, `{"player":"bob","points":500}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = serve(t, h, http.MethodGet, "/scores/"+song, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	var top []Entry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &top))
	require.Len(t, top, 2)
	assert.Equal(t, "bob", top[0].Player)
	assert.Equal(t, res.Entry.ID, top[1].ID)
}

func TestHandlerRejects(t *testing.T) {
	h := NewHandler(NewFileStore(t.TempDir()))

	w := serve(t, h, http.MethodGet, "/scores/not-a-song", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(t, h, http.MethodPost, "/scores/"+song, `{"points":1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(t, h, http.MethodPost, "/scores/"+song, `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(t, h, http.MethodDelete, "/scores/"+song, "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHandlerCORS(t *testing.T) {
	h := NewHandler(NewFileStore(t.TempDir()))

	req := httptest.NewRequest(http.MethodGet, "/scores/"+song, nil)
	req.Header.Set("Origin", "http://example.com")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
