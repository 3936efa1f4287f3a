package leaderboard

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"go-keyfall/debug"
)

// InsertResponse is the body of a successful POST
type InsertResponse struct {
	Rank  int   `json:"rank"`
	Entry Entry `json:"entry"`
}

type handler struct {
	store Store
}

// NewHandler serves a store over HTTP:
//
//	GET  /scores/{song}  the table, best first
//	POST /scores/{song}  add an Entry, returns its rank
func NewHandler(store Store) http.Handler {
	h := &handler{store: store}
	router := mux.NewRouter().StrictSlash(true)
	router.HandleFunc("/scores/{song}", h.top).Methods(http.MethodGet)
	router.HandleFunc("/scores/{song}", h.insert).Methods(http.MethodPost)

	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(router)
}

func (h *handler) top(w http.ResponseWriter, r *http.Request) {
	song := mux.Vars(r)["song"]
	entries, err := h.store.Top(r.Context(), song)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *handler) insert(w http.ResponseWriter, r *http.Request) {
	song := mux.Vars(r)["song"]

	var e Entry
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	if err := dec.Decode(&e); err != nil {
		http.Error(w, "could not decode entry: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := prepare(&e); err != nil {
		writeError(w, err)
		return
	}

	pos, err := h.store.Insert(r.Context(), song, e)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, InsertResponse{Rank: pos, Entry: e})
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBadSong), errors.Is(err, ErrBadEntry):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		debug.Warn("scores", "store error: %v", err)
		http.Error(w, "store error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
