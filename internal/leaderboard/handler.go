// backend/internal/leaderboard/handler.go
package leaderboard

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"assessment-system/internal/session"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// GetLeaderboard serves GET /api/leaderboard?kind=&subject=.
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	scope := Scope{Kind: session.Kind(q.Get("kind")), Subject: q.Get("subject")}

	entries, err := h.service.Board(r.Context(), scope)
	if err != nil {
		if errors.Is(err, ErrInvalidScope) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "Failed to load leaderboard", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"scope":   scope,
		"entries": entries,
	})
}

// GetSubjects serves GET /api/subjects?kind=.
func (h *Handler) GetSubjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := h.service.Subjects(r.Context(), session.Kind(r.URL.Query().Get("kind")))
	if err != nil {
		if errors.Is(err, ErrInvalidScope) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Printf("Error listing subjects: %v", err)
		http.Error(w, "Failed to load subjects", http.StatusInternalServerError)
		return
	}
	if subjects == nil {
		subjects = []string{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(subjects)
}
