// backend/internal/profile/handler.go
package profile

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"assessment-system/internal/auth"
	"assessment-system/internal/models"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type ProfileRequest struct {
	Name             string `json:"name"`
	RegimentalNumber string `json:"regimental_number"`
	Unit             string `json:"unit"`
	SchoolCollege    string `json:"school_college"`
	Directorate      string `json:"directorate"`
	Group            string `json:"group"`
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	p, err := h.service.Get(r.Context(), id.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "Profile not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to load profile", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(p)
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req ProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	p, err := h.service.Upsert(r.Context(), id.UserID, models.Profile{
		Name:             req.Name,
		RegimentalNumber: req.RegimentalNumber,
		Unit:             req.Unit,
		SchoolCollege:    req.SchoolCollege,
		Directorate:      req.Directorate,
		Group:            req.Group,
	})
	if err != nil {
		if errors.Is(err, ErrIncompleteProfile) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Printf("Error updating profile for user %s: %v", id.UserID, err)
		http.Error(w, "Failed to save profile", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(p)
}
