// backend/internal/assessment/handler.go
package assessment

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"assessment-system/internal/auth"
	"assessment-system/internal/session"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type StartRequest struct {
	Kind         session.Kind `json:"kind"`
	AssessmentID string       `json:"assessment_id"`
}

type AnswerRequest struct {
	QuestionID string `json:"question_id"`
	Option     string `json:"option"`
}

// Routes registers the catalogue, attempt and history endpoints. Attempt
// routes are expected behind the profile gate. Both routers answer a
// known path with the wrong method with 405.
func (h *Handler) Routes(api, gated *mux.Router) {
	for _, router := range []*mux.Router{api, gated} {
		if router.MethodNotAllowedHandler == nil {
			router.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)
		}
	}

	api.HandleFunc("/quizzes", h.ListQuizzes).Methods("GET")
	api.HandleFunc("/quizzes/{id}", h.GetQuiz).Methods("GET")
	api.HandleFunc("/mock-tests", h.ListMockTests).Methods("GET")
	api.HandleFunc("/mock-tests/{id}", h.GetMockTest).Methods("GET")
	api.HandleFunc("/results", h.Results).Methods("GET")

	gated.HandleFunc("/attempts", h.StartAttempt).Methods("POST")
	gated.HandleFunc("/attempts/{id}", h.GetAttempt).Methods("GET")
	gated.HandleFunc("/attempts/{id}", h.Abandon).Methods("DELETE")
	gated.HandleFunc("/attempts/{id}/retry-load", h.RetryLoad).Methods("POST")
	gated.HandleFunc("/attempts/{id}/begin", h.Begin).Methods("POST")
	gated.HandleFunc("/attempts/{id}/answer", h.Answer).Methods("POST")
	gated.HandleFunc("/attempts/{id}/previous", h.Previous).Methods("POST")
	gated.HandleFunc("/attempts/{id}/next", h.Next).Methods("POST")
	gated.HandleFunc("/attempts/{id}/submit", h.Submit).Methods("POST")
	gated.HandleFunc("/attempts/{id}/confirm", h.Confirm).Methods("POST")
	gated.HandleFunc("/attempts/{id}/cancel-submit", h.CancelSubmit).Methods("POST")
	gated.HandleFunc("/attempts/{id}/retry-submit", h.RetrySubmit).Methods("POST")
}

func (h *Handler) ListQuizzes(w http.ResponseWriter, r *http.Request) {
	quizzes, err := h.service.ListQuizzes(r.Context(), r.URL.Query().Get("subject"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quizzes)
}

func (h *Handler) GetQuiz(w http.ResponseWriter, r *http.Request) {
	quiz, err := h.service.GetQuiz(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (h *Handler) ListMockTests(w http.ResponseWriter, r *http.Request) {
	tests, err := h.service.ListMockTests(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tests)
}

func (h *Handler) GetMockTest(w http.ResponseWriter, r *http.Request) {
	test, err := h.service.GetMockTest(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, test)
}

func (h *Handler) Results(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	results, err := h.service.Results(r.Context(), id.UserID, session.Kind(r.URL.Query().Get("kind")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *Handler) StartAttempt(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	view, err := h.service.Start(r.Context(), id.UserID, req.Kind, req.AssessmentID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *Handler) GetAttempt(w http.ResponseWriter, r *http.Request) {
	h.attemptAction(w, r, func(userID, attemptID string) (AttemptView, error) {
		return h.service.Attempt(userID, attemptID)
	})
}

func (h *Handler) RetryLoad(w http.ResponseWriter, r *http.Request) {
	h.attemptAction(w, r, func(userID, attemptID string) (AttemptView, error) {
		return h.service.RetryLoad(r.Context(), userID, attemptID)
	})
}

func (h *Handler) Begin(w http.ResponseWriter, r *http.Request) {
	h.attemptAction(w, r, h.service.Begin)
}

func (h *Handler) Answer(w http.ResponseWriter, r *http.Request) {
	var req AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	h.attemptAction(w, r, func(userID, attemptID string) (AttemptView, error) {
		return h.service.Answer(userID, attemptID, req.QuestionID, req.Option)
	})
}

func (h *Handler) Previous(w http.ResponseWriter, r *http.Request) {
	h.attemptAction(w, r, h.service.Previous)
}

func (h *Handler) Next(w http.ResponseWriter, r *http.Request) {
	h.attemptAction(w, r, h.service.Next)
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	h.attemptAction(w, r, h.service.RequestSubmit)
}

func (h *Handler) CancelSubmit(w http.ResponseWriter, r *http.Request) {
	h.attemptAction(w, r, h.service.CancelSubmit)
}

func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.attemptAction(w, r, func(userID, attemptID string) (AttemptView, error) {
		return h.service.ConfirmSubmit(r.Context(), userID, attemptID)
	})
}

func (h *Handler) RetrySubmit(w http.ResponseWriter, r *http.Request) {
	h.attemptAction(w, r, func(userID, attemptID string) (AttemptView, error) {
		return h.service.RetrySubmit(r.Context(), userID, attemptID)
	})
}

func (h *Handler) Abandon(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if err := h.service.Abandon(id.UserID, mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// attemptAction runs an attempt operation for the caller. A rejected or
// failed operation still returns the attempt's view alongside the error.
func (h *Handler) attemptAction(w http.ResponseWriter, r *http.Request, op func(userID, attemptID string) (AttemptView, error)) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	view, err := op(id.UserID, mux.Vars(r)["id"])
	if err == nil {
		writeJSON(w, http.StatusOK, view)
		return
	}
	if view.AttemptID == "" {
		writeError(w, err)
		return
	}
	view.Error = err.Error()
	writeJSON(w, statusFor(err), view)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
}

func statusFor(err error) int {
	var lerr *session.LoadError
	var serr *session.SubmissionError
	switch {
	case errors.Is(err, ErrInvalidKind):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrAttemptNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case session.IsInvalidTransition(err), errors.Is(err, session.ErrSubmitInFlight):
		return http.StatusConflict
	case errors.Is(err, ErrUnavailable), errors.As(err, &lerr), errors.As(err, &serr):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("Request failed: %v", err)
		http.Error(w, "Internal server error", status)
		return
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}
