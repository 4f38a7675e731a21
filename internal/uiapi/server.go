package uiapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/awaistahir/wattplan/internal/advisor"
	"github.com/awaistahir/wattplan/internal/apperr"
	"github.com/awaistahir/wattplan/internal/catalog"
	"github.com/awaistahir/wattplan/internal/engine"
	"github.com/awaistahir/wattplan/internal/household"
	"github.com/awaistahir/wattplan/internal/onboarding"
)

// UserHeader carries the caller's user ID. Requests without it act on
// DefaultUser.
const (
	UserHeader  = "X-User-ID"
	DefaultUser = "default"
)

// Pinger reports whether the database is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	advisor   *advisor.Advisor
	household *household.Service
	estimator *onboarding.Estimator
	db        Pinger
	logger    *slog.Logger
}

func NewServer(adv *advisor.Advisor, hh *household.Service, est *onboarding.Estimator, db Pinger, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		advisor:   adv,
		household: hh,
		estimator: est,
		db:        db,
		logger:    logger.With("component", "uiapi"),
	}
}

func userID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(UserHeader)); id != "" {
		return id
	}
	return DefaultUser
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(90 * time.Second))

	// CORS for local development
	r.Use(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", UserHeader},
	}).Handler)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/catalog", s.handleCatalog)
		r.Get("/profile", s.handleGetProfile)
		r.Put("/profile", s.handleUpdateProfile)
		r.Put("/profile/target", s.handleChangeTarget)
		r.Get("/appliances", s.handleGetAppliances)
		r.Post("/appliances", s.handleCreateAppliance)
		r.Get("/appliances/{id}", s.handleGetAppliance)
		r.Put("/appliances/{id}", s.handleUpdateAppliance)
		r.Delete("/appliances/{id}", s.handleDeleteAppliance)
		r.Get("/plan", s.handleGetPlan)
		r.Post("/plan/generate", s.handleGeneratePlan)
		r.Post("/plan/adjust", s.handleAdjustPlan)
		r.Get("/budget", s.handleBudget)
		r.Post("/onboarding/estimate", s.handleEstimate)
	})

	return r
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if err := s.db.Ping(r.Context()); err != nil {
		s.logger.ErrorContext(r.Context(), "database ping failed", "error", err)
		status = "degraded"
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":            status,
		"assistant_enabled": s.advisor.AssistantEnabled(),
		"rates":             s.advisor.Rates(),
	})
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	type entry struct {
		catalog.Entry
		DefaultHours engine.UsageBreakdown `json:"default_hours"`
	}
	list := catalog.List()
	out := make([]entry, len(list))
	for i, e := range list {
		out[i] = entry{Entry: e, DefaultHours: e.DefaultHours()}
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.household.Profile(r.Context(), userID(r))
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var in household.ProfileInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	profile, err := s.household.UpdateProfile(r.Context(), userID(r), in)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

func (s *Server) handleChangeTarget(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TargetBill float64 `json:"target_bill"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := s.advisor.ChangeTarget(r.Context(), userID(r), req.TargetBill)
	s.respondResult(w, r, res, err)
}

func (s *Server) handleGetAppliances(w http.ResponseWriter, r *http.Request) {
	appliances, err := s.household.ListAppliances(r.Context(), userID(r))
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, appliances)
}

func (s *Server) handleCreateAppliance(w http.ResponseWriter, r *http.Request) {
	var in household.ApplianceInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	appliance, err := s.household.AddAppliance(r.Context(), userID(r), in)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, appliance)
}

func (s *Server) handleGetAppliance(w http.ResponseWriter, r *http.Request) {
	appliance, err := s.household.GetAppliance(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, appliance)
}

func (s *Server) handleUpdateAppliance(w http.ResponseWriter, r *http.Request) {
	var in household.ApplianceInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	appliance, err := s.household.UpdateAppliance(r.Context(), userID(r), chi.URLParam(r, "id"), in)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, appliance)
}

func (s *Server) handleDeleteAppliance(w http.ResponseWriter, r *http.Request) {
	if err := s.household.DeleteAppliance(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		s.respondAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := s.advisor.Current(r.Context(), userID(r))
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, plan)
}

func (s *Server) handleGeneratePlan(w http.ResponseWriter, r *http.Request) {
	res, err := s.advisor.Generate(r.Context(), userID(r))
	s.respondResult(w, r, res, err)
}

func (s *Server) handleAdjustPlan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := s.advisor.Adjust(r.Context(), userID(r), req.Message)
	s.respondResult(w, r, res, err)
}

func (s *Server) handleBudget(w http.ResponseWriter, r *http.Request) {
	progress, err := s.advisor.Budget(r.Context(), userID(r))
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, progress)
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TotalKWh float64             `json:"total_kwh"`
		Devices  []onboarding.Device `json:"devices"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Devices) == 0 {
		s.respondAppError(w, r, apperr.Validation("devices", "at least one device is required"))
		return
	}
	if req.TotalKWh < 0 {
		s.respondAppError(w, r, apperr.Validation("total_kwh", "total consumption cannot be negative"))
		return
	}

	respondJSON(w, http.StatusOK, s.estimator.Estimate(r.Context(), req.TotalKWh, req.Devices))
}

// respondResult writes a plan result. A plan that was computed but not
// saved is still returned, with the failure in the error field.
func (s *Server) respondResult(w http.ResponseWriter, r *http.Request, res *advisor.Result, err error) {
	if res == nil {
		s.respondAppError(w, r, err)
		return
	}
	if err != nil {
		apperr.Log(r.Context(), s.logger, err)
		respondJSON(w, http.StatusOK, struct {
			*advisor.Result
			Error string `json:"error"`
		}{res, apperr.As(err).Message})
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) respondAppError(w http.ResponseWriter, r *http.Request, err error) {
	apperr.Log(r.Context(), s.logger, err)
	appErr := apperr.As(err)
	body := map[string]string{"error": appErr.Message}
	if appErr.Field != "" {
		body["field"] = appErr.Field
	}
	respondJSON(w, appErr.HTTPStatus(), body)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
