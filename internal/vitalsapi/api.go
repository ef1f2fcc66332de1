// Package vitalsapi serves the current simulated reading and its triage
// classification to the front-end, and lets it switch the simulated patient.
package vitalsapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/triageq/internal/authmw"
	"github.com/linnemanlabs/triageq/internal/triage"
	"github.com/linnemanlabs/triageq/internal/vitals"
)

// DefaultProfile is used when set_profile is called without a profile.
const DefaultProfile = "Stable"

// TriageService defines the business operations vitalsapi needs.
type TriageService interface {
	Snapshot(ctx context.Context) *triage.Snapshot
	Classify(ctx context.Context, v triage.Vitals) triage.Result
	SetProfile(ctx context.Context, name string) vitals.Change
	Profile(ctx context.Context) vitals.Change
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger  log.Logger
	svc     TriageService
	control func(http.Handler) http.Handler
}

// New creates a new API handler. controlToken guards set_profile; empty
// leaves it open.
func New(logger log.Logger, svc TriageService, controlToken string) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("triage service is required"))
	}
	return &API{
		logger:  logger,
		svc:     svc,
		control: authmw.ControlToken(controlToken, logger),
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/vitals", a.handleGetVitals)
		r.Get("/profile", a.handleGetProfile)
		r.Post("/classify", a.handleClassify)
		r.With(a.control).Post("/set_profile", a.handleSetProfile)
	})
}

func (a *API) handleGetVitals(w http.ResponseWriter, r *http.Request) {
	snap := a.svc.Snapshot(r.Context())

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("triageq.triage.class", string(snap.Triage.Class)))

	writeJSON(w, http.StatusOK, snap)
}

func (a *API) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.svc.Profile(r.Context()))
}

func (a *API) handleClassify(w http.ResponseWriter, r *http.Request) {
	var v triage.Vitals
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	res := a.svc.Classify(r.Context(), v)
	writeJSON(w, http.StatusOK, res)
}

type setProfileRequest struct {
	Profile *string `json:"profile"`
}

type setProfileResponse struct {
	Status     string `json:"status"`
	NewProfile string `json:"new_profile"`
}

func (a *API) handleSetProfile(w http.ResponseWriter, r *http.Request) {
	var req setProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	name := DefaultProfile
	if req.Profile != nil {
		name = *req.Profile
	}

	c := a.svc.SetProfile(r.Context(), name)

	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("triageq.profile.change_id", c.ID))

	writeJSON(w, http.StatusOK, setProfileResponse{Status: "success", NewProfile: c.Profile})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// nothing to do with errors here
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
