package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/OHMS-DeAI/ohms-coordinator/internal/coordinator"
)

var validate = validator.New()

// registerAgentRequest is the wire payload for register_agent.
type registerAgentRequest struct {
	Address      string   `json:"address" validate:"required"`
	Capabilities []string `json:"capabilities" validate:"required,min=1"`
	ModelID      string   `json:"model_id" validate:"required"`
}

func (s *Server) handleRegisterAgent(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())

	var req registerAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	agentID := coordinator.DeriveAgentID(principal, req.ModelID, time.Now())
	descriptor := &coordinator.AgentDescriptor{
		AgentID:      agentID,
		Principal:    principal,
		Address:      req.Address,
		Capabilities: req.Capabilities,
		ModelID:      req.ModelID,
		HealthScore:  1.0,
		Status:       coordinator.AgentReady,
	}

	if err := s.state.Registry.Register(r.Context(), descriptor); err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	s.state.Stats.Seed(agentID, req.Capabilities)

	writeJSON(w, http.StatusCreated, descriptor)
}

type routeRequestBody struct {
	RequestID            string                  `json:"request_id" validate:"required,max=64"`
	RequiredCapabilities []string                `json:"required_capabilities" validate:"required,min=1"`
	Payload              []byte                  `json:"payload"`
	Mode                 coordinator.RoutingMode `json:"mode" validate:"required"`
}

func (s *Server) handleRouteRequest(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())

	var body routeRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := coordinator.ValidateRequestID(body.RequestID); err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	if err := validate.Struct(body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if s.state.Dedup.IsDuplicate(body.RequestID) {
		writeError(w, statusForError(coordinator.ErrDuplicateRequest), coordinator.ErrDuplicateRequest.Error())
		return
	}

	req := coordinator.RouteRequest{
		RequestID:            body.RequestID,
		Principal:            principal,
		RequiredCapabilities: body.RequiredCapabilities,
		Payload:              body.Payload,
		Mode:                 body.Mode,
	}

	resp, err := s.state.Routing.Route(r.Context(), req)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRouteBestResult(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())

	var body struct {
		routeRequestBody
		TopK      int   `json:"top_k"`
		WindowMs  int64 `json:"window_ms"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	// TopK and WindowMs are decoded but not applied: Route uses its fixed
	// fan-out width and window.
	body.Mode = coordinator.FanoutBest

	if err := coordinator.ValidateRequestID(body.RequestID); err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	if s.state.Dedup.IsDuplicate(body.RequestID) {
		writeError(w, statusForError(coordinator.ErrDuplicateRequest), coordinator.ErrDuplicateRequest.Error())
		return
	}

	req := coordinator.RouteRequest{
		RequestID:            body.RequestID,
		Principal:            principal,
		RequiredCapabilities: body.RequiredCapabilities,
		Payload:              body.Payload,
		Mode:                 coordinator.FanoutBest,
	}

	resp, err := s.state.Routing.Route(r.Context(), req)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type createAgentsRequest struct {
	Instructions string `json:"instructions" validate:"required"`
	Count        *int   `json:"count,omitempty"`
}

func (s *Server) handleCreateAgentsFromInstructions(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())

	var body createAgentsRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	requestID := "req_" + uuid.NewString()
	quotaCheck := func() coordinator.QuotaValidation {
		return s.state.Quota.ValidateCreation(principal)
	}

	result, err := s.state.Spawner.Spawn(r.Context(), requestID, principal, body.Instructions, quotaCheck)
	if err != nil && result.Status != coordinator.CreationCompleted {
		writeJSON(w, statusForError(err), result)
		return
	}
	s.state.Quota.RecordCreation(principal, len(result.CreatedAgents))
	writeJSON(w, http.StatusAccepted, result)
}

func (s *Server) handleGetAgentCreationStatus(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestID")
	result, err := s.state.Spawner.Result(requestID)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetUserQuotaStatus(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	if _, err := s.state.Quota.Sync(r.Context(), principal); err != nil {
		s.log.Warn("quota sync failed, serving local mirror", map[string]interface{}{"principal": principal, "error": err})
	}
	writeJSON(w, http.StatusOK, s.state.Quota.Get(principal))
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	agent, err := s.state.Registry.Get(id)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, agent)
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state.Registry.List())
}

func (s *Server) handleListUserAgents(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	all := s.state.Registry.List()
	out := make([]coordinator.AgentDescriptor, 0, len(all))
	for _, a := range all {
		if a.Principal == principal {
			out = append(out, a)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListInstructionRequests(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state.Spawner.InstructionRequests())
}

func (s *Server) handleGetRoutingStats(w http.ResponseWriter, r *http.Request) {
	agentID := r.URL.Query().Get("agent_id")
	if agentID == "" {
		writeJSON(w, http.StatusOK, s.state.Stats.List())
		return
	}
	st, ok := s.state.Stats.Get(agentID)
	if !ok {
		writeError(w, http.StatusNotFound, coordinator.ErrAgentNotFound.Error())
		return
	}
	writeJSON(w, http.StatusOK, []coordinator.RoutingStat{st})
}

type updateHealthRequest struct {
	Score float64 `json:"score"`
}

func (s *Server) handleUpdateAgentHealth(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body updateHealthRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	agent, err := s.state.Registry.Get(id)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	if err := s.state.Registry.UpdateHealth(r.Context(), id, body.Score, agent.Status); err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	updated, _ := s.state.Registry.Get(id)
	writeJSON(w, http.StatusOK, map[string]float64{"score": updated.HealthScore})
}

type updateStatusRequest struct {
	Status coordinator.HealthStatus `json:"status" validate:"required"`
}

func (s *Server) handleUpdateAgentStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	agent, err := s.state.Registry.Get(id)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	if err := s.state.Registry.UpdateHealth(r.Context(), id, agent.HealthScore, body.Status); err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetInstructionAnalysis(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestID")
	reqs := s.state.Spawner.InstructionRequests()
	for _, ir := range reqs {
		if ir.RequestID == requestID {
			principal := ir.Principal
			analysis := coordinator.Analyze(requestID, ir.Instructions, func() coordinator.QuotaValidation {
				return s.state.Quota.ValidateCreation(principal)
			})
			writeJSON(w, http.StatusOK, analysis)
			return
		}
	}
	writeError(w, http.StatusNotFound, coordinator.ErrInstructionRequestNotFound.Error())
}

func (s *Server) handleGetAgentSpawningMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{
		"instruction_requests": len(s.state.Spawner.InstructionRequests()),
		"agents_registered":    s.state.Registry.Count(),
		"sessions_active":      s.state.Sessions.Count(),
	})
}

func (s *Server) handleGetCoordinationNetworks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"sessions_active": s.state.Sessions.Count()})
}

type upgradeTierRequest struct {
	Tier string `json:"tier" validate:"required"`
}

func (s *Server) handleUpgradeSubscriptionTier(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	var body upgradeTierRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	uq, err := s.state.Quota.UpgradeTier(principal, body.Tier)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, uq)
}

func (s *Server) handleGetSubscriptionTierInfo(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	writeJSON(w, http.StatusOK, s.state.Quota.Get(principal))
}

func (s *Server) handleGetEconomicsHealth(w http.ResponseWriter, r *http.Request) {
	if s.econHealth == nil {
		writeJSON(w, http.StatusOK, map[string]bool{"healthy": false})
		return
	}
	h, err := s.econHealth(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "economics canister error: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h)
}

type validateTokensRequest struct {
	Tokens int64 `json:"tokens" validate:"required,min=1"`
}

func (s *Server) handleValidateTokenUsageQuota(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	var body validateTokensRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	validation := s.state.Quota.ValidateTokens(principal, body.Tokens)
	if validation.Allowed {
		s.state.Quota.RecordTokens(principal, body.Tokens)
	}
	writeJSON(w, http.StatusOK, validation)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state.Health())
}

// swarmPolicy is an ambient, process-local setting (not part of §3's data
// model) that get/set_swarm_policy store and return. The routing engine
// does not read it, so it does not change fan-out width.
type swarmPolicy struct {
	MaxFanoutK int `json:"max_fanout_k"`
}

func (s *Server) handleSetSwarmPolicy(w http.ResponseWriter, r *http.Request) {
	var p swarmPolicy
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.policyMu.Lock()
	s.policy = p
	s.policyMu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetSwarmPolicy(w http.ResponseWriter, r *http.Request) {
	s.policyMu.Lock()
	p := s.policy
	s.policyMu.Unlock()
	writeJSON(w, http.StatusOK, p)
}
