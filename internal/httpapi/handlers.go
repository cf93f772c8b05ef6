package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/mpataki/crudflow/internal/models"
	"github.com/mpataki/crudflow/internal/orchestrator"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

type queryRequest struct {
	Input         string `json:"input"`
	HumanVerified *bool  `json:"human_verified"`
}

func (h *handlers) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) handleQuery(w http.ResponseWriter, r *http.Request) {
	var request queryRequest
	if err := decodeJSONBody(r, &request); err != nil {
		writeInvalidRequest(w, err.Error())
		return
	}
	if strings.TrimSpace(request.Input) == "" {
		writeInvalidRequest(w, "input is required")
		return
	}

	resp, err := h.orch.Ask(r.Context(), orchestrator.Request{
		Input:         request.Input,
		HumanVerified: request.HumanVerified,
	})
	if err != nil {
		writeMappedError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newQueryResponse(resp))
}

func (h *handlers) handleRunList(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxListLimit {
			writeInvalidRequest(w, "limit must be between 1 and "+strconv.Itoa(maxListLimit))
			return
		}
		limit = n
	}

	runs, err := h.orch.ListRuns(r.Context(), limit)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	if runs == nil {
		runs = []*models.Run{}
	}
	writeJSON(w, http.StatusOK, runListResponse{Runs: runs})
}

func (h *handlers) handleRunGet(w http.ResponseWriter, r *http.Request) {
	runID, ok := pathRunID(w, r)
	if !ok {
		return
	}

	run, err := h.orch.GetRun(r.Context(), runID)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	steps, err := h.orch.GetStepsForRun(r.Context(), runID)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	if steps == nil {
		steps = []*models.Step{}
	}
	writeJSON(w, http.StatusOK, runDetailResponse{Run: run, Steps: steps})
}

func (h *handlers) handleRunDelete(w http.ResponseWriter, r *http.Request) {
	runID, ok := pathRunID(w, r)
	if !ok {
		return
	}
	if err := h.orch.DeleteRun(r.Context(), runID); err != nil {
		writeMappedError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) handleRunDecision(approve bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runID, ok := pathRunID(w, r)
		if !ok {
			return
		}

		resp, err := h.orch.Decide(r.Context(), runID, approve)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newQueryResponse(resp))
	}
}

func pathRunID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.PathValue("run_id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeInvalidRequest(w, "run_id must be a positive integer")
		return 0, false
	}
	return id, true
}
