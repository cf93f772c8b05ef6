package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/mpataki/crudflow/internal/models"
	"github.com/mpataki/crudflow/internal/orchestrator"
	"github.com/mpataki/crudflow/internal/storage"
	"github.com/mpataki/crudflow/internal/workflow"
)

const maxRequestBodyBytes = 1 << 20

const (
	errorCodeInvalidRequest = "invalid_request"
	errorCodeNotFound       = "not_found"
	errorCodeConflict       = "conflict"
	errorCodeGenerator      = "generator_error"
	errorCodeInternal       = "internal_error"
)

// statusVerificationRequired is what clients see for a pending run.
const statusVerificationRequired = "verification_required"

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiErrorResponse struct {
	Error apiError `json:"error"`
}

type queryResponse struct {
	RunID                int64              `json:"run_id"`
	RunUUID              string             `json:"run_uuid"`
	Status               string             `json:"status"`
	Intent               string             `json:"intent"`
	ValidatedQuery       string             `json:"validated_query"`
	Results              string             `json:"results,omitempty"`
	FinalAnswer          *string            `json:"final_answer,omitempty"`
	VerificationRequired bool               `json:"verification_required"`
	HumanVerified        *bool              `json:"human_verified,omitempty"`
	Audit                []auditEntryOutput `json:"audit"`
}

type auditEntryOutput struct {
	Label  string `json:"label"`
	Detail string `json:"detail"`
}

type runDetailResponse struct {
	Run   *models.Run    `json:"run"`
	Steps []*models.Step `json:"steps"`
}

type runListResponse struct {
	Runs []*models.Run `json:"runs"`
}

func newQueryResponse(resp *orchestrator.Response) queryResponse {
	status := string(resp.Status)
	if resp.Status == orchestrator.StatusPending {
		status = statusVerificationRequired
	}

	// A completed run always carries final_answer, even when it is empty.
	var answer *string
	if resp.Status == orchestrator.StatusCompleted {
		answer = &resp.FinalAnswer
	}

	audit := make([]auditEntryOutput, len(resp.Audit))
	for i, e := range resp.Audit {
		audit[i] = auditEntryOutput{Label: e.Label, Detail: e.Detail}
	}

	return queryResponse{
		RunID:                resp.RunID,
		RunUUID:              resp.RunUUID,
		Status:               status,
		Intent:               resp.Intent,
		ValidatedQuery:       resp.ValidatedQuery,
		Results:              resp.Results,
		FinalAnswer:          answer,
		VerificationRequired: resp.VerificationRequired,
		HumanVerified:        resp.HumanVerified,
		Audit:                audit,
	}
}

func writeMappedError(w http.ResponseWriter, err error) {
	status, code := mapError(err)
	writeError(w, status, code, err.Error())
}

func writeInvalidRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, errorCodeInvalidRequest, message)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiErrorResponse{
		Error: apiError{
			Code:    code,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func decodeJSONBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}

	decoder := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodyBytes))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}

	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain exactly one JSON object")
	}

	return nil
}

func mapError(err error) (int, string) {
	var stepErr *workflow.StepError
	switch {
	case errors.Is(err, storage.ErrRunNotFound):
		return http.StatusNotFound, errorCodeNotFound
	case errors.Is(err, orchestrator.ErrNotPending):
		return http.StatusConflict, errorCodeConflict
	case errors.As(err, &stepErr):
		return http.StatusBadGateway, errorCodeGenerator
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, errorCodeInternal
	default:
		return http.StatusInternalServerError, errorCodeInternal
	}
}
