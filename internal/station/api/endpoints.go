package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/orbit-station/station/internal/platform/logging"
	"github.com/orbit-station/station/internal/station/authz"
	"github.com/orbit-station/station/internal/station/domain"
	"github.com/orbit-station/station/internal/station/repo"
	"github.com/orbit-station/station/internal/station/requestsvc"
	"github.com/orbit-station/station/internal/station/stationerr"
)

// Endpoints wires requestsvc.Service into HTTP handlers for every route in
// §6's inbound API. requests is the same repository instance wired into
// Service's Config, kept here too since ListRequests's filter constructors
// consult it directly rather than through the service.
type Endpoints struct {
	svc      *requestsvc.Service
	requests *repo.Requests
	resolver *callerResolver
	log      *logging.Logger
}

func (e *Endpoints) createRequest(r *http.Request, caller authz.Caller, req *createRequestRequest) (requestEnvelope, error) {
	expiresIn := 7 * 24 * time.Hour
	if req.ExpiresIn != "" {
		d, err := time.ParseDuration(req.ExpiresIn)
		if err != nil {
			return requestEnvelope{}, stationerr.Validation("expires_in must be a duration string (e.g. \"168h\")")
		}
		expiresIn = d
	}
	plan, err := parseExecutionPlan(req.ExecutionPlan)
	if err != nil {
		return requestEnvelope{}, err
	}
	created, err := e.svc.CreateRequest(r.Context(), caller, requestsvc.CreateRequestInput{
		OperationType:  req.OperationType,
		Title:          req.Title,
		Summary:        req.Summary,
		ExpiresIn:      expiresIn,
		ExecutionPlan:  plan,
		OperationInput: req.OperationInput,
	})
	if err != nil {
		return requestEnvelope{}, err
	}
	return requestEnvelope{Request: toWireRequest(created)}, nil
}

// parseExecutionPlan decodes the wire execution_plan envelope into a
// domain.ExecutionPlan, nil meaning "unset" (Immediate, decided server-side).
func parseExecutionPlan(in *wireExecutionPlanInput) (*domain.ExecutionPlan, error) {
	if in == nil || in.Kind == "" {
		return nil, nil
	}
	switch in.Kind {
	case domain.ExecutionImmediate:
		return &domain.ExecutionPlan{Kind: domain.ExecutionImmediate}, nil
	case domain.ExecutionScheduled:
		if in.At == "" {
			return nil, stationerr.Validation("execution_plan.at is required when kind is \"scheduled\"")
		}
		at, err := time.Parse(time.RFC3339, in.At)
		if err != nil {
			return nil, stationerr.Validation("execution_plan.at must be an RFC3339 timestamp")
		}
		return &domain.ExecutionPlan{Kind: domain.ExecutionScheduled, At: at.UnixNano()}, nil
	default:
		return nil, stationerr.Validation("execution_plan.kind must be \"immediate\" or \"scheduled\"")
	}
}

func (e *Endpoints) getRequest(r *http.Request, caller authz.Caller) (requestEnvelope, error) {
	rawID := r.URL.Query().Get("id")
	id, err := domain.ParseID(rawID)
	if err != nil {
		return requestEnvelope{}, stationerr.Validation("id must be a valid UUID")
	}
	req, privileges, err := e.svc.GetRequest(r.Context(), caller, id)
	if err != nil {
		return requestEnvelope{}, err
	}
	return requestEnvelope{Request: toWireRequest(req), Privileges: &privileges}, nil
}

// getNextApprovableRequest returns an envelope with a zero-value Request
// when none is pending, mirroring §6's Option<GetRequestResponse> — an
// absent next request is not itself an error.
func (e *Endpoints) getNextApprovableRequest(r *http.Request, caller authz.Caller) (requestEnvelope, error) {
	req, err := e.svc.GetNextApprovableRequest(r.Context(), caller)
	if err != nil {
		if se, ok := stationerr.As(err); ok && se.Kind == stationerr.KindNotFound {
			return requestEnvelope{}, nil
		}
		return requestEnvelope{}, err
	}
	return requestEnvelope{Request: toWireRequest(req)}, nil
}

func (e *Endpoints) submitRequestApproval(r *http.Request, caller authz.Caller, req *submitRequestApprovalRequest) (requestEnvelope, error) {
	id, err := domain.ParseID(req.RequestID)
	if err != nil {
		return requestEnvelope{}, stationerr.Validation("request_id must be a valid UUID")
	}
	updated, err := e.svc.SubmitRequestApproval(r.Context(), caller, requestsvc.SubmitRequestApprovalInput{
		RequestID: id,
		Decision:  req.Decision,
		Reason:    req.Reason,
	})
	if err != nil {
		return requestEnvelope{}, err
	}
	return requestEnvelope{Request: toWireRequest(updated)}, nil
}

func (e *Endpoints) listRequests(r *http.Request, caller authz.Caller) (listRequestsResponse, error) {
	q := r.URL.Query()

	var filters []requestsvc.SelectionFilter
	for _, status := range q["status"] {
		filters = append(filters, requestsvc.StatusFilter(e.requests, domain.RequestStatusKind(status)))
	}
	if requester := q.Get("requester"); requester != "" {
		id, err := domain.ParseID(requester)
		if err != nil {
			return listRequestsResponse{}, stationerr.Validation("requester must be a valid UUID")
		}
		filters = append(filters, requestsvc.RequesterFilter(e.requests, id))
	}
	if approver := q.Get("approver"); approver != "" {
		id, err := domain.ParseID(approver)
		if err != nil {
			return listRequestsResponse{}, stationerr.Validation("approver must be a valid UUID")
		}
		filters = append(filters, requestsvc.ApproverFilter(e.requests, id))
	}
	if opType := q.Get("operation_type"); opType != "" {
		filters = append(filters, requestsvc.OperationTypeFilter(e.requests, domain.RequestOperationType(opType)))
	}

	var filter requestsvc.SelectionFilter
	if len(filters) > 0 {
		filter = requestsvc.AndSelectionFilter{Filters: filters}
	}

	sortFn := requestsvc.SortByCreatedAtDesc
	if q.Get("sort") == "expiration_asc" {
		sortFn = requestsvc.SortByExpirationAsc
	}

	offset, _ := strconv.Atoi(q.Get("offset"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	result, err := e.svc.ListRequests(r.Context(), caller, requestsvc.ListRequestsInput{
		Filter: filter,
		Sort:   sortFn,
		Offset: offset,
		Limit:  limit,
	})
	if err != nil {
		return listRequestsResponse{}, err
	}
	wireRequests := make([]wireRequest, len(result.Requests))
	for i, req := range result.Requests {
		wireRequests[i] = toWireRequest(req)
	}
	return listRequestsResponse{Requests: wireRequests, Total: result.Total, NextOffset: result.NextOffset}, nil
}

// notifyFailedUpgrade records a failed station-upgrade notification from the
// upgrader collaborator. The upgrader's own retry/escalation mechanics are
// out of scope (§1 Non-goals "upgrader canister mechanics"); the station's
// obligation here ends at recording the failure for the audit trail.
func (e *Endpoints) notifyFailedUpgrade(w http.ResponseWriter, r *http.Request) {
	var req notifyFailedUpgradeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	now := time.Now().UTC()
	if e.log != nil {
		e.log.LogAudit(r.Context(), "notify_failed_station_upgrade", "system", "", req.Reason)
	}
	writeJSON(w, http.StatusOK, notifyFailedUpgradeResponse{Acknowledged: true, ReceivedAt: now.Format(time.RFC3339)})
}
