package requestsvc

import (
	"context"
	"fmt"
	"sort"

	"github.com/orbit-station/station/internal/station/authz"
	"github.com/orbit-station/station/internal/station/domain"
)

// SelectionFilter selects a set of Request IDs, composing with other
// filters via AndSelectionFilter/OrSelectionFilter (§4.7). Concrete filters
// consult a single repository index, so composing several stays cheap even
// when the result set is large.
type SelectionFilter interface {
	IDs(ctx context.Context) ([]domain.ID, error)
}

// AndSelectionFilter intersects every inner filter's ID set.
type AndSelectionFilter struct {
	Filters []SelectionFilter
}

func (f AndSelectionFilter) IDs(ctx context.Context) ([]domain.ID, error) {
	if len(f.Filters) == 0 {
		return nil, nil
	}
	counts := make(map[domain.ID]int)
	for _, inner := range f.Filters {
		ids, err := inner.IDs(ctx)
		if err != nil {
			return nil, err
		}
		seen := make(map[domain.ID]bool, len(ids))
		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			counts[id]++
		}
	}
	out := make([]domain.ID, 0, len(counts))
	for id, n := range counts {
		if n == len(f.Filters) {
			out = append(out, id)
		}
	}
	return out, nil
}

// OrSelectionFilter unions every inner filter's ID set.
type OrSelectionFilter struct {
	Filters []SelectionFilter
}

func (f OrSelectionFilter) IDs(ctx context.Context) ([]domain.ID, error) {
	seen := make(map[domain.ID]bool)
	var out []domain.ID
	for _, inner := range f.Filters {
		ids, err := inner.IDs(ctx)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out, nil
}

// lookupRequests is the subset of repo.Requests the list filters need,
// kept narrow so filters can be unit tested against a fake.
type lookupRequests interface {
	ByStatus(ctx context.Context, status domain.RequestStatusKind) ([]domain.Request, error)
	ByRequester(ctx context.Context, requester domain.ID) ([]domain.Request, error)
	ByOperation(ctx context.Context, opType domain.RequestOperationType, targetID domain.ID) ([]domain.Request, error)
	ByApprover(ctx context.Context, approver domain.ID) ([]domain.Request, error)
	List(ctx context.Context) ([]domain.Request, error)
}

func ids(reqs []domain.Request, err error) ([]domain.ID, error) {
	if err != nil {
		return nil, err
	}
	out := make([]domain.ID, len(reqs))
	for i, r := range reqs {
		out[i] = r.ID
	}
	return out, nil
}

// StatusFilter selects every Request in one of statuses.
func StatusFilter(requests lookupRequests, statuses ...domain.RequestStatusKind) SelectionFilter {
	return selectionFunc(func(ctx context.Context) ([]domain.ID, error) {
		var out []domain.ID
		for _, status := range statuses {
			got, err := ids(requests.ByStatus(ctx, status))
			if err != nil {
				return nil, err
			}
			out = append(out, got...)
		}
		return out, nil
	})
}

// RequesterFilter selects every Request created by requester.
func RequesterFilter(requests lookupRequests, requester domain.ID) SelectionFilter {
	return selectionFunc(func(ctx context.Context) ([]domain.ID, error) {
		return ids(requests.ByRequester(ctx, requester))
	})
}

// ApproverFilter selects every Request on which approver is eligible to
// vote (whether or not they already have).
func ApproverFilter(requests lookupRequests, approver domain.ID) SelectionFilter {
	return selectionFunc(func(ctx context.Context) ([]domain.ID, error) {
		return ids(requests.ByApprover(ctx, approver))
	})
}

// OperationTypeFilter selects every Request of the given operation kind.
func OperationTypeFilter(requests lookupRequests, opType domain.RequestOperationType) SelectionFilter {
	return selectionFunc(func(ctx context.Context) ([]domain.ID, error) {
		all, err := requests.List(ctx)
		if err != nil {
			return nil, err
		}
		var out []domain.ID
		for _, r := range all {
			if r.Operation.Type == opType {
				out = append(out, r.ID)
			}
		}
		return out, nil
	})
}

// CreatedRangeFilter selects every Request created within [from, to)
// (either bound zero means unbounded on that side).
func CreatedRangeFilter(requests lookupRequests, from, to int64) SelectionFilter {
	return selectionFunc(func(ctx context.Context) ([]domain.ID, error) {
		all, err := requests.List(ctx)
		if err != nil {
			return nil, err
		}
		var out []domain.ID
		for _, r := range all {
			if from != 0 && r.CreatedAt < from {
				continue
			}
			if to != 0 && r.CreatedAt >= to {
				continue
			}
			out = append(out, r.ID)
		}
		return out, nil
	})
}

type selectionFunc func(ctx context.Context) ([]domain.ID, error)

func (f selectionFunc) IDs(ctx context.Context) ([]domain.ID, error) { return f(ctx) }

// SortingStrategy orders a slice of Requests in place, composing with the
// filter pipeline's output immediately before pagination (§4.7).
type SortingStrategy func(reqs []domain.Request)

// SortByCreatedAtDesc orders newest-first, the default when no sort is
// requested.
func SortByCreatedAtDesc(reqs []domain.Request) {
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].CreatedAt > reqs[j].CreatedAt })
}

// SortByExpirationAsc orders soonest-to-expire first.
func SortByExpirationAsc(reqs []domain.Request) {
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].ExpirationDt < reqs[j].ExpirationDt })
}

// maxPageSize bounds ListRequestsInput.Limit; ListRequests rejects a larger
// Limit with an error.
const maxPageSize = 100

const defaultPageSize = 20

// ListRequestsInput composes a filter, a sort, and a page window.
type ListRequestsInput struct {
	Filter SelectionFilter
	Sort   SortingStrategy
	Offset int
	Limit  int
}

// ListRequestsResult carries the materialized page plus the pagination
// contract fields (§4.7 "next_offset is set iff offset + limit < total").
type ListRequestsResult struct {
	Requests   []domain.Request
	Total      int
	NextOffset *int
}

// ListRequests runs input's filter, retains only what caller may see,
// sorts, and paginates (§4.7, §6 "list_requests").
func (s *Service) ListRequests(ctx context.Context, caller authz.Caller, input ListRequestsInput) (ListRequestsResult, error) {
	if input.Offset < 0 {
		return ListRequestsResult{}, fmt.Errorf("requestsvc: offset must be non-negative")
	}
	limit := input.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		return ListRequestsResult{}, fmt.Errorf("requestsvc: limit %d exceeds max page size %d", limit, maxPageSize)
	}

	var matched []domain.Request
	if input.Filter == nil {
		all, err := s.requests.List(ctx)
		if err != nil {
			return ListRequestsResult{}, err
		}
		matched = all
	} else {
		matchedIDs, err := input.Filter.IDs(ctx)
		if err != nil {
			return ListRequestsResult{}, err
		}
		matched = make([]domain.Request, 0, len(matchedIDs))
		for _, id := range matchedIDs {
			req, err := s.requests.Get(ctx, id)
			if err != nil {
				continue
			}
			matched = append(matched, req)
		}
	}

	visible := s.retainVisible(ctx, caller, matched)

	sortFn := input.Sort
	if sortFn == nil {
		sortFn = SortByCreatedAtDesc
	}
	sortFn(visible)

	total := len(visible)
	end := input.Offset + limit
	if input.Offset >= total {
		return ListRequestsResult{Requests: nil, Total: total}, nil
	}
	if end > total {
		end = total
	}
	page := visible[input.Offset:end]
	var next *int
	if end < total {
		n := end
		next = &n
	}
	return ListRequestsResult{Requests: page, Total: total, NextOffset: next}, nil
}

// retainVisible keeps only the requests caller may view: anyone with List
// permission on the Request resource sees everything, otherwise only
// requests caller filed or is an eligible approver on survive (§4.7 "an
// authorization pass retains only accessible IDs").
func (s *Service) retainVisible(ctx context.Context, caller authz.Caller, reqs []domain.Request) []domain.Request {
	resource := domain.Resource{Kind: domain.ResourceRequest, Action: domain.ActionList}
	permission, err := s.permissions.Get(ctx, resource)
	if err == nil && authz.IsAllowed(permission, caller) {
		return reqs
	}
	if caller.IsAnonymous {
		return nil
	}
	me := caller.User.ID
	out := make([]domain.Request, 0, len(reqs))
	for _, r := range reqs {
		if r.RequestedBy == me || r.IsEligibleApprover(me) {
			out = append(out, r)
		}
	}
	return out
}
