package services

import (
	"context"
	"fmt"
	"log"

	"project-service/internal/event"
	"project-service/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// RequestService owns the access-request lifecycle: clients submit requests,
// administrators review them. A request leaves pending exactly once.
type RequestService struct {
	projects  ProjectStore
	requests  RequestStore
	policy    *AccessPolicy
	publisher event.Publisher
}

func NewRequestService(projects ProjectStore, requests RequestStore, policy *AccessPolicy, publisher event.Publisher) *RequestService {
	return &RequestService{
		projects:  projects,
		requests:  requests,
		policy:    policy,
		publisher: publisher,
	}
}

// SubmitRequest files a pending access request for the requester against the
// project. Preconditions are checked in order: the project must exist, the
// requester must not already hold access, and no pending request for the pair
// may exist. The duplicate check here gives a friendly error; the storage
// layer's unique pending constraint is what holds under concurrent submits.
func (s *RequestService) SubmitRequest(ctx context.Context, requester models.Principal, projectID bson.ObjectID) (*models.AccessRequest, error) {
	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	if project == nil {
		return nil, fmt.Errorf("project %s: %w", projectID.Hex(), models.ErrNotFound)
	}

	if project.OwnerID == requester.ID || project.HasGrant(requester.ID) {
		return nil, fmt.Errorf("already has access to this project: %w", models.ErrConflict)
	}

	existing, err := s.requests.FindPendingByUserAndProject(ctx, requester.ID, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to check for pending request: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("pending request already exists for this project: %w", models.ErrConflict)
	}

	request := &models.AccessRequest{
		UserID:    requester.ID,
		ProjectID: projectID,
		Status:    models.RequestPending,
	}

	created, err := s.requests.Create(ctx, request)
	if err != nil {
		return nil, err
	}

	if s.publisher != nil {
		if err := s.publisher.PublishRequestSubmitted(ctx, created.ID.Hex(), requester.ID.Hex(), projectID.Hex()); err != nil {
			log.Printf("Failed to publish RequestSubmitted event: %v", err)
		}
	}

	return created, nil
}

// ReviewRequest moves a pending request to approved or denied. On approval the
// requester enters the project's grant set before the status transition
// commits, so a storage failure can never leave an approved request without
// its grant. The grant target is re-validated against a fresh project read
// here, never against state read earlier by the caller.
func (s *RequestService) ReviewRequest(ctx context.Context, reviewer models.Principal, requestID bson.ObjectID, decision models.RequestStatus, notes string) (*models.AccessRequest, error) {
	if !s.policy.CanManage(reviewer) {
		return nil, fmt.Errorf("only administrators may review requests: %w", models.ErrForbidden)
	}

	if decision != models.RequestApproved && decision != models.RequestDenied {
		return nil, fmt.Errorf("decision must be %q or %q: %w", models.RequestApproved, models.RequestDenied, models.ErrValidation)
	}

	request, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load request: %w", err)
	}
	if request == nil {
		return nil, fmt.Errorf("request %s: %w", requestID.Hex(), models.ErrNotFound)
	}

	if request.Status != models.RequestPending {
		return nil, fmt.Errorf("request already %s: %w", request.Status, models.ErrConflict)
	}

	if decision == models.RequestApproved {
		project, err := s.projects.FindByID(ctx, request.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("failed to load project: %w", err)
		}
		if project == nil {
			return nil, fmt.Errorf("project %s: %w", request.ProjectID.Hex(), models.ErrNotFound)
		}

		// The owner never enters the grant set; a request from the owner
		// cannot normally exist, but the guard keeps the set invariant
		// independent of how the request came to be.
		if project.OwnerID != request.UserID {
			if _, err := s.projects.AddGrant(ctx, request.ProjectID, request.UserID); err != nil {
				return nil, fmt.Errorf("failed to grant access: %w", err)
			}
		}
	}

	updated, err := s.requests.Transition(ctx, requestID, decision, reviewer.ID, notes)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		// Lost the race against another reviewer or a direct revoke.
		current, err := s.requests.FindByID(ctx, requestID)
		if err == nil && current != nil {
			return nil, fmt.Errorf("request already %s: %w", current.Status, models.ErrConflict)
		}
		return nil, fmt.Errorf("request is no longer pending: %w", models.ErrConflict)
	}

	if s.publisher != nil {
		if err := s.publisher.PublishRequestReviewed(ctx, updated.ID.Hex(), updated.UserID.Hex(), updated.ProjectID.Hex(), string(updated.Status), reviewer.ID.Hex()); err != nil {
			log.Printf("Failed to publish RequestReviewed event: %v", err)
		}
	}

	return updated, nil
}

// ListPendingRequests returns all pending requests, newest first.
func (s *RequestService) ListPendingRequests(ctx context.Context, principal models.Principal) ([]*models.AccessRequest, error) {
	if !s.policy.CanManage(principal) {
		return nil, fmt.Errorf("only administrators may list pending requests: %w", models.ErrForbidden)
	}
	return s.requests.FindPending(ctx)
}

// ListUserRequests returns the principal's own requests, newest first.
func (s *RequestService) ListUserRequests(ctx context.Context, principal models.Principal) ([]*models.AccessRequest, error) {
	return s.requests.FindByUser(ctx, principal.ID)
}
