package event

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	// ProjectCreated is emitted when an administrator registers a project
	ProjectCreated EventType = "project.created"
	// RequestSubmitted is emitted when a client asks for access
	RequestSubmitted EventType = "request.submitted"
	// RequestReviewed is emitted when a pending request reaches a terminal status
	RequestReviewed EventType = "request.reviewed"
	// AccessGranted is emitted when a user enters a project's grant set
	AccessGranted EventType = "access.granted"
	// AccessRevoked is emitted when a user leaves a project's grant set
	AccessRevoked EventType = "access.revoked"
)

// Identity-service routing keys this service consumes.
const (
	UserRegistered  = "user.registered"
	UserUpdated     = "user.updated"
	UserDeactivated = "user.deactivated"
)

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp int64     `json:"timestamp"`
	Version   string    `json:"version"`
}

func newBaseEvent(eventType EventType) BaseEvent {
	return BaseEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().Unix(),
		Version:   "1.0",
	}
}

type ProjectCreatedEvent struct {
	BaseEvent
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
	OwnerID   string `json:"owner_id"`
}

func NewProjectCreatedEvent(projectID, name, ownerID string) *ProjectCreatedEvent {
	return &ProjectCreatedEvent{
		BaseEvent: newBaseEvent(ProjectCreated),
		ProjectID: projectID,
		Name:      name,
		OwnerID:   ownerID,
	}
}

func (e *ProjectCreatedEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

type RequestSubmittedEvent struct {
	BaseEvent
	RequestID string `json:"request_id"`
	UserID    string `json:"user_id"`
	ProjectID string `json:"project_id"`
}

func NewRequestSubmittedEvent(requestID, userID, projectID string) *RequestSubmittedEvent {
	return &RequestSubmittedEvent{
		BaseEvent: newBaseEvent(RequestSubmitted),
		RequestID: requestID,
		UserID:    userID,
		ProjectID: projectID,
	}
}

func (e *RequestSubmittedEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

type RequestReviewedEvent struct {
	BaseEvent
	RequestID  string `json:"request_id"`
	UserID     string `json:"user_id"`
	ProjectID  string `json:"project_id"`
	Status     string `json:"status"`
	ReviewerID string `json:"reviewer_id"`
}

func NewRequestReviewedEvent(requestID, userID, projectID, status, reviewerID string) *RequestReviewedEvent {
	return &RequestReviewedEvent{
		BaseEvent:  newBaseEvent(RequestReviewed),
		RequestID:  requestID,
		UserID:     userID,
		ProjectID:  projectID,
		Status:     status,
		ReviewerID: reviewerID,
	}
}

func (e *RequestReviewedEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

type AccessChangedEvent struct {
	BaseEvent
	ProjectID string `json:"project_id"`
	UserID    string `json:"user_id"`
	ActorID   string `json:"actor_id"`
}

func NewAccessGrantedEvent(projectID, userID, actorID string) *AccessChangedEvent {
	return &AccessChangedEvent{
		BaseEvent: newBaseEvent(AccessGranted),
		ProjectID: projectID,
		UserID:    userID,
		ActorID:   actorID,
	}
}

func NewAccessRevokedEvent(projectID, userID, actorID string) *AccessChangedEvent {
	return &AccessChangedEvent{
		BaseEvent: newBaseEvent(AccessRevoked),
		ProjectID: projectID,
		UserID:    userID,
		ActorID:   actorID,
	}
}

// ToJSON serializes the event to JSON
func (e *AccessChangedEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// UserEvent is the payload shape the identity service publishes on
// user-events; the consumer folds it into the local users read model.
type UserEvent struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Active   bool   `json:"active"`
}
