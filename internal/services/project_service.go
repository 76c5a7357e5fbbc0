package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"project-service/internal/event"
	"project-service/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
)

const (
	directAssignNote = "directly assigned by administrator"
	revokeNote       = "access revoked by administrator"
)

// ProjectService owns the project registry and the grant set: creation,
// listing under the access policy, and administrator-driven assign/unassign
// that bypasses the request workflow while staying consistent with it.
type ProjectService struct {
	projects  ProjectStore
	requests  RequestStore
	users     UserStore
	policy    *AccessPolicy
	publisher event.Publisher
}

func NewProjectService(projects ProjectStore, requests RequestStore, users UserStore, policy *AccessPolicy, publisher event.Publisher) *ProjectService {
	return &ProjectService{
		projects:  projects,
		requests:  requests,
		users:     users,
		policy:    policy,
		publisher: publisher,
	}
}

type CreateProjectInput struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	PhoneNumber string    `json:"phoneNumber"`
	Email       string    `json:"email"`
	StartDate   time.Time `json:"startDate"`
	EndDate     time.Time `json:"endDate"`
}

// CreateProject registers a project with the acting administrator as its
// owner. The owner is set once here and never changes.
func (s *ProjectService) CreateProject(ctx context.Context, admin models.Principal, input CreateProjectInput) (*models.Project, error) {
	if !s.policy.CanManage(admin) {
		return nil, fmt.Errorf("only administrators may create projects: %w", models.ErrForbidden)
	}

	if input.Name == "" || input.Location == "" || input.PhoneNumber == "" || input.Email == "" ||
		input.StartDate.IsZero() || input.EndDate.IsZero() {
		return nil, fmt.Errorf("all required fields must be filled: %w", models.ErrValidation)
	}

	existing, err := s.projects.FindByNameAndOwner(ctx, input.Name, admin.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check for existing project: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("a project with this name already exists: %w", models.ErrConflict)
	}

	project := &models.Project{
		Name:        input.Name,
		Description: input.Description,
		Location:    input.Location,
		PhoneNumber: input.PhoneNumber,
		Email:       input.Email,
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
		OwnerID:     admin.ID,
	}

	created, err := s.projects.Create(ctx, project)
	if err != nil {
		return nil, err
	}

	if s.publisher != nil {
		if err := s.publisher.PublishProjectCreated(ctx, created.ID.Hex(), created.Name, admin.ID.Hex()); err != nil {
			log.Printf("Failed to publish ProjectCreated event: %v", err)
		}
	}

	return created, nil
}

// ListProjects returns every project for administrators, and owned plus
// granted projects for everyone else.
func (s *ProjectService) ListProjects(ctx context.Context, principal models.Principal) ([]*models.Project, error) {
	if principal.IsAdministrator() {
		return s.projects.FindAll(ctx)
	}
	return s.projects.FindAccessible(ctx, principal.ID)
}

// GetProject loads a project and enforces the view policy against its current
// grant set.
func (s *ProjectService) GetProject(ctx context.Context, principal models.Principal, projectID bson.ObjectID) (*models.Project, error) {
	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	if project == nil {
		return nil, fmt.Errorf("project %s: %w", projectID.Hex(), models.ErrNotFound)
	}

	if !s.policy.CanView(principal, project) {
		return nil, fmt.Errorf("access denied to this project: %w", models.ErrForbidden)
	}

	return project, nil
}

type ProjectRoster struct {
	Project *models.Project `json:"project"`
	Granted []*models.User  `json:"granted"`
	Clients []*models.User  `json:"clients"`
}

// GetRoster returns the project's grant set resolved to user records plus all
// client accounts, for the assignment screen.
func (s *ProjectService) GetRoster(ctx context.Context, admin models.Principal, projectID bson.ObjectID) (*ProjectRoster, error) {
	if !s.policy.CanManage(admin) {
		return nil, fmt.Errorf("only administrators may view the roster: %w", models.ErrForbidden)
	}

	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	if project == nil {
		return nil, fmt.Errorf("project %s: %w", projectID.Hex(), models.ErrNotFound)
	}

	granted := make([]*models.User, 0, len(project.GrantedUsers))
	for _, userID := range project.GrantedUsers {
		user, err := s.users.FindByID(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve granted user %s: %w", userID.Hex(), err)
		}
		if user != nil {
			granted = append(granted, user)
		}
	}

	clients, err := s.users.FindClients(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}

	return &ProjectRoster{
		Project: project,
		Granted: granted,
		Clients: clients,
	}, nil
}

// Assign grants a user standing access directly, bypassing the request
// workflow. A pending request for the pair, if any, is resolved to approved so
// the grant set and the request ledger stay consistent; when none exists a
// synthetic approved request is recorded for audit parity with the
// request-driven path. That record is best-effort: its failure is logged and
// never rolls back the grant.
func (s *ProjectService) Assign(ctx context.Context, admin models.Principal, projectID, userID bson.ObjectID) error {
	if !s.policy.CanManage(admin) {
		return fmt.Errorf("only administrators may assign access: %w", models.ErrForbidden)
	}

	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		return fmt.Errorf("failed to load project: %w", err)
	}
	if project == nil {
		return fmt.Errorf("project %s: %w", projectID.Hex(), models.ErrNotFound)
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return fmt.Errorf("user %s: %w", userID.Hex(), models.ErrNotFound)
	}
	if user.Role != models.RoleClient {
		return fmt.Errorf("only clients can be assigned to projects: %w", models.ErrValidation)
	}
	if !user.Active {
		return fmt.Errorf("cannot assign an inactive user: %w", models.ErrConflict)
	}

	if project.OwnerID == userID {
		return fmt.Errorf("the project owner already has access: %w", models.ErrConflict)
	}
	if project.HasGrant(userID) {
		return fmt.Errorf("user already has access to this project: %w", models.ErrConflict)
	}

	modified, err := s.projects.AddGrant(ctx, projectID, userID)
	if err != nil {
		return err
	}
	if !modified {
		// A concurrent assign or approval got there first.
		return fmt.Errorf("user already has access to this project: %w", models.ErrConflict)
	}

	s.recordDirectAssign(ctx, admin, projectID, userID)

	if s.publisher != nil {
		if err := s.publisher.PublishAccessGranted(ctx, projectID.Hex(), userID.Hex(), admin.ID.Hex()); err != nil {
			log.Printf("Failed to publish AccessGranted event: %v", err)
		}
	}

	return nil
}

// recordDirectAssign keeps the request ledger in step with a direct grant:
// a pending request for the pair becomes approved, otherwise a synthetic
// approved record is inserted. Audit only; failures never surface.
func (s *ProjectService) recordDirectAssign(ctx context.Context, admin models.Principal, projectID, userID bson.ObjectID) {
	resolved, err := s.requests.ResolvePendingForPair(ctx, userID, projectID, models.RequestApproved, admin.ID, directAssignNote)
	if err != nil {
		log.Printf("Note: could not resolve pending request after direct assign: %v", err)
		return
	}
	if resolved > 0 {
		return
	}

	now := time.Now()
	record := &models.AccessRequest{
		UserID:      userID,
		ProjectID:   projectID,
		Status:      models.RequestApproved,
		RequestedAt: now,
		ReviewerID:  admin.ID,
		ReviewedAt:  now,
		Notes:       directAssignNote,
	}
	if _, err := s.requests.Create(ctx, record); err != nil {
		log.Printf("Note: could not create request record for direct assign: %v", err)
	}
}

// Unassign removes a user's standing access. Revoking also denies any pending
// request for the pair, so a revoked user cannot hold a live ask either.
func (s *ProjectService) Unassign(ctx context.Context, admin models.Principal, projectID, userID bson.ObjectID) error {
	if !s.policy.CanManage(admin) {
		return fmt.Errorf("only administrators may revoke access: %w", models.ErrForbidden)
	}

	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		return fmt.Errorf("failed to load project: %w", err)
	}
	if project == nil {
		return fmt.Errorf("project %s: %w", projectID.Hex(), models.ErrNotFound)
	}

	if !project.HasGrant(userID) {
		return fmt.Errorf("user does not have access to this project: %w", models.ErrConflict)
	}

	if err := s.revoke(ctx, admin, projectID, userID); err != nil {
		return err
	}

	if s.publisher != nil {
		if err := s.publisher.PublishAccessRevoked(ctx, projectID.Hex(), userID.Hex(), admin.ID.Hex()); err != nil {
			log.Printf("Failed to publish AccessRevoked event: %v", err)
		}
	}

	return nil
}

// revoke is the grant-store removal: pull the user from the set, then deny
// any pending request for the pair. Both writes are individually atomic;
// after the second completes no pending request can coexist with the removal.
func (s *ProjectService) revoke(ctx context.Context, admin models.Principal, projectID, userID bson.ObjectID) error {
	if _, err := s.projects.RemoveGrant(ctx, projectID, userID); err != nil {
		return err
	}

	if _, err := s.requests.ResolvePendingForPair(ctx, userID, projectID, models.RequestDenied, admin.ID, revokeNote); err != nil {
		return fmt.Errorf("failed to deny pending request after revoke: %w", err)
	}

	return nil
}
