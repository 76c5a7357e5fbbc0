package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"project-service/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// In-memory stores mirroring the storage contracts, including the atomicity
// guarantees the Mongo repositories provide: grant mutations are applied
// under a single lock, and the pending-uniqueness constraint is enforced at
// insert time, not by the caller's earlier read.

type fakeProjectStore struct {
	mu       sync.Mutex
	projects map[bson.ObjectID]*models.Project
}

func newFakeProjectStore() *fakeProjectStore {
	return &fakeProjectStore{projects: make(map[bson.ObjectID]*models.Project)}
}

func cloneProject(p *models.Project) *models.Project {
	c := *p
	c.GrantedUsers = append([]bson.ObjectID(nil), p.GrantedUsers...)
	return &c
}

func (s *fakeProjectStore) Create(ctx context.Context, project *models.Project) (*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if project.ID.IsZero() {
		project.ID = bson.NewObjectID()
	}
	if project.GrantedUsers == nil {
		project.GrantedUsers = []bson.ObjectID{}
	}
	now := time.Now()
	project.CreatedAt = now
	project.UpdatedAt = now

	s.projects[project.ID] = cloneProject(project)
	return cloneProject(project), nil
}

func (s *fakeProjectStore) FindByID(ctx context.Context, id bson.ObjectID) (*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	project, ok := s.projects[id]
	if !ok {
		return nil, nil
	}
	return cloneProject(project), nil
}

func (s *fakeProjectStore) FindByNameAndOwner(ctx context.Context, name string, ownerID bson.ObjectID) (*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, project := range s.projects {
		if project.OwnerID == ownerID && strings.EqualFold(project.Name, name) {
			return cloneProject(project), nil
		}
	}
	return nil, nil
}

func (s *fakeProjectStore) FindAll(ctx context.Context) ([]*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var projects []*models.Project
	for _, project := range s.projects {
		projects = append(projects, cloneProject(project))
	}
	return projects, nil
}

func (s *fakeProjectStore) FindAccessible(ctx context.Context, userID bson.ObjectID) ([]*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var projects []*models.Project
	for _, project := range s.projects {
		if project.OwnerID == userID || cloneProject(project).HasGrant(userID) {
			projects = append(projects, cloneProject(project))
		}
	}
	return projects, nil
}

func (s *fakeProjectStore) AddGrant(ctx context.Context, projectID, userID bson.ObjectID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	project, ok := s.projects[projectID]
	if !ok || project.OwnerID == userID {
		return false, fmt.Errorf("project %s not eligible for grant: %w", projectID.Hex(), models.ErrConflict)
	}

	for _, id := range project.GrantedUsers {
		if id == userID {
			return false, nil
		}
	}

	project.GrantedUsers = append(project.GrantedUsers, userID)
	project.UpdatedAt = time.Now()
	return true, nil
}

func (s *fakeProjectStore) RemoveGrant(ctx context.Context, projectID, userID bson.ObjectID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	project, ok := s.projects[projectID]
	if !ok {
		return false, nil
	}

	for i, id := range project.GrantedUsers {
		if id == userID {
			project.GrantedUsers = append(project.GrantedUsers[:i], project.GrantedUsers[i+1:]...)
			project.UpdatedAt = time.Now()
			return true, nil
		}
	}
	return false, nil
}

type fakeRequestStore struct {
	mu       sync.Mutex
	requests map[bson.ObjectID]*models.AccessRequest
}

func newFakeRequestStore() *fakeRequestStore {
	return &fakeRequestStore{requests: make(map[bson.ObjectID]*models.AccessRequest)}
}

func cloneRequest(r *models.AccessRequest) *models.AccessRequest {
	c := *r
	return &c
}

func (s *fakeRequestStore) Create(ctx context.Context, request *models.AccessRequest) (*models.AccessRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if request.Status == models.RequestPending {
		for _, existing := range s.requests {
			if existing.UserID == request.UserID && existing.ProjectID == request.ProjectID && existing.Status == models.RequestPending {
				return nil, fmt.Errorf("pending request already exists for this project: %w", models.ErrConflict)
			}
		}
	}

	if request.ID.IsZero() {
		request.ID = bson.NewObjectID()
	}
	if request.RequestedAt.IsZero() {
		request.RequestedAt = time.Now()
	}

	s.requests[request.ID] = cloneRequest(request)
	return cloneRequest(request), nil
}

func (s *fakeRequestStore) FindByID(ctx context.Context, id bson.ObjectID) (*models.AccessRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	request, ok := s.requests[id]
	if !ok {
		return nil, nil
	}
	return cloneRequest(request), nil
}

func (s *fakeRequestStore) FindPendingByUserAndProject(ctx context.Context, userID, projectID bson.ObjectID) (*models.AccessRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, request := range s.requests {
		if request.UserID == userID && request.ProjectID == projectID && request.Status == models.RequestPending {
			return cloneRequest(request), nil
		}
	}
	return nil, nil
}

func (s *fakeRequestStore) FindPending(ctx context.Context) ([]*models.AccessRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var requests []*models.AccessRequest
	for _, request := range s.requests {
		if request.Status == models.RequestPending {
			requests = append(requests, cloneRequest(request))
		}
	}
	return requests, nil
}

func (s *fakeRequestStore) FindByUser(ctx context.Context, userID bson.ObjectID) ([]*models.AccessRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var requests []*models.AccessRequest
	for _, request := range s.requests {
		if request.UserID == userID {
			requests = append(requests, cloneRequest(request))
		}
	}
	return requests, nil
}

func (s *fakeRequestStore) Transition(ctx context.Context, id bson.ObjectID, to models.RequestStatus, reviewerID bson.ObjectID, notes string) (*models.AccessRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	request, ok := s.requests[id]
	if !ok || request.Status != models.RequestPending {
		return nil, nil
	}

	request.Status = to
	request.ReviewerID = reviewerID
	request.ReviewedAt = time.Now()
	if notes != "" {
		request.Notes = notes
	}
	return cloneRequest(request), nil
}

func (s *fakeRequestStore) ResolvePendingForPair(ctx context.Context, userID, projectID bson.ObjectID, to models.RequestStatus, reviewerID bson.ObjectID, notes string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var resolved int64
	for _, request := range s.requests {
		if request.UserID == userID && request.ProjectID == projectID && request.Status == models.RequestPending {
			request.Status = to
			request.ReviewerID = reviewerID
			request.ReviewedAt = time.Now()
			request.Notes = notes
			resolved++
		}
	}
	return resolved, nil
}

type fakeUserStore struct {
	mu    sync.Mutex
	users map[bson.ObjectID]*models.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[bson.ObjectID]*models.User)}
}

func (s *fakeUserStore) add(user *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.ID.IsZero() {
		user.ID = bson.NewObjectID()
	}
	s.users[user.ID] = user
}

func (s *fakeUserStore) FindByID(ctx context.Context, id bson.ObjectID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	c := *user
	return &c, nil
}

func (s *fakeUserStore) FindClients(ctx context.Context) ([]*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var users []*models.User
	for _, user := range s.users {
		if user.Role == models.RoleClient {
			c := *user
			users = append(users, &c)
		}
	}
	return users, nil
}
