package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"project-service/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
)

func (e *testEnv) seedClient(t *testing.T) *models.User {
	t.Helper()

	user := &models.User{
		ID:       bson.NewObjectID(),
		Username: "client-" + bson.NewObjectID().Hex()[:6],
		Email:    "client@example.com",
		Role:     models.RoleClient,
		Active:   true,
	}
	e.users.add(user)
	return user
}

func validProjectInput() CreateProjectInput {
	return CreateProjectInput{
		Name:        "Riverside Towers",
		Location:    "Pune",
		PhoneNumber: "5550100",
		Email:       "riverside@example.com",
		StartDate:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2027, 6, 30, 0, 0, 0, 0, time.UTC),
	}
}

func TestCreateProject(t *testing.T) {
	ctx := context.Background()

	t.Run("administrator becomes owner", func(t *testing.T) {
		env := newTestEnv()
		admin := adminPrincipal()

		project, err := env.projectService.CreateProject(ctx, admin, validProjectInput())
		if err != nil {
			t.Fatalf("CreateProject() error = %v", err)
		}
		if project.OwnerID != admin.ID {
			t.Error("expected the acting administrator to be the owner")
		}
		if len(project.GrantedUsers) != 0 {
			t.Error("expected a fresh project to have an empty grant set")
		}
	})

	t.Run("forbidden for clients", func(t *testing.T) {
		env := newTestEnv()

		_, err := env.projectService.CreateProject(ctx, clientPrincipal(), validProjectInput())
		if !errors.Is(err, models.ErrForbidden) {
			t.Errorf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("missing required fields", func(t *testing.T) {
		env := newTestEnv()
		admin := adminPrincipal()

		input := validProjectInput()
		input.Email = ""

		_, err := env.projectService.CreateProject(ctx, admin, input)
		if !errors.Is(err, models.ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("duplicate name is case-insensitive", func(t *testing.T) {
		env := newTestEnv()
		admin := adminPrincipal()

		if _, err := env.projectService.CreateProject(ctx, admin, validProjectInput()); err != nil {
			t.Fatalf("CreateProject() error = %v", err)
		}

		input := validProjectInput()
		input.Name = "RIVERSIDE TOWERS"

		_, err := env.projectService.CreateProject(ctx, admin, input)
		if !errors.Is(err, models.ErrConflict) {
			t.Errorf("expected ErrConflict, got %v", err)
		}
	})
}

func TestListProjects(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	admin := adminPrincipal()
	granted := clientPrincipal()
	stranger := clientPrincipal()

	env.seedProject(t, admin.ID, granted.ID)
	if _, err := env.projects.Create(ctx, &models.Project{
		Name:        "hillside",
		Location:    "Pune",
		PhoneNumber: "5550101",
		Email:       "hillside@example.com",
		OwnerID:     admin.ID,
	}); err != nil {
		t.Fatalf("seeding project: %v", err)
	}

	t.Run("administrator sees everything", func(t *testing.T) {
		projects, err := env.projectService.ListProjects(ctx, admin)
		if err != nil {
			t.Fatalf("ListProjects() error = %v", err)
		}
		if len(projects) != 2 {
			t.Errorf("expected 2 projects, got %d", len(projects))
		}
	})

	t.Run("client sees only granted", func(t *testing.T) {
		projects, err := env.projectService.ListProjects(ctx, granted)
		if err != nil {
			t.Fatalf("ListProjects() error = %v", err)
		}
		if len(projects) != 1 {
			t.Errorf("expected 1 project, got %d", len(projects))
		}
	})

	t.Run("stranger sees nothing", func(t *testing.T) {
		projects, err := env.projectService.ListProjects(ctx, stranger)
		if err != nil {
			t.Fatalf("ListProjects() error = %v", err)
		}
		if len(projects) != 0 {
			t.Errorf("expected no projects, got %d", len(projects))
		}
	})
}

func TestGetProject(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	admin := adminPrincipal()
	granted := clientPrincipal()
	stranger := clientPrincipal()
	project := env.seedProject(t, admin.ID, granted.ID)

	t.Run("granted user may view", func(t *testing.T) {
		got, err := env.projectService.GetProject(ctx, granted, project.ID)
		if err != nil {
			t.Fatalf("GetProject() error = %v", err)
		}
		if got.ID != project.ID {
			t.Error("expected the requested project")
		}
	})

	t.Run("stranger is forbidden", func(t *testing.T) {
		_, err := env.projectService.GetProject(ctx, stranger, project.ID)
		if !errors.Is(err, models.ErrForbidden) {
			t.Errorf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("unknown project", func(t *testing.T) {
		_, err := env.projectService.GetProject(ctx, admin, bson.NewObjectID())
		if !errors.Is(err, models.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestAssign(t *testing.T) {
	ctx := context.Background()

	t.Run("grants access and records an approved request", func(t *testing.T) {
		env := newTestEnv()
		admin := adminPrincipal()
		user := env.seedClient(t)
		project := env.seedProject(t, admin.ID)

		if err := env.projectService.Assign(ctx, admin, project.ID, user.ID); err != nil {
			t.Fatalf("Assign() error = %v", err)
		}

		updated, _ := env.projects.FindByID(ctx, project.ID)
		if !updated.HasGrant(user.ID) {
			t.Error("expected the user to be granted")
		}

		requests, _ := env.requests.FindByUser(ctx, user.ID)
		if len(requests) != 1 {
			t.Fatalf("expected 1 audit record, got %d", len(requests))
		}
		if requests[0].Status != models.RequestApproved {
			t.Errorf("expected status %q, got %q", models.RequestApproved, requests[0].Status)
		}
		if requests[0].Notes != directAssignNote {
			t.Errorf("expected notes %q, got %q", directAssignNote, requests[0].Notes)
		}
		if requests[0].ReviewerID != admin.ID {
			t.Error("expected the acting administrator as reviewer")
		}
	})

	t.Run("resolves an existing pending request", func(t *testing.T) {
		env := newTestEnv()
		admin := adminPrincipal()
		user := env.seedClient(t)
		project := env.seedProject(t, admin.ID)

		principal := models.Principal{ID: user.ID, Username: user.Username, Role: user.Role, Active: user.Active}
		request, err := env.requestService.SubmitRequest(ctx, principal, project.ID)
		if err != nil {
			t.Fatalf("SubmitRequest() error = %v", err)
		}

		if err := env.projectService.Assign(ctx, admin, project.ID, user.ID); err != nil {
			t.Fatalf("Assign() error = %v", err)
		}

		resolved, _ := env.requests.FindByID(ctx, request.ID)
		if resolved.Status != models.RequestApproved {
			t.Errorf("expected pending request to become %q, got %q", models.RequestApproved, resolved.Status)
		}

		// The resolved request is terminal; a later review must fail and
		// change nothing.
		_, err = env.requestService.ReviewRequest(ctx, admin, request.ID, models.RequestDenied, "")
		if !errors.Is(err, models.ErrConflict) {
			t.Errorf("expected ErrConflict on reviewing a resolved request, got %v", err)
		}

		requests, _ := env.requests.FindByUser(ctx, user.ID)
		if len(requests) != 1 {
			t.Errorf("expected no synthetic record alongside the resolved one, got %d records", len(requests))
		}
	})

	t.Run("forbidden for clients", func(t *testing.T) {
		env := newTestEnv()
		admin := adminPrincipal()
		user := env.seedClient(t)
		project := env.seedProject(t, admin.ID)

		err := env.projectService.Assign(ctx, clientPrincipal(), project.ID, user.ID)
		if !errors.Is(err, models.ErrForbidden) {
			t.Errorf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		env := newTestEnv()
		admin := adminPrincipal()
		project := env.seedProject(t, admin.ID)

		err := env.projectService.Assign(ctx, admin, project.ID, bson.NewObjectID())
		if !errors.Is(err, models.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("inactive user", func(t *testing.T) {
		env := newTestEnv()
		admin := adminPrincipal()
		user := env.seedClient(t)
		user.Active = false
		env.users.add(user)
		project := env.seedProject(t, admin.ID)

		err := env.projectService.Assign(ctx, admin, project.ID, user.ID)
		if !errors.Is(err, models.ErrConflict) {
			t.Errorf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("administrators cannot be assigned", func(t *testing.T) {
		env := newTestEnv()
		admin := adminPrincipal()
		other := &models.User{
			ID:       bson.NewObjectID(),
			Username: "second-admin",
			Role:     models.RoleAdministrator,
			Active:   true,
		}
		env.users.add(other)
		project := env.seedProject(t, admin.ID)

		err := env.projectService.Assign(ctx, admin, project.ID, other.ID)
		if !errors.Is(err, models.ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("owner already has access", func(t *testing.T) {
		env := newTestEnv()
		admin := adminPrincipal()
		owner := &models.User{ID: admin.ID, Username: admin.Username, Role: models.RoleClient, Active: true}
		env.users.add(owner)
		project := env.seedProject(t, admin.ID)

		err := env.projectService.Assign(ctx, admin, project.ID, admin.ID)
		if !errors.Is(err, models.ErrConflict) {
			t.Errorf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("repeat assign conflicts without duplicating the grant", func(t *testing.T) {
		env := newTestEnv()
		admin := adminPrincipal()
		user := env.seedClient(t)
		project := env.seedProject(t, admin.ID)

		if err := env.projectService.Assign(ctx, admin, project.ID, user.ID); err != nil {
			t.Fatalf("Assign() error = %v", err)
		}

		err := env.projectService.Assign(ctx, admin, project.ID, user.ID)
		if !errors.Is(err, models.ErrConflict) {
			t.Errorf("expected ErrConflict, got %v", err)
		}

		updated, _ := env.projects.FindByID(ctx, project.ID)
		count := 0
		for _, id := range updated.GrantedUsers {
			if id == user.ID {
				count++
			}
		}
		if count != 1 {
			t.Errorf("expected exactly 1 grant entry, got %d", count)
		}
	})
}

func TestUnassign(t *testing.T) {
	ctx := context.Background()

	t.Run("removes grant and denies pending request", func(t *testing.T) {
		env := newTestEnv()
		admin := adminPrincipal()
		user := env.seedClient(t)
		project := env.seedProject(t, admin.ID, user.ID)

		// A pending request can coexist with a grant only if it was submitted
		// through a different path; seed one directly to exercise the cleanup.
		pending, err := env.requests.Create(ctx, &models.AccessRequest{
			UserID:      user.ID,
			ProjectID:   project.ID,
			Status:      models.RequestPending,
			RequestedAt: time.Now(),
		})
		if err != nil {
			t.Fatalf("seeding request: %v", err)
		}

		if err := env.projectService.Unassign(ctx, admin, project.ID, user.ID); err != nil {
			t.Fatalf("Unassign() error = %v", err)
		}

		updated, _ := env.projects.FindByID(ctx, project.ID)
		if updated.HasGrant(user.ID) {
			t.Error("expected the grant to be removed")
		}

		denied, _ := env.requests.FindByID(ctx, pending.ID)
		if denied.Status != models.RequestDenied {
			t.Errorf("expected pending request to become %q, got %q", models.RequestDenied, denied.Status)
		}
		if denied.Notes != revokeNote {
			t.Errorf("expected notes %q, got %q", revokeNote, denied.Notes)
		}

		remaining, _ := env.requests.FindPendingByUserAndProject(ctx, user.ID, project.ID)
		if remaining != nil {
			t.Error("expected no pending request to survive a revoke")
		}
	})

	t.Run("not granted", func(t *testing.T) {
		env := newTestEnv()
		admin := adminPrincipal()
		user := env.seedClient(t)
		project := env.seedProject(t, admin.ID)

		err := env.projectService.Unassign(ctx, admin, project.ID, user.ID)
		if !errors.Is(err, models.ErrConflict) {
			t.Errorf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("unknown project", func(t *testing.T) {
		env := newTestEnv()
		admin := adminPrincipal()
		user := env.seedClient(t)

		err := env.projectService.Unassign(ctx, admin, bson.NewObjectID(), user.ID)
		if !errors.Is(err, models.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("forbidden for clients", func(t *testing.T) {
		env := newTestEnv()
		admin := adminPrincipal()
		user := env.seedClient(t)
		project := env.seedProject(t, admin.ID, user.ID)

		err := env.projectService.Unassign(ctx, clientPrincipal(), project.ID, user.ID)
		if !errors.Is(err, models.ErrForbidden) {
			t.Errorf("expected ErrForbidden, got %v", err)
		}
	})
}

func TestGetRoster(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	admin := adminPrincipal()
	granted := env.seedClient(t)
	env.seedClient(t)
	project := env.seedProject(t, admin.ID, granted.ID)

	t.Run("resolves grants and lists clients", func(t *testing.T) {
		roster, err := env.projectService.GetRoster(ctx, admin, project.ID)
		if err != nil {
			t.Fatalf("GetRoster() error = %v", err)
		}
		if len(roster.Granted) != 1 || roster.Granted[0].ID != granted.ID {
			t.Error("expected the granted user to be resolved")
		}
		if len(roster.Clients) != 2 {
			t.Errorf("expected 2 clients, got %d", len(roster.Clients))
		}
	})

	t.Run("forbidden for clients", func(t *testing.T) {
		_, err := env.projectService.GetRoster(ctx, clientPrincipal(), project.ID)
		if !errors.Is(err, models.ErrForbidden) {
			t.Errorf("expected ErrForbidden, got %v", err)
		}
	})
}
