package handlers

import (
	"context"
	"log"
	"time"

	"project-service/internal/middleware"
	"project-service/internal/services"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.mongodb.org/mongo-driver/v2/bson"
)

var (
	// Counter for direct grant set changes
	grantChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "project_grant_changes_total",
			Help: "Total number of direct grant set changes",
		},
		[]string{"action", "status"}, // action: assign/unassign, status: success/failure
	)

	// Counter for access request submissions
	requestSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "project_request_submissions_total",
			Help: "Total number of access request submissions",
		},
		[]string{"status"}, // status: success/failure
	)
)

type ProjectHandler struct {
	projectService *services.ProjectService
	requestService *services.RequestService
}

func NewProjectHandler(projectService *services.ProjectService, requestService *services.RequestService) *ProjectHandler {
	return &ProjectHandler{
		projectService: projectService,
		requestService: requestService,
	}
}

func (h *ProjectHandler) RegisterRoutes(app *fiber.App) {
	group := app.Group("/protected/projects")

	group.Post("/", h.CreateProject, middleware.RequireAdministrator())
	group.Get("/", h.ListProjects)
	group.Post("/request", h.RequestAccess)
	group.Get("/:id", h.GetProject)
	group.Get("/:id/roster", h.GetRoster, middleware.RequireAdministrator())
	group.Post("/:id/assign", h.AssignUser, middleware.RequireAdministrator())
	group.Delete("/:id/assign/:userId", h.UnassignUser, middleware.RequireAdministrator())
}

func (h *ProjectHandler) CreateProject(c fiber.Ctx) error {
	principal, ok := middleware.Principal(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	var input services.CreateProjectInput
	if err := c.Bind().Body(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	project, err := h.projectService.CreateProject(ctx, principal, input)
	if err != nil {
		log.Printf("Failed to create project: %v", err)
		return respondError(c, err, "Error creating project")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Project created successfully",
		"data": fiber.Map{
			"project": project,
		},
	})
}

func (h *ProjectHandler) ListProjects(c fiber.Ctx) error {
	principal, ok := middleware.Principal(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	projects, err := h.projectService.ListProjects(ctx, principal)
	if err != nil {
		log.Printf("Failed to list projects: %v", err)
		return respondError(c, err, "Error fetching projects")
	}

	return c.JSON(fiber.Map{
		"count": len(projects),
		"data": fiber.Map{
			"projects": projects,
		},
	})
}

func (h *ProjectHandler) GetProject(c fiber.Ctx) error {
	principal, ok := middleware.Principal(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	projectID, err := bson.ObjectIDFromHex(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid project ID format",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	project, err := h.projectService.GetProject(ctx, principal, projectID)
	if err != nil {
		return respondError(c, err, "Error fetching project")
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"project": project,
		},
	})
}

func (h *ProjectHandler) GetRoster(c fiber.Ctx) error {
	principal, ok := middleware.Principal(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	projectID, err := bson.ObjectIDFromHex(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid project ID format",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	roster, err := h.projectService.GetRoster(ctx, principal, projectID)
	if err != nil {
		return respondError(c, err, "Error fetching project roster")
	}

	return c.JSON(fiber.Map{
		"data": roster,
	})
}

func (h *ProjectHandler) RequestAccess(c fiber.Ctx) error {
	principal, ok := middleware.Principal(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	var body struct {
		ProjectID string `json:"projectId"`
	}
	if err := c.Bind().Body(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if body.ProjectID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Project ID is required",
		})
	}

	projectID, err := bson.ObjectIDFromHex(body.ProjectID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid project ID format",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	request, err := h.requestService.SubmitRequest(ctx, principal, projectID)
	if err != nil {
		requestSubmissions.WithLabelValues("failure").Inc()
		log.Printf("Failed to submit access request: %v", err)
		return respondError(c, err, "Error submitting access request")
	}

	requestSubmissions.WithLabelValues("success").Inc()

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Access request submitted successfully",
		"data": fiber.Map{
			"request": request,
		},
	})
}

func (h *ProjectHandler) AssignUser(c fiber.Ctx) error {
	principal, ok := middleware.Principal(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	projectID, err := bson.ObjectIDFromHex(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid project ID format",
		})
	}

	var body struct {
		UserID string `json:"userId"`
	}
	if err := c.Bind().Body(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if body.UserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "User ID is required",
		})
	}

	userID, err := bson.ObjectIDFromHex(body.UserID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid user ID format",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := h.projectService.Assign(ctx, principal, projectID, userID); err != nil {
		grantChanges.WithLabelValues("assign", "failure").Inc()
		log.Printf("Failed to assign user %s to project %s: %v", userID.Hex(), projectID.Hex(), err)
		return respondError(c, err, "Error assigning user to project")
	}

	grantChanges.WithLabelValues("assign", "success").Inc()

	return c.JSON(fiber.Map{
		"message": "User assigned to project successfully",
	})
}

func (h *ProjectHandler) UnassignUser(c fiber.Ctx) error {
	principal, ok := middleware.Principal(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	projectID, err := bson.ObjectIDFromHex(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid project ID format",
		})
	}

	userID, err := bson.ObjectIDFromHex(c.Params("userId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid user ID format",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := h.projectService.Unassign(ctx, principal, projectID, userID); err != nil {
		grantChanges.WithLabelValues("unassign", "failure").Inc()
		log.Printf("Failed to unassign user %s from project %s: %v", userID.Hex(), projectID.Hex(), err)
		return respondError(c, err, "Error removing user from project")
	}

	grantChanges.WithLabelValues("unassign", "success").Inc()

	return c.JSON(fiber.Map{
		"message": "User removed from project successfully",
	})
}
