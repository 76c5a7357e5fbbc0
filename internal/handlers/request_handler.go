package handlers

import (
	"context"
	"log"
	"time"

	"project-service/internal/middleware"
	"project-service/internal/models"
	"project-service/internal/services"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.mongodb.org/mongo-driver/v2/bson"
)

var (
	// Counter for request reviews
	requestReviews = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "project_request_reviews_total",
			Help: "Total number of access request reviews",
		},
		[]string{"decision", "status"}, // decision: approved/denied, status: success/failure
	)

	// Histogram for review duration
	reviewDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "project_request_review_duration_seconds",
			Help:    "Time spent processing request reviews",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)
)

type RequestHandler struct {
	requestService *services.RequestService
}

func NewRequestHandler(requestService *services.RequestService) *RequestHandler {
	return &RequestHandler{
		requestService: requestService,
	}
}

func (h *RequestHandler) RegisterRoutes(app *fiber.App) {
	group := app.Group("/protected/requests")

	group.Get("/pending", h.ListPendingRequests, middleware.RequireAdministrator())
	group.Get("/my", h.ListMyRequests)
	group.Patch("/:id", h.ReviewRequest, middleware.RequireAdministrator())
}

func (h *RequestHandler) ListPendingRequests(c fiber.Ctx) error {
	principal, ok := middleware.Principal(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	requests, err := h.requestService.ListPendingRequests(ctx, principal)
	if err != nil {
		log.Printf("Failed to list pending requests: %v", err)
		return respondError(c, err, "Error fetching pending requests")
	}

	return c.JSON(fiber.Map{
		"count": len(requests),
		"data": fiber.Map{
			"requests": requests,
		},
	})
}

func (h *RequestHandler) ListMyRequests(c fiber.Ctx) error {
	principal, ok := middleware.Principal(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	requests, err := h.requestService.ListUserRequests(ctx, principal)
	if err != nil {
		log.Printf("Failed to list user requests: %v", err)
		return respondError(c, err, "Error fetching user requests")
	}

	return c.JSON(fiber.Map{
		"count": len(requests),
		"data": fiber.Map{
			"requests": requests,
		},
	})
}

func (h *RequestHandler) ReviewRequest(c fiber.Ctx) error {
	principal, ok := middleware.Principal(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	requestID, err := bson.ObjectIDFromHex(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request ID format",
		})
	}

	var body struct {
		Status string `json:"status"`
		Notes  string `json:"notes"`
	}
	if err := c.Bind().Body(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	start := time.Now()
	request, err := h.requestService.ReviewRequest(ctx, principal, requestID, models.RequestStatus(body.Status), body.Notes)
	if err != nil {
		requestReviews.WithLabelValues(body.Status, "failure").Inc()
		reviewDuration.WithLabelValues("failure").Observe(time.Since(start).Seconds())
		log.Printf("Failed to review request %s: %v", requestID.Hex(), err)
		return respondError(c, err, "Error updating request")
	}

	requestReviews.WithLabelValues(string(request.Status), "success").Inc()
	reviewDuration.WithLabelValues("success").Observe(time.Since(start).Seconds())

	return c.JSON(fiber.Map{
		"message": "Request " + string(request.Status) + " successfully",
		"data": fiber.Map{
			"request": request,
		},
	})
}
