package middleware

import (
	"fmt"
	"log"
	"strings"

	"project-service/internal/models"

	"github.com/gofiber/fiber/v3"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/v2/bson"
)

const principalLocalKey = "principal"

// Claims is the token payload the gateway issues for authenticated users.
type Claims struct {
	jwt.RegisteredClaims
	Id       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Active   bool   `json:"active"`
}

func verifyToken(secretKey []byte, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return secretKey, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	return claims, nil
}

// Authenticate verifies the bearer token and stores the principal in the
// request locals. Inactive principals are rejected here so the services only
// ever see active actors.
func Authenticate(jwtSecret string) fiber.Handler {
	secretKey := []byte(jwtSecret)

	return func(c fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authorization header is required",
			})
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authorization header must be a bearer token",
			})
		}

		claims, err := verifyToken(secretKey, tokenString)
		if err != nil {
			log.Printf("Token verification failed: %v", err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		principalID, err := bson.ObjectIDFromHex(claims.Id)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid principal ID in token",
			})
		}

		role := models.Role(claims.Role)
		if role != models.RoleAdministrator && role != models.RoleClient {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unknown role in token",
			})
		}

		if !claims.Active {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Account is deactivated",
			})
		}

		c.Locals(principalLocalKey, models.Principal{
			ID:       principalID,
			Username: claims.Username,
			Role:     role,
			Active:   claims.Active,
		})

		return c.Next()
	}
}

// Principal returns the authenticated principal stored by Authenticate.
func Principal(c fiber.Ctx) (models.Principal, bool) {
	principal, ok := c.Locals(principalLocalKey).(models.Principal)
	return principal, ok
}

// RequireAdministrator rejects non-administrator principals before the
// handler runs. The services re-check manage rights; this guard just keeps
// admin routes from doing any work for clients.
func RequireAdministrator() fiber.Handler {
	return func(c fiber.Ctx) error {
		principal, ok := Principal(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authentication required",
			})
		}

		if !principal.IsAdministrator() {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Administrator role required",
			})
		}

		return c.Next()
	}
}
