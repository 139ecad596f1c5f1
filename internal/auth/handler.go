package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"customfields/internal/engine"
	"customfields/internal/metadata"
	"customfields/internal/store"
)

// Handler serves POST /auth/login.
type Handler struct {
	store     *store.Store
	jwtSecret string
	ttl       time.Duration
}

func NewHandler(s *store.Store, jwtSecret string) *Handler {
	return &Handler{store: s, jwtSecret: jwtSecret, ttl: AccessTokenTTL}
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

func (h *Handler) Login(c *fiber.Ctx) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&body); err != nil {
		return engine.NewAppError("INVALID_PAYLOAD", 400, "Invalid request body")
	}
	if body.Email == "" || body.Password == "" {
		return engine.UnauthorizedError("Email and password are required")
	}

	user, hash, active, err := lookupUser(c.UserContext(), h.store, body.Email)
	if err != nil || !CheckPassword(body.Password, hash) {
		return engine.UnauthorizedError("Invalid email or password")
	}
	if !active {
		return engine.UnauthorizedError("Account is disabled")
	}

	token, err := GenerateAccessToken(user, h.jwtSecret, h.ttl)
	if err != nil {
		return engine.NewAppError("INTERNAL_ERROR", 500, "Failed to generate access token")
	}
	return c.JSON(fiber.Map{"data": loginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(h.ttl.Seconds()),
	}})
}

func RegisterRoutes(app *fiber.App, h *Handler) {
	app.Post("/auth/login", h.Login)
}

// FindUser loads a user by email.
func FindUser(ctx context.Context, s *store.Store, email string) (*metadata.UserContext, error) {
	user, _, _, err := lookupUser(ctx, s, email)
	return user, err
}

func lookupUser(ctx context.Context, s *store.Store, email string) (*metadata.UserContext, string, bool, error) {
	pb := s.Dialect.NewParamBuilder()
	row, err := store.QueryRow(ctx, s.DB,
		fmt.Sprintf("SELECT id, email, password_hash, roles, active FROM _users WHERE email = %s", pb.Add(email)),
		pb.Params()...)
	if err != nil {
		return nil, "", false, err
	}
	roles, err := s.Dialect.ScanArray(row["roles"])
	if err != nil {
		return nil, "", false, err
	}
	id, _ := row["id"].(string)
	hash, _ := row["password_hash"].(string)
	return &metadata.UserContext{ID: id, Email: email, Roles: roles}, hash, isActive(row["active"]), nil
}

// isActive reads the active flag as either driver returns it.
func isActive(v any) bool {
	switch a := v.(type) {
	case bool:
		return a
	case int64:
		return a != 0
	case nil:
		return true
	}
	return false
}
