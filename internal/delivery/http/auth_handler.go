package http

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"alphaflex/internal/domain"
	"alphaflex/internal/middleware"
)

// AuthHandler handles registration and login
type AuthHandler struct {
	users     domain.UserRepository
	jwtSecret string
	jwtTTL    time.Duration
}

// NewAuthHandler creates an AuthHandler
func NewAuthHandler(users domain.UserRepository, jwtSecret string, jwtTTL time.Duration) *AuthHandler {
	return &AuthHandler{
		users:     users,
		jwtSecret: jwtSecret,
		jwtTTL:    jwtTTL,
	}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates a new user account
func (h *AuthHandler) Register(c echo.Context) error {
	req := &credentialsRequest{}
	if err := c.Bind(req); err != nil {
		return BadRequestResponse(c, "invalid request body")
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || len(req.Password) < 8 {
		return BadRequestResponse(c, "email and a password of at least 8 characters are required")
	}

	if _, err := h.users.GetByEmail(c.Request().Context(), req.Email); err == nil {
		return ErrorResponse(c, http.StatusConflict, "email already registered")
	} else if !errors.Is(err, domain.ErrNotFound) {
		log.Printf("ERROR: register lookup failed: %v", err)
		return InternalErrorResponse(c, "failed to register")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("ERROR: password hash failed: %v", err)
		return InternalErrorResponse(c, "failed to register")
	}

	now := time.Now()
	user := &domain.User{
		Email:        req.Email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := h.users.Create(c.Request().Context(), user); err != nil {
		log.Printf("ERROR: user create failed: %v", err)
		return InternalErrorResponse(c, "failed to register")
	}

	log.Printf("[OK] User registered: %s", user.Email)
	return SuccessResponse(c, http.StatusCreated, "registered", echo.Map{"email": user.Email})
}

// Login verifies credentials and issues a JWT
func (h *AuthHandler) Login(c echo.Context) error {
	req := &credentialsRequest{}
	if err := c.Bind(req); err != nil {
		return BadRequestResponse(c, "invalid request body")
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	user, err := h.users.GetByEmail(c.Request().Context(), req.Email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return ErrorResponse(c, http.StatusUnauthorized, "invalid credentials")
		}
		log.Printf("ERROR: login lookup failed: %v", err)
		return InternalErrorResponse(c, "failed to log in")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return ErrorResponse(c, http.StatusUnauthorized, "invalid credentials")
	}

	token, err := middleware.GenerateJWT(user.Email, h.jwtSecret, h.jwtTTL)
	if err != nil {
		log.Printf("ERROR: token generation failed: %v", err)
		return InternalErrorResponse(c, "failed to log in")
	}

	c.SetCookie(&http.Cookie{
		Name:     "auth_token",
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(h.jwtTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return SuccessResponse(c, http.StatusOK, "logged in", echo.Map{"token": token})
}

// Logout clears the auth cookie
func (h *AuthHandler) Logout(c echo.Context) error {
	c.SetCookie(&http.Cookie{
		Name:     "auth_token",
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
	})
	return SuccessResponse(c, http.StatusOK, "logged out", nil)
}
