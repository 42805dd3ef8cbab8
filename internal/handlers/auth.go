package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chat-app/internal/auth"
	"chat-app/internal/middleware"
	"chat-app/internal/repositories"
	"chat-app/internal/telemetry"
	"chat-app/internal/uploads"
)

// TokenIssuer signs session tokens for authenticated users.
type TokenIssuer interface {
	Issue(userID int) (string, error)
}

// AuthHandler manages signup, login and profile endpoints.
type AuthHandler struct {
	users    repositories.UserRepository
	tokens   TokenIssuer
	uploader uploads.Uploader
	audit    *telemetry.AuditEmitter
	logger   *zap.SugaredLogger
}

// NewAuthHandler builds an AuthHandler.
func NewAuthHandler(users repositories.UserRepository, tokens TokenIssuer, uploader uploads.Uploader, audit *telemetry.AuditEmitter, logger *zap.SugaredLogger) *AuthHandler {
	return &AuthHandler{
		users:    users,
		tokens:   tokens,
		uploader: uploader,
		audit:    audit,
		logger:   logger,
	}
}

// Signup registers a new account and returns a session token.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req struct {
		FullName string `json:"fullName" binding:"required"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=6"`
		Bio      string `json:"bio" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "all fields are required")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		fail(c, http.StatusInternalServerError, "could not create account")
		return
	}

	user, err := h.users.Create(c.Request.Context(), req.Email, hash, req.FullName, req.Bio)
	if err != nil {
		if errors.Is(err, repositories.ErrEmailTaken) {
			fail(c, http.StatusConflict, "account already exists")
			return
		}
		h.logger.Errorw("signup failed", "error", err)
		fail(c, http.StatusInternalServerError, "could not create account")
		return
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		h.logger.Errorw("token issue failed", "userId", user.ID, "error", err)
		fail(c, http.StatusInternalServerError, "could not create session")
		return
	}

	h.audit.Emit(c.Request.Context(), "INFO", "user signed up", requestIDFromContext(c), &user.ID)
	c.JSON(http.StatusCreated, gin.H{"success": true, "token": token, "userData": user})
}

// Login verifies credentials and returns a session token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.users.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			fail(c, http.StatusUnauthorized, "invalid credentials")
			return
		}
		h.logger.Errorw("login lookup failed", "error", err)
		fail(c, http.StatusInternalServerError, "server error")
		return
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		fail(c, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		h.logger.Errorw("token issue failed", "userId", user.ID, "error", err)
		fail(c, http.StatusInternalServerError, "could not create session")
		return
	}

	h.audit.Emit(c.Request.Context(), "INFO", "user logged in", requestIDFromContext(c), &user.ID)
	c.JSON(http.StatusOK, gin.H{"success": true, "token": token, "userData": user})
}

// Check confirms the session is valid and returns the authenticated user.
func (h *AuthHandler) Check(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		fail(c, http.StatusUnauthorized, "not authenticated")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

// UpdateProfile mutates profile fields, uploading a new avatar when provided.
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		fail(c, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req struct {
		FullName   string `json:"fullName" binding:"required"`
		Bio        string `json:"bio"`
		ProfilePic string `json:"profilePic"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "fullName is required")
		return
	}

	picURL := ""
	if req.ProfilePic != "" {
		url, err := h.uploader.Upload(c.Request.Context(), req.ProfilePic)
		if err != nil {
			h.logger.Warnw("avatar upload failed", "userId", user.ID, "error", err)
			fail(c, http.StatusBadGateway, "could not upload image")
			return
		}
		picURL = url
	}

	updated, err := h.users.UpdateProfile(c.Request.Context(), user.ID, req.FullName, req.Bio, picURL)
	if err != nil {
		h.logger.Errorw("profile update failed", "userId", user.ID, "error", err)
		fail(c, http.StatusInternalServerError, "could not update profile")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "updatedUser": updated})
}
