package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/movie-booking/internal/config"
	"github.com/iliyamo/movie-booking/internal/model"
	"github.com/iliyamo/movie-booking/internal/repository"
	"github.com/iliyamo/movie-booking/internal/utils"
)

const minPasswordLen = 6

// AuthHandler issues and revokes access/refresh token pairs.
type AuthHandler struct {
	cfg    config.Config
	users  *repository.UserRepo
	tokens *repository.TokenRepo
	log    *zap.Logger
	now    func() time.Time
}

func NewAuthHandler(cfg config.Config, users *repository.UserRepo, tokens *repository.TokenRepo, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		cfg:    cfg,
		users:  users,
		tokens: tokens,
		log:    orNop(log).Named("auth"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type registerReq struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type userPart struct {
	ID    uint64 `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type authResp struct {
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

// Register creates a customer account and signs it in.  Admin accounts are
// provisioned in the database.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = repository.NormalizeEmail(req.Email)
	if req.Name == "" || req.Email == "" || !strings.Contains(req.Email, "@") {
		return badRequest(c, "name and a valid email are required")
	}
	if len(req.Password) < minPasswordLen {
		return badRequest(c, "password must be at least 6 characters")
	}

	ctx, cancel := dbContext(c)
	defer cancel()
	uid, err := h.users.Create(ctx, req.Name, req.Email, req.Password, model.RoleCustomer, h.cfg.BcryptCost)
	if errors.Is(err, repository.ErrEmailExists) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
	}
	if err != nil {
		return serverError(c, h.log, "create user failed", err)
	}
	h.log.Info("user registered", zap.Uint64("user_id", uid))
	return h.issue(c, http.StatusCreated, userPart{ID: uid, Name: req.Name, Email: req.Email, Role: model.RoleCustomer})
}

// Login verifies credentials and returns a new token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return badRequest(c, "email/password required")
	}

	ctx, cancel := dbContext(c)
	defer cancel()
	u, err := h.users.GetByEmail(ctx, req.Email)
	if errors.Is(err, repository.ErrUserNotFound) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if err != nil {
		return serverError(c, h.log, "query failed", err)
	}
	if !u.IsActive || !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	return h.issue(c, http.StatusOK, userPart{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role})
}

// Refresh rotates a refresh token: the presented one is revoked and a new
// pair is issued.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return badRequest(c, "refresh_token required")
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := dbContext(c)
	defer cancel()
	userID, err := h.tokens.ValidateRefresh(ctx, hash, h.now())
	if errors.Is(err, repository.ErrInvalidRefresh) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
	}
	if err != nil {
		return serverError(c, h.log, "query failed", err)
	}
	if err := h.tokens.RevokeByHash(ctx, hash); err != nil {
		return serverError(c, h.log, "revoke refresh failed", err)
	}
	u, err := h.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
	}
	if err != nil {
		return serverError(c, h.log, "load user failed", err)
	}
	return h.issue(c, http.StatusOK, userPart{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role})
}

// Logout revokes the given refresh token, or every token of the caller when
// the body has none.  Runs behind JWTAuth.
func (h *AuthHandler) Logout(c echo.Context) error {
	uid, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	var req refreshReq
	_ = c.Bind(&req)

	ctx, cancel := dbContext(c)
	defer cancel()
	var err error
	if raw := strings.TrimSpace(req.RefreshToken); raw != "" {
		err = h.tokens.RevokeByHash(ctx, utils.HashRefreshRaw(raw))
	} else {
		err = h.tokens.RevokeAllForUser(ctx, uid)
	}
	if err != nil {
		return serverError(c, h.log, "logout failed", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the caller's profile.
func (h *AuthHandler) Me(c echo.Context) error {
	uid, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	ctx, cancel := dbContext(c)
	defer cancel()
	u, err := h.users.GetByID(ctx, uid)
	if errors.Is(err, repository.ErrUserNotFound) {
		return notFound(c, "user not found")
	}
	if err != nil {
		return serverError(c, h.log, "load user failed", err)
	}
	return c.JSON(http.StatusOK, u)
}

// CountUsers is the admin dashboard counter.
func (h *AuthHandler) CountUsers(c echo.Context) error {
	ctx, cancel := dbContext(c)
	defer cancel()
	n, err := h.users.Count(ctx)
	if err != nil {
		return serverError(c, h.log, "count users failed", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"count": n})
}

func (h *AuthHandler) issue(c echo.Context, status int, u userPart) error {
	access, err := utils.NewAccessToken(h.cfg.JWTSecret, u.ID, u.Role, h.cfg.AccessTTLMin)
	if err != nil {
		return serverError(c, h.log, "issue access failed", err)
	}
	refresh, err := utils.NewRefreshToken(h.cfg.RefreshTTLDays)
	if err != nil {
		return serverError(c, h.log, "issue refresh failed", err)
	}
	ctx, cancel := dbContext(c)
	defer cancel()
	if err := h.tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return serverError(c, h.log, "save refresh failed", err)
	}
	return c.JSON(status, authResp{
		User:    u,
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp},
	})
}
