package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/identity/internal/accounts"
	"github.com/geocoder89/identity/internal/config"
	"github.com/geocoder89/identity/internal/domain/user"
	"github.com/geocoder89/identity/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

// Accounts is the slice of accounts.Service the handlers call.
type Accounts interface {
	Register(ctx context.Context, in accounts.RegisterInput) (accounts.AuthResult, error)
	Login(ctx context.Context, in accounts.LoginInput) (accounts.AuthResult, error)
	UpdateProfile(ctx context.Context, current user.User, in accounts.UpdateInput) (user.User, error)
}

type UsersHandler struct {
	accounts Accounts
	log      *slog.Logger
	timeout  time.Duration
}

func NewUsersHandler(a Accounts, log *slog.Logger) *UsersHandler {
	if log == nil {
		log = slog.Default()
	}
	return &UsersHandler{
		accounts: a,
		log:      log,
		timeout:  5 * time.Second,
	}
}

type SignUpRequest struct {
	UserName string `json:"user_name" binding:"max=64"`
	Email    string `json:"email" binding:"max=254"`
	Password string `json:"password" binding:"max=1024"`
}

type SignInRequest struct {
	Email    string `json:"email" binding:"max=254"`
	Password string `json:"password" binding:"max=1024"`
}

// UpdateProfileRequest fields are optional; absent keys stay unchanged.
type UpdateProfileRequest struct {
	UserName *string `json:"user_name" binding:"omitempty,max=64"`
	Password *string `json:"password" binding:"omitempty,max=1024"`
}

type tokenResponse struct {
	Message   string `json:"message"`
	AuthToken string `json:"auth_token"`
	ExpiresIn int64  `json:"expires_in"`
}

type profileResponse struct {
	Status string       `json:"status"`
	Data   user.Profile `json:"data"`
}

func (h *UsersHandler) SignUp(ctx *gin.Context) {
	var req SignUpRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	res, err := h.accounts.Register(cctx, accounts.RegisterInput{
		UserName: req.UserName,
		Email:    req.Email,
		Password: req.Password,
	})

	if err != nil {
		respondAccountsError(ctx, h.log, err, "UserName/Password/Email can not be empty")
		return
	}

	ctx.JSON(http.StatusCreated, tokenResponse{
		Message:   "User registered successfully",
		AuthToken: res.Token,
		ExpiresIn: int64(res.ExpiresIn.Seconds()),
	})
}

func (h *UsersHandler) SignIn(ctx *gin.Context) {
	var req SignInRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	res, err := h.accounts.Login(cctx, accounts.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})

	if err != nil {
		respondAccountsError(ctx, h.log, err, "Password/Email can not be empty")
		return
	}

	ctx.JSON(http.StatusOK, tokenResponse{
		Message:   "User logged in successfully",
		AuthToken: res.Token,
		ExpiresIn: int64(res.ExpiresIn.Seconds()),
	})
}

func (h *UsersHandler) GetProfile(ctx *gin.Context) {
	u, ok := middlewares.UserFromContext(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Invalid Token")
		return
	}

	ctx.JSON(http.StatusOK, profileResponse{Status: "success", Data: u.Profile()})
}

func (h *UsersHandler) PatchProfile(ctx *gin.Context) {
	current, ok := middlewares.UserFromContext(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Invalid Token")
		return
	}

	var req UpdateProfileRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	updated, err := h.accounts.UpdateProfile(cctx, current, accounts.UpdateInput{
		UserName: req.UserName,
		Password: req.Password,
	})

	if err != nil {
		respondAccountsError(ctx, h.log, err, "UserName can not be empty")
		return
	}

	ctx.JSON(http.StatusOK, profileResponse{Status: "success", Data: updated.Profile()})
}
