package handlers

import (
	"log"
	"net/http"

	"github.com/posi-ecosystem/fati-backend/internal/middleware"
	"github.com/posi-ecosystem/fati-backend/internal/services"
)

type AccountHandler struct {
	accounts  *services.AccountService
	validator *services.ValidationHelper
}

func NewAccountHandler(accounts *services.AccountService) *AccountHandler {
	return &AccountHandler{
		accounts:  accounts,
		validator: services.NewValidationHelper(),
	}
}

// RegisterRequest represents the signup request payload
type RegisterRequest struct {
	Email        string `json:"email" validate:"required,email" example:"ada@example.com"`
	Password     string `json:"password" validate:"required,min=8" example:"password123"`
	ReferralCode string `json:"referralCode" validate:"omitempty,max=32" example:"REF-ABC12345"`
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email" example:"ada@example.com"`
	Password string `json:"password" validate:"required" example:"password123"`
}

// Register creates an account
// @Summary Register account
// @Description Creates an account, optionally redeeming a referral code, and returns a JWT
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Signup request"
// @Success 201 {object} services.AuthResult
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse "Unknown referral code"
// @Failure 409 {object} services.ErrorResponse "Email already registered"
// @Router /auth/register [post]
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	result, err := h.accounts.Register(r.Context(), services.RegisterInput{
		Email:        req.Email,
		Password:     req.Password,
		ReferralCode: req.ReferralCode,
	})
	if err != nil {
		log.Printf("[AUTH] Registration failed: %v", err)
		services.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// Login authenticates an account
// @Summary Login
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login request"
// @Success 200 {object} services.AuthResult
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Router /auth/login [post]
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	result, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		services.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Logout revokes the caller's token
// @Summary Logout
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{success=bool}
// @Failure 401 {object} services.ErrorResponse
// @Router /auth/logout [post]
func (h *AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.Logout(r.Context(), middleware.TokenFromContext(r.Context())); err != nil {
		services.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// GetAccount returns the caller's account
// @Summary Get account
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.Account
// @Failure 401 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /auth/account [get]
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	accountID, ok := callerID(w, r)
	if !ok {
		return
	}

	account, err := h.accounts.GetAccount(r.Context(), accountID)
	if err != nil {
		services.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}
