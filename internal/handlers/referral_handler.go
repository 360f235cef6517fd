package handlers

import (
	"net/http"

	"github.com/posi-ecosystem/fati-backend/internal/services"
)

type ReferralHandler struct {
	referrals *services.ReferralService
	validator *services.ValidationHelper
}

func NewReferralHandler(referrals *services.ReferralService) *ReferralHandler {
	return &ReferralHandler{
		referrals: referrals,
		validator: services.NewValidationHelper(),
	}
}

// TrackReferralRequest redeems a referral code for a freshly created account
type TrackReferralRequest struct {
	ReferralCode string `json:"referralCode" validate:"required,max=32" example:"REF-ABC12345"`
	NewAccountID string `json:"newAccountId" validate:"required"`
}

// Track redeems a referral code
// @Summary Redeem referral code
// @Description Links the caller to the code's owner and credits the signup bonus
// @Tags Referrals
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body TrackReferralRequest true "Referral redemption"
// @Success 200 {object} services.RedeemResult
// @Failure 400 {object} services.ErrorResponse
// @Failure 403 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse "Unknown referral code"
// @Failure 409 {object} services.ErrorResponse "Account already referred"
// @Router /referrals/track [post]
func (h *ReferralHandler) Track(w http.ResponseWriter, r *http.Request) {
	accountID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req TrackReferralRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	if req.NewAccountID != accountID {
		services.SendErrorResponse(w, "newAccountId must be the authenticated account", http.StatusForbidden, nil)
		return
	}

	result, err := h.referrals.Redeem(r.Context(), req.ReferralCode, req.NewAccountID)
	if err != nil {
		services.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetInfo returns the caller's referral code, share link and QR code
// @Summary Get referral details
// @Tags Referrals
// @Produce json
// @Security BearerAuth
// @Success 200 {object} services.ReferralInfo
// @Failure 401 {object} services.ErrorResponse
// @Router /referrals [get]
func (h *ReferralHandler) GetInfo(w http.ResponseWriter, r *http.Request) {
	accountID, ok := callerID(w, r)
	if !ok {
		return
	}

	info, err := h.referrals.EnsureCode(r.Context(), accountID)
	if err != nil {
		services.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// GetStats returns the caller's referral counters
// @Summary Get referral stats
// @Tags Referrals
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.ReferralStats
// @Router /referrals/stats [get]
func (h *ReferralHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	accountID, ok := callerID(w, r)
	if !ok {
		return
	}

	stats, err := h.referrals.Stats(r.Context(), accountID)
	if err != nil {
		services.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
