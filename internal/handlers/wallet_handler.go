package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/posi-ecosystem/fati-backend/internal/models"
	"github.com/posi-ecosystem/fati-backend/internal/services"
)

// IdempotencyKeyHeader lets clients make mutating wallet calls safe to retry.
const IdempotencyKeyHeader = "Idempotency-Key"

// clientKey scopes the caller's Idempotency-Key to one wallet operation so it
// cannot address keys the ledger derives for rewards, purchases or webhooks.
func clientKey(r *http.Request, operation string) string {
	key := r.Header.Get(IdempotencyKeyHeader)
	if key == "" {
		return ""
	}
	return "client:" + operation + ":" + key
}

// TransferLimiter gates outgoing transfers per account. Record is called
// only for transfers that were newly applied.
type TransferLimiter interface {
	Check(ctx context.Context, accountID string) error
	Record(ctx context.Context, accountID string)
}

type WalletHandler struct {
	ledger    *services.LedgerService
	accounts  *services.AccountService
	limiter   TransferLimiter
	validator *services.ValidationHelper
}

func NewWalletHandler(ledger *services.LedgerService, accounts *services.AccountService, limiter TransferLimiter) *WalletHandler {
	return &WalletHandler{
		ledger:    ledger,
		accounts:  accounts,
		limiter:   limiter,
		validator: services.NewValidationHelper(),
	}
}

// BalanceResponse represents the caller's FATI balance
type BalanceResponse struct {
	AccountID string `json:"accountId"`
	Balance   int64  `json:"balance" example:"1100"`
}

// TransferRequest represents a FATI transfer request
// @Description Either toAccountId or toEmail identifies the recipient
type TransferRequest struct {
	ToAccountID string      `json:"toAccountId" validate:"required_without=ToEmail"`
	ToEmail     string      `json:"toEmail" validate:"omitempty,email"`
	Amount      json.Number `json:"amount" validate:"required" swaggertype:"integer" example:"250"`
}

// SpendRequest represents an in-app FATI spend
type SpendRequest struct {
	Amount      json.Number `json:"amount" validate:"required" swaggertype:"integer" example:"50"`
	Description string      `json:"description" validate:"max=200"`
}

// GetBalance returns the caller's balance
// @Summary Get FATI balance
// @Tags Wallet
// @Produce json
// @Security BearerAuth
// @Success 200 {object} BalanceResponse
// @Failure 401 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /fati/balance [get]
func (h *WalletHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	accountID, ok := callerID(w, r)
	if !ok {
		return
	}

	balance, err := h.ledger.Balance(r.Context(), accountID)
	if err != nil {
		services.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{AccountID: accountID, Balance: balance})
}

// ListTransactions returns the caller's ledger entries, newest first
// @Summary List FATI transactions
// @Tags Wallet
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size"
// @Param offset query int false "Entries to skip"
// @Success 200 {object} object{transactions=[]models.LedgerEntry}
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Router /fati/transactions [get]
func (h *WalletHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	accountID, ok := callerID(w, r)
	if !ok {
		return
	}

	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	entries, err := h.ledger.History(r.Context(), accountID, limit, offset)
	if err != nil {
		services.WriteError(w, err)
		return
	}
	if entries == nil {
		entries = []models.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": entries})
}

// GetRecent returns entries from the last few days
// @Summary Recent FATI transactions
// @Tags Wallet
// @Produce json
// @Security BearerAuth
// @Param days query int false "Look-back window in days" default(30)
// @Success 200 {object} object{transactions=[]models.LedgerEntry}
// @Router /fati/recent [get]
func (h *WalletHandler) GetRecent(w http.ResponseWriter, r *http.Request) {
	accountID, ok := callerID(w, r)
	if !ok {
		return
	}

	days, err := queryInt(r, "days", 30)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	entries, err := h.ledger.Recent(r.Context(), accountID, days)
	if err != nil {
		services.WriteError(w, err)
		return
	}
	if entries == nil {
		entries = []models.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": entries})
}

// GetSummary returns FATI volume per entry type
// @Summary FATI summary
// @Tags Wallet
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.LedgerSummary
// @Router /fati/summary [get]
func (h *WalletHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	accountID, ok := callerID(w, r)
	if !ok {
		return
	}

	summary, err := h.ledger.Summary(r.Context(), accountID)
	if err != nil {
		services.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Transfer sends FATI to another account
// @Summary Transfer FATI
// @Description Debits the caller and credits the recipient atomically
// @Tags Wallet
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param Idempotency-Key header string false "Client-chosen key; replays return the original result"
// @Param request body TransferRequest true "Transfer request"
// @Success 200 {object} services.TransferResult
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Failure 422 {object} services.ErrorResponse
// @Failure 429 {object} services.ErrorResponse
// @Router /fati/transfer [post]
func (h *WalletHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	accountID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req TransferRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	amount, err := services.ParseFati(req.Amount)
	if err != nil {
		services.WriteError(w, err)
		return
	}

	toID, err := h.accounts.ResolveAccountID(r.Context(), req.ToAccountID, req.ToEmail)
	if err != nil {
		services.WriteError(w, err)
		return
	}

	if err := h.limiter.Check(r.Context(), accountID); err != nil {
		services.WriteError(w, err)
		return
	}

	result, err := h.ledger.Transfer(r.Context(), services.TransferRequest{
		FromID:         accountID,
		ToID:           toID,
		Amount:         amount,
		IdempotencyKey: clientKey(r, "transfer"),
	})
	if err != nil {
		services.WriteError(w, err)
		return
	}
	if !result.Replayed {
		h.limiter.Record(r.Context(), accountID)
	}

	writeJSON(w, http.StatusOK, result)
}

// Spend debits the caller for an in-app purchase
// @Summary Spend FATI
// @Tags Wallet
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param Idempotency-Key header string false "Client-chosen key; replays return the original entry"
// @Param request body SpendRequest true "Spend request"
// @Success 200 {object} models.LedgerEntry
// @Failure 400 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Failure 422 {object} services.ErrorResponse
// @Router /fati/spend [post]
func (h *WalletHandler) Spend(w http.ResponseWriter, r *http.Request) {
	accountID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req SpendRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	amount, err := services.ParseFati(req.Amount)
	if err != nil {
		services.WriteError(w, err)
		return
	}

	posting := services.Posting{
		AccountID:      accountID,
		Amount:         amount,
		Type:           models.EntrySpend,
		IdempotencyKey: clientKey(r, "spend"),
	}
	if req.Description != "" {
		posting.Metadata = models.Metadata{models.MetaDescription: req.Description}
	}

	entry, err := h.ledger.Debit(r.Context(), posting)
	if err != nil {
		services.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
