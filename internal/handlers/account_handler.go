package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/ruralpay/txauth/internal/models"
	"github.com/ruralpay/txauth/internal/services"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AccountHandler serves the account registry.
type AccountHandler struct {
	accounts  *services.AccountService
	validator *services.ValidationHelper
	logger    *zap.Logger
}

func NewAccountHandler(accounts *services.AccountService, logger *zap.Logger) *AccountHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountHandler{
		accounts:  accounts,
		validator: services.NewValidationHelper(),
		logger:    logger,
	}
}

// OpenAccount opens an account with optional feature layers.
func (h *AccountHandler) OpenAccount(w http.ResponseWriter, r *http.Request) {
	var req services.OpenAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	op, err := h.accounts.Open(req)
	if err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
			return
		}
		services.SendErrorResponse(w, err.Error(), http.StatusUnprocessableEntity, nil)
		return
	}

	writeJSON(w, http.StatusCreated, services.Describe(op))
}

func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"accounts": h.accounts.List()})
}

func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	view, err := h.accounts.View(chi.URLParam(r, "accountId"))
	if err != nil {
		services.SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// SetState reassigns the account state. Any transition is allowed.
func (h *AccountHandler) SetState(w http.ResponseWriter, r *http.Request) {
	var req struct {
		State string `json:"state" validate:"required,oneof=ACTIVE SUSPENDED FROZEN CLOSED"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	state, err := models.ParseState(req.State)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	id := chi.URLParam(r, "accountId")
	if err := h.accounts.SetState(id, state); err != nil {
		services.SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		return
	}

	view, _ := h.accounts.View(id)
	writeJSON(w, http.StatusOK, map[string]any{
		"account":     view,
		"description": state.Description(),
	})
}

type portfolioBody struct {
	Amount decimal.Decimal `json:"amount"`
}

// Invest moves cash into an investment account's portfolio.
func (h *AccountHandler) Invest(w http.ResponseWriter, r *http.Request) {
	h.portfolio(w, r, h.accounts.Invest)
}

// Liquidate sells part of an investment account's portfolio.
func (h *AccountHandler) Liquidate(w http.ResponseWriter, r *http.Request) {
	h.portfolio(w, r, h.accounts.Liquidate)
}

func (h *AccountHandler) portfolio(w http.ResponseWriter, r *http.Request, action func(string, decimal.Decimal) error) {
	var body portfolioBody
	if !decodeJSON(w, r, &body) {
		return
	}

	id := chi.URLParam(r, "accountId")
	if err := action(id, body.Amount); err != nil {
		if errors.Is(err, services.ErrAccountNotFound) {
			services.SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
			return
		}
		writeJSON(w, http.StatusUnprocessableEntity, services.ErrorResponse{
			Error: err.Error(),
			Code:  string(models.CodeOf(err)),
		})
		return
	}

	view, _ := h.accounts.View(id)
	writeJSON(w, http.StatusOK, view)
}
