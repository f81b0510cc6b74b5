package handlers

import (
	"net/http"
	"time"

	"github.com/ruralpay/txauth/internal/accounts"
	"github.com/ruralpay/txauth/internal/middleware"
	"github.com/ruralpay/txauth/internal/models"
	"github.com/ruralpay/txauth/internal/services"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TransactionHandler serves the transaction pipeline and the scheduler.
type TransactionHandler struct {
	transactions *services.TransactionService
	accounts     *services.AccountService
	scheduler    *services.Scheduler
	validator    *services.ValidationHelper
	logger       *zap.Logger
}

// NewTransactionHandler creates the handler. A nil logger discards output.
func NewTransactionHandler(transactions *services.TransactionService, accounts *services.AccountService,
	scheduler *services.Scheduler, logger *zap.Logger) *TransactionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransactionHandler{
		transactions: transactions,
		accounts:     accounts,
		scheduler:    scheduler,
		validator:    services.NewValidationHelper(),
		logger:       logger,
	}
}

type transactionBody struct {
	AccountID       string          `json:"accountId" validate:"required"`
	TargetAccountID string          `json:"targetAccountId,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
}

type TransactionResponse struct {
	Success bool                     `json:"success"`
	Code    models.FailureCode       `json:"code,omitempty"`
	Error   string                   `json:"error,omitempty"`
	Record  models.TransactionRecord `json:"record"`
	Balance decimal.Decimal          `json:"balance"`
}

func (h *TransactionHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, models.TransactionDeposit)
}

func (h *TransactionHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, models.TransactionWithdraw)
}

func (h *TransactionHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, models.TransactionTransfer)
}

// handle answers 200 on success and 422 when the pipeline rejected the
// request. Either way a ledger record was written.
func (h *TransactionHandler) handle(w http.ResponseWriter, r *http.Request, txType models.TransactionType) {
	initiator, ok := middleware.InitiatorFrom(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var body transactionBody
	if !decodeJSON(w, r, &body) {
		return
	}
	if err := h.validator.ValidateStruct(&body); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	req, found := h.resolve(w, txType, body)
	if !found {
		return
	}
	req.Initiator = initiator

	result := h.transactions.Handle(r.Context(), req)
	resp := TransactionResponse{
		Success: result.OK(),
		Record:  result.Record,
		Balance: req.Source.Snapshot().Balance,
	}
	if !result.OK() {
		resp.Code = result.Record.FailureCode
		resp.Error = result.Err.Error()
		h.logger.Info("transaction rejected",
			zap.String("transaction_id", result.Record.ID),
			zap.String("code", string(resp.Code)),
		)
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// resolve looks up the accounts named in body and writes a 404 for unknown ids.
func (h *TransactionHandler) resolve(w http.ResponseWriter, txType models.TransactionType, body transactionBody) (services.TransactionRequest, bool) {
	source, err := h.accounts.Get(body.AccountID)
	if err != nil {
		services.SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		return services.TransactionRequest{}, false
	}

	var target accounts.Operator
	if txType == models.TransactionTransfer && body.TargetAccountID != "" {
		if target, err = h.accounts.Get(body.TargetAccountID); err != nil {
			services.SendErrorResponse(w, "Target account not found", http.StatusNotFound, nil)
			return services.TransactionRequest{}, false
		}
	}

	return services.TransactionRequest{
		Type:   txType,
		Source: source,
		Target: target,
		Amount: body.Amount,
	}, true
}

// ListTransactions returns the ledger, optionally narrowed to one account.
func (h *TransactionHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ledger := h.transactions.Ledger()

	var records []models.TransactionRecord
	if accountID := r.URL.Query().Get("accountId"); accountID != "" {
		records = ledger.RecordsFor(accountID)
	} else {
		records = ledger.Records()
	}
	if records == nil {
		records = []models.TransactionRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": records, "count": len(records)})
}

func (h *TransactionHandler) DailyReport(w http.ResponseWriter, r *http.Request) {
	day := time.Now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.ParseInLocation(time.DateOnly, raw, time.Local)
		if err != nil {
			services.SendErrorResponse(w, "date must be YYYY-MM-DD", http.StatusBadRequest, nil)
			return
		}
		day = parsed
	}
	writeJSON(w, http.StatusOK, h.transactions.Ledger().DailyReport(day))
}

type scheduleBody struct {
	Type            string          `json:"type" validate:"required,oneof=DEPOSIT WITHDRAW TRANSFER"`
	AccountID       string          `json:"accountId" validate:"required"`
	TargetAccountID string          `json:"targetAccountId,omitempty" validate:"required_if=Type TRANSFER"`
	Amount          decimal.Decimal `json:"amount"`
	FirstRun        string          `json:"firstRun" validate:"required,datetime=2006-01-02"`
	IntervalDays    int             `json:"intervalDays" validate:"required,gte=1"`
}

// CreateSchedule registers a recurring transaction run by the scheduler.
func (h *TransactionHandler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	initiator, ok := middleware.InitiatorFrom(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var body scheduleBody
	if !decodeJSON(w, r, &body) {
		return
	}
	if err := h.validator.ValidateStruct(&body); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	txType := models.TransactionType(body.Type)
	req, found := h.resolve(w, txType, transactionBody{
		AccountID:       body.AccountID,
		TargetAccountID: body.TargetAccountID,
		Amount:          body.Amount,
	})
	if !found {
		return
	}
	req.Initiator = initiator

	firstRun, _ := time.ParseInLocation(time.DateOnly, body.FirstRun, time.Local)
	st, err := services.NewScheduledTransaction(req, firstRun, body.IntervalDays)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	h.scheduler.Add(st)

	writeJSON(w, http.StatusCreated, st.View())
}

func (h *TransactionHandler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"schedules": h.scheduler.List()})
}
