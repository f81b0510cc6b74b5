package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ruralpay/txauth/internal/middleware"
	"github.com/ruralpay/txauth/internal/models"
	"github.com/ruralpay/txauth/internal/services"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var handlerNow = time.Date(2024, 6, 14, 12, 0, 0, 0, time.Local)

type testServer struct {
	router   http.Handler
	accounts *services.AccountService
	ledger   *services.Ledger
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ledger := services.NewLedgerWithClock(func() time.Time { return handlerNow })
	accounts := services.NewAccountService(services.DefaultFeatureSettings(), nil)
	transactions := services.NewTransactionService(ledger, services.DefaultTransactionSettings())
	scheduler := services.NewScheduler(transactions, time.Hour, nil)
	t.Cleanup(transactions.Wait)

	accountHandler := NewAccountHandler(accounts, nil)
	txHandler := NewTransactionHandler(transactions, accounts, scheduler, nil)

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/accounts", accountHandler.OpenAccount)
		r.Get("/accounts", accountHandler.ListAccounts)
		r.Get("/accounts/{accountId}", accountHandler.GetAccount)
		r.Put("/accounts/{accountId}/state", accountHandler.SetState)
		r.Post("/accounts/{accountId}/invest", accountHandler.Invest)
		r.Post("/accounts/{accountId}/liquidate", accountHandler.Liquidate)
		r.Get("/transactions", txHandler.ListTransactions)
		r.Get("/reports/daily", txHandler.DailyReport)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Initiator)
			r.Post("/transactions/deposit", txHandler.Deposit)
			r.Post("/transactions/withdraw", txHandler.Withdraw)
			r.Post("/transactions/transfer", txHandler.Transfer)
			r.Post("/schedules", txHandler.CreateSchedule)
			r.Get("/schedules", txHandler.ListSchedules)
		})
	})

	return &testServer{router: r, accounts: accounts, ledger: ledger}
}

func (s *testServer) do(method, path, body string, role models.Role) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set(middleware.HeaderInitiatorID, "user-1")
		req.Header.Set(middleware.HeaderInitiatorRole, string(role))
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) open(t *testing.T, kind models.AccountKind, balance string, features ...string) string {
	t.Helper()
	op, err := s.accounts.Open(services.OpenAccountRequest{
		Holder:         "Alice",
		Kind:           kind,
		InitialBalance: decimal.RequireFromString(balance),
		Features:       features,
	})
	require.NoError(t, err)
	return op.ID()
}

func decodeResponse[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestAccountHandler_OpenAccount(t *testing.T) {
	srv := newTestServer(t)

	t.Run("successful open", func(t *testing.T) {
		w := srv.do("POST", "/api/v1/accounts",
			`{"holder":"Alice","kind":"CHECKING","initialBalance":"1000","features":["overdraft","insurance"]}`, "")

		assert.Equal(t, http.StatusCreated, w.Code)
		view := decodeResponse[services.AccountView](t, w)
		assert.NotEmpty(t, view.ID)
		assert.Equal(t, models.StateActive, view.State)
		assert.Equal(t, []string{"insurance-fee", "overdraft"}, view.Features)
		assert.True(t, view.Balance.Equal(decimal.NewFromInt(1000)))
	})

	t.Run("invalid request body", func(t *testing.T) {
		w := srv.do("POST", "/api/v1/accounts", "invalid", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown field", func(t *testing.T) {
		w := srv.do("POST", "/api/v1/accounts", `{"holder":"Alice","kind":"CHECKING","pin":"1234"}`, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("multiple objects", func(t *testing.T) {
		w := srv.do("POST", "/api/v1/accounts", `{"holder":"Alice","kind":"CHECKING"}{}`, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("validation failed", func(t *testing.T) {
		w := srv.do("POST", "/api/v1/accounts", `{"kind":"BROKERAGE"}`, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeResponse[services.ErrorResponse](t, w)
		assert.Contains(t, resp.Details, "Holder")
	})

	t.Run("savings below minimum", func(t *testing.T) {
		w := srv.do("POST", "/api/v1/accounts", `{"holder":"Alice","kind":"SAVINGS","initialBalance":"50"}`, "")
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestAccountHandler_Lookup(t *testing.T) {
	srv := newTestServer(t)
	id := srv.open(t, models.KindSavings, "1200", "premium")

	t.Run("get account", func(t *testing.T) {
		w := srv.do("GET", "/api/v1/accounts/"+id, "", "")
		assert.Equal(t, http.StatusOK, w.Code)
		view := decodeResponse[services.AccountView](t, w)
		assert.True(t, view.Interest.Equal(decimal.RequireFromString("3.3")))
		assert.Regexp(t, "^PREMIUM ", view.Details)
	})

	t.Run("not found", func(t *testing.T) {
		w := srv.do("GET", "/api/v1/accounts/nope", "", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("list", func(t *testing.T) {
		w := srv.do("GET", "/api/v1/accounts", "", "")
		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeResponse[map[string][]services.AccountView](t, w)
		assert.Len(t, resp["accounts"], 1)
	})
}

func TestAccountHandler_SetState(t *testing.T) {
	srv := newTestServer(t)
	id := srv.open(t, models.KindChecking, "100")

	t.Run("freeze", func(t *testing.T) {
		w := srv.do("PUT", "/api/v1/accounts/"+id+"/state", `{"state":"FROZEN"}`, "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Account is frozen")
	})

	t.Run("invalid state", func(t *testing.T) {
		w := srv.do("PUT", "/api/v1/accounts/"+id+"/state", `{"state":"DORMANT"}`, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown account", func(t *testing.T) {
		w := srv.do("PUT", "/api/v1/accounts/nope/state", `{"state":"ACTIVE"}`, "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestTransactionHandler_Transactions(t *testing.T) {
	srv := newTestServer(t)
	src := srv.open(t, models.KindChecking, "1000", "overdraft")
	dst := srv.open(t, models.KindChecking, "0")

	t.Run("missing initiator", func(t *testing.T) {
		w := srv.do("POST", "/api/v1/transactions/deposit", `{"accountId":"`+src+`","amount":"10"}`, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, 0, srv.ledger.Len())
	})

	t.Run("deposit", func(t *testing.T) {
		w := srv.do("POST", "/api/v1/transactions/deposit", `{"accountId":"`+src+`","amount":"10"}`, models.RoleCustomer)
		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeResponse[TransactionResponse](t, w)
		assert.True(t, resp.Success)
		assert.True(t, resp.Balance.Equal(decimal.NewFromInt(1010)))
		assert.Equal(t, models.ApprovalAuto, resp.Record.ApprovalLevel)
		assert.Equal(t, "user-1", resp.Record.InitiatorID)
	})

	t.Run("withdraw into overdraft", func(t *testing.T) {
		w := srv.do("POST", "/api/v1/transactions/withdraw", `{"accountId":"`+src+`","amount":1210}`, models.RoleCustomer)
		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeResponse[TransactionResponse](t, w)
		assert.True(t, resp.Balance.Equal(decimal.NewFromInt(-200)))
	})

	t.Run("withdraw beyond overdraft", func(t *testing.T) {
		w := srv.do("POST", "/api/v1/transactions/withdraw", `{"accountId":"`+src+`","amount":"400"}`, models.RoleCustomer)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		resp := decodeResponse[TransactionResponse](t, w)
		assert.False(t, resp.Success)
		assert.Equal(t, models.CodeExecutionFailure, resp.Code)
		assert.False(t, resp.Record.Success)
	})

	t.Run("privilege ceiling", func(t *testing.T) {
		w := srv.do("POST", "/api/v1/transactions/deposit", `{"accountId":"`+dst+`","amount":"10000.01"}`, models.RoleCustomer)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		resp := decodeResponse[TransactionResponse](t, w)
		assert.Equal(t, models.CodeInsufficientPrivilege, resp.Code)
	})

	t.Run("transfer", func(t *testing.T) {
		srv.do("POST", "/api/v1/transactions/deposit", `{"accountId":"`+src+`","amount":"500"}`, models.RoleCustomer)
		w := srv.do("POST", "/api/v1/transactions/transfer",
			`{"accountId":"`+src+`","targetAccountId":"`+dst+`","amount":"100"}`, models.RoleTeller)
		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeResponse[TransactionResponse](t, w)
		assert.Equal(t, dst, resp.Record.TargetID)
	})

	t.Run("transfer without target", func(t *testing.T) {
		w := srv.do("POST", "/api/v1/transactions/transfer", `{"accountId":"`+src+`","amount":"1"}`, models.RoleTeller)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, models.CodeMissingTarget, decodeResponse[TransactionResponse](t, w).Code)
	})

	t.Run("unknown accounts", func(t *testing.T) {
		w := srv.do("POST", "/api/v1/transactions/deposit", `{"accountId":"nope","amount":"1"}`, models.RoleTeller)
		assert.Equal(t, http.StatusNotFound, w.Code)

		w = srv.do("POST", "/api/v1/transactions/transfer",
			`{"accountId":"`+src+`","targetAccountId":"nope","amount":"1"}`, models.RoleTeller)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("invalid amount", func(t *testing.T) {
		w := srv.do("POST", "/api/v1/transactions/deposit", `{"accountId":"`+src+`","amount":"ten"}`, models.RoleTeller)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("list transactions", func(t *testing.T) {
		w := srv.do("GET", "/api/v1/transactions?accountId="+dst, "", "")
		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeResponse[struct {
			Count        int                        `json:"count"`
			Transactions []models.TransactionRecord `json:"transactions"`
		}](t, w)
		assert.Equal(t, 2, resp.Count)

		w = srv.do("GET", "/api/v1/transactions", "", "")
		assert.Equal(t, srv.ledger.Len(), decodeResponse[struct {
			Count int `json:"count"`
		}](t, w).Count)
	})
}

func TestTransactionHandler_DailyReport(t *testing.T) {
	srv := newTestServer(t)
	id := srv.open(t, models.KindChecking, "100")
	srv.do("POST", "/api/v1/transactions/deposit", `{"accountId":"`+id+`","amount":"40"}`, models.RoleCustomer)
	srv.do("POST", "/api/v1/transactions/withdraw", `{"accountId":"`+id+`","amount":"500"}`, models.RoleCustomer)

	t.Run("report for day", func(t *testing.T) {
		w := srv.do("GET", "/api/v1/reports/daily?date=2024-06-14", "", "")
		assert.Equal(t, http.StatusOK, w.Code)
		report := decodeResponse[models.DailyReport](t, w)
		assert.Equal(t, 2, report.Count)
		assert.Equal(t, 1, report.Failures)
		assert.True(t, report.Total.Equal(decimal.NewFromInt(40)))
	})

	t.Run("other day", func(t *testing.T) {
		w := srv.do("GET", "/api/v1/reports/daily?date=2024-06-13", "", "")
		assert.Equal(t, 0, decodeResponse[models.DailyReport](t, w).Count)
	})

	t.Run("bad date", func(t *testing.T) {
		w := srv.do("GET", "/api/v1/reports/daily?date=14/06/2024", "", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestTransactionHandler_Schedules(t *testing.T) {
	srv := newTestServer(t)
	src := srv.open(t, models.KindChecking, "100")
	dst := srv.open(t, models.KindChecking, "0")

	t.Run("create", func(t *testing.T) {
		w := srv.do("POST", "/api/v1/schedules",
			`{"type":"TRANSFER","accountId":"`+src+`","targetAccountId":"`+dst+`","amount":"25","firstRun":"2024-07-01","intervalDays":30}`,
			models.RoleCustomer)
		assert.Equal(t, http.StatusCreated, w.Code)
		view := decodeResponse[services.ScheduleView](t, w)
		assert.Equal(t, dst, view.TargetID)
		assert.Equal(t, "25.00", view.Amount)
	})

	t.Run("transfer needs target", func(t *testing.T) {
		w := srv.do("POST", "/api/v1/schedules",
			`{"type":"TRANSFER","accountId":"`+src+`","amount":"25","firstRun":"2024-07-01","intervalDays":30}`,
			models.RoleCustomer)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("list", func(t *testing.T) {
		w := srv.do("GET", "/api/v1/schedules", "", models.RoleCustomer)
		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeResponse[map[string][]services.ScheduleView](t, w)
		assert.Len(t, resp["schedules"], 1)
	})
}

func TestAccountHandler_Portfolio(t *testing.T) {
	srv := newTestServer(t)
	id := srv.open(t, models.KindInvestment, "1000")
	checking := srv.open(t, models.KindChecking, "1000")

	t.Run("invest", func(t *testing.T) {
		w := srv.do("POST", "/api/v1/accounts/"+id+"/invest", `{"amount":"500"}`, "")
		assert.Equal(t, http.StatusOK, w.Code)
		view := decodeResponse[services.AccountView](t, w)
		assert.True(t, view.Balance.Equal(decimal.NewFromInt(500)))
		assert.True(t, view.InvestmentValue.Equal(decimal.RequireFromString("499.50")))
	})

	t.Run("liquidate too much", func(t *testing.T) {
		w := srv.do("POST", "/api/v1/accounts/"+id+"/liquidate", `{"amount":"600"}`, "")
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		resp := decodeResponse[services.ErrorResponse](t, w)
		assert.Equal(t, string(models.CodeInsufficientFunds), resp.Code)
	})

	t.Run("checking account", func(t *testing.T) {
		w := srv.do("POST", "/api/v1/accounts/"+checking+"/invest", `{"amount":"10"}`, "")
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, string(models.CodeOperationNotSupported), decodeResponse[services.ErrorResponse](t, w).Code)
	})

	t.Run("unknown account", func(t *testing.T) {
		w := srv.do("POST", "/api/v1/accounts/nope/invest", `{"amount":"10"}`, "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
