package services

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ruralpay/txauth/internal/accounts"
	"github.com/ruralpay/txauth/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var ErrAccountNotFound = errors.New("account not found")

const (
	FeatureOverdraft = "overdraft"
	FeatureInsurance = "insurance"
	FeaturePremium   = "premium"
)

// FeatureSettings parameterizes the layers an account can be opened with.
type FeatureSettings struct {
	OverdraftLimit decimal.Decimal
	InsuranceFee   decimal.Decimal
	PremiumBonus   decimal.Decimal
}

func DefaultFeatureSettings() FeatureSettings {
	return FeatureSettings{
		OverdraftLimit: decimal.NewFromInt(500),
		InsuranceFee:   decimal.RequireFromString("0.50"),
		PremiumBonus:   decimal.RequireFromString("0.10"),
	}
}

// OpenAccountRequest describes a new account. Features are stacked in the
// order given, so the last one is the outermost layer.
type OpenAccountRequest struct {
	Holder         string             `json:"holder" validate:"required,max=120"`
	Kind           models.AccountKind `json:"kind" validate:"required,oneof=CHECKING SAVINGS LOAN INVESTMENT"`
	InitialBalance decimal.Decimal    `json:"initialBalance"`
	Features       []string           `json:"features,omitempty" validate:"omitempty,unique,dive,oneof=overdraft insurance premium"`
}

// AccountView is the read model served to callers.
type AccountView struct {
	accounts.Snapshot
	Features []string        `json:"features"`
	Interest decimal.Decimal `json:"interest"`
	Details  string          `json:"details"`
}

// AccountService keeps one operator per account so every caller works
// against the same lock and balance.
type AccountService struct {
	mu        sync.RWMutex
	accounts  map[string]accounts.Operator
	order     []string
	validator *ValidationHelper
	features  FeatureSettings
	logger    *zap.Logger
}

// NewAccountService creates an empty registry. A nil logger discards output.
func NewAccountService(features FeatureSettings, logger *zap.Logger) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountService{
		accounts:  make(map[string]accounts.Operator),
		validator: NewValidationHelper(),
		features:  features,
		logger:    logger,
	}
}

// Open validates req, opens the base account and stacks the requested features.
func (s *AccountService) Open(req OpenAccountRequest, opts ...accounts.Option) (accounts.Operator, error) {
	if err := s.validator.ValidateStruct(&req); err != nil {
		return nil, err
	}

	layers := make([]accounts.Layer, 0, len(req.Features))
	for _, f := range req.Features {
		layer, err := s.layer(f)
		if err != nil {
			return nil, err
		}
		layers = append(layers, layer)
	}

	base, err := accounts.New(req.Holder, req.Kind, req.InitialBalance, opts...)
	if err != nil {
		return nil, err
	}
	op := accounts.Wrap(base, layers...)
	s.Register(op)

	s.logger.Info("account opened",
		zap.String("account_id", op.ID()),
		zap.String("kind", string(req.Kind)),
		zap.Strings("features", req.Features),
	)
	return op, nil
}

func (s *AccountService) layer(feature string) (accounts.Layer, error) {
	switch feature {
	case FeatureOverdraft:
		return accounts.Overdraft(s.features.OverdraftLimit), nil
	case FeatureInsurance:
		return accounts.Fee(s.features.InsuranceFee), nil
	case FeaturePremium:
		return accounts.Bonus(s.features.PremiumBonus), nil
	}
	return accounts.Layer{}, fmt.Errorf("unknown feature %q", feature)
}

// Register adds an existing operator. Re-registering an id replaces it.
func (s *AccountService) Register(op accounts.Operator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[op.ID()]; !exists {
		s.order = append(s.order, op.ID())
	}
	s.accounts[op.ID()] = op
}

// Get returns the operator for id or ErrAccountNotFound.
func (s *AccountService) Get(id string) (accounts.Operator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	op, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	return op, nil
}

func (s *AccountService) View(id string) (AccountView, error) {
	op, err := s.Get(id)
	if err != nil {
		return AccountView{}, err
	}
	return Describe(op), nil
}

// List returns every account in the order it was opened.
func (s *AccountService) List() []AccountView {
	s.mu.RLock()
	ops := make([]accounts.Operator, 0, len(s.order))
	for _, id := range s.order {
		ops = append(ops, s.accounts[id])
	}
	s.mu.RUnlock()

	views := make([]AccountView, 0, len(ops))
	for _, op := range ops {
		views = append(views, Describe(op))
	}
	return views
}

// SetState reassigns an account's state and logs the transition.
func (s *AccountService) SetState(id string, state models.State) error {
	op, err := s.Get(id)
	if err != nil {
		return err
	}
	previous := op.Snapshot().State
	op.Base().SetState(state)

	s.logger.Info("account state changed",
		zap.String("account_id", id),
		zap.String("from", string(previous)),
		zap.String("to", string(state)),
	)
	return nil
}

// Describe builds the read model of op.
func Describe(op accounts.Operator) AccountView {
	view := AccountView{
		Snapshot: op.Snapshot(),
		Features: []string{},
		Interest: op.Interest(),
		Details:  op.Details(),
	}
	if layered, ok := op.(interface{ Layers() []string }); ok {
		view.Features = layered.Layers()
	}
	return view
}

// Invest moves cash into an investment account's portfolio.
func (s *AccountService) Invest(id string, amount decimal.Decimal) error {
	return s.portfolioAction(id, "invest", amount, (*accounts.Account).Invest)
}

// Liquidate sells part of an investment account's portfolio back to cash.
func (s *AccountService) Liquidate(id string, amount decimal.Decimal) error {
	return s.portfolioAction(id, "liquidate", amount, (*accounts.Account).Liquidate)
}

func (s *AccountService) portfolioAction(id, action string, amount decimal.Decimal, fn func(*accounts.Account, decimal.Decimal) error) error {
	op, err := s.Get(id)
	if err != nil {
		return err
	}
	if err := fn(op.Base(), amount); err != nil {
		s.logger.Info("portfolio action rejected",
			zap.String("account_id", id),
			zap.String("action", action),
			zap.Error(err),
		)
		return err
	}

	snap := op.Snapshot()
	s.logger.Info("portfolio action",
		zap.String("account_id", id),
		zap.String("action", action),
		zap.String("amount", amount.String()),
		zap.String("cash", snap.Balance.String()),
		zap.String("investment_value", snap.InvestmentValue.String()),
	)
	return nil
}
