// Package accounts holds the account state machine and the feature layers
// that can be stacked on top of an account.
package accounts

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ruralpay/txauth/internal/models"
	"github.com/shopspring/decimal"
)

// DefaultSavingsMinimum is the floor a savings balance may not drop below.
var DefaultSavingsMinimum = decimal.NewFromInt(100)

// Snapshot is a point-in-time copy of an account's mutable fields. For
// investment accounts Balance is the cash held outside the portfolio.
type Snapshot struct {
	ID              string             `json:"id"`
	Holder          string             `json:"holder"`
	Kind            models.AccountKind `json:"kind"`
	Balance         decimal.Decimal    `json:"balance"`
	MinimumBalance  decimal.Decimal    `json:"minimumBalance"`
	InvestmentValue decimal.Decimal    `json:"investmentValue"`
	State           models.State       `json:"state"`
	CreatedAt       time.Time          `json:"createdAt"`
	LastModified    time.Time          `json:"lastModified"`
}

// Available is the amount that can leave the account without breaching its floor.
func (s Snapshot) Available() decimal.Decimal {
	return s.Balance.Sub(s.MinimumBalance)
}

// Operator is the operation contract shared by a bare account and a layered one.
type Operator interface {
	ID() string
	Snapshot() Snapshot
	Deposit(amount decimal.Decimal) error
	Withdraw(amount decimal.Decimal) error
	Transfer(target Operator, amount decimal.Decimal) error
	Interest() decimal.Decimal
	Details() string
	Base() *Account
}

// Account is the base account. All balance mutations happen under mu, so
// concurrent operations against one account are applied one at a time.
type Account struct {
	mu           sync.Mutex
	id           string
	holder       string
	kind         models.AccountKind
	balance      decimal.Decimal
	minimum      decimal.Decimal
	state        models.State
	interest     InterestStrategy
	portfolio    portfolio
	createdAt    time.Time
	lastModified time.Time
	now          func() time.Time
}

var _ Operator = (*Account)(nil)

// Option customizes an account opened with New.
type Option func(*Account)

// WithID overrides the generated account id.
func WithID(id string) Option {
	return func(a *Account) { a.id = id }
}

// WithMinimumBalance sets the floor withdrawals and transfers may not breach.
func WithMinimumBalance(min decimal.Decimal) Option {
	return func(a *Account) { a.minimum = min }
}

// WithInterest replaces the kind's default interest strategy.
func WithInterest(strategy InterestStrategy) Option {
	return func(a *Account) { a.interest = strategy }
}

// WithClock sets the clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *Account) { a.now = now }
}

// New opens an Active account. For loan accounts initial is the principal
// owed and the balance starts at its negation.
func New(holder string, kind models.AccountKind, initial decimal.Decimal, opts ...Option) (*Account, error) {
	if strings.TrimSpace(holder) == "" {
		return nil, errors.New("account holder is required")
	}
	if initial.IsNegative() {
		return nil, fmt.Errorf("initial amount must not be negative: %s", initial)
	}

	a := &Account{
		id:     uuid.NewString(),
		holder: holder,
		kind:   kind,
		state:  models.StateActive,
		now:    time.Now,
	}

	switch kind {
	case models.KindChecking:
		a.balance = initial
	case models.KindSavings:
		a.balance = initial
		a.minimum = DefaultSavingsMinimum
	case models.KindLoan:
		a.balance = initial.Neg()
	case models.KindInvestment:
		a.balance = initial
	default:
		return nil, fmt.Errorf("unknown account kind %q", kind)
	}
	a.interest = DefaultInterest(kind)

	for _, opt := range opts {
		opt(a)
	}

	if a.minimum.IsPositive() && a.balance.LessThan(a.minimum) {
		return nil, fmt.Errorf("initial balance must be at least %s for %s account", a.minimum, kind)
	}

	a.createdAt = a.now()
	a.lastModified = a.createdAt
	return a, nil
}

func (a *Account) ID() string { return a.id }

func (a *Account) Base() *Account { return a }

// Snapshot copies the account's current fields.
func (a *Account) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

func (a *Account) snapshotLocked() Snapshot {
	return Snapshot{
		ID:              a.id,
		Holder:          a.holder,
		Kind:            a.kind,
		Balance:         a.balance,
		MinimumBalance:  a.minimum,
		InvestmentValue: a.portfolio.value,
		State:           a.state,
		CreatedAt:       a.createdAt,
		LastModified:    a.lastModified,
	}
}

// SetState reassigns the state. Any state may follow any other.
func (a *Account) SetState(state models.State) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = state
	a.lastModified = a.now()
}

// UpdateHolder renames the account holder.
func (a *Account) UpdateHolder(holder string) error {
	if strings.TrimSpace(holder) == "" {
		return errors.New("account holder is required")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.holder = holder
	a.lastModified = a.now()
	return nil
}

func (a *Account) Deposit(amount decimal.Decimal) error {
	return a.apply(nil, Operation{Type: models.TransactionDeposit, Amount: amount})
}

// Withdraw debits the account under the base rules only.
func (a *Account) Withdraw(amount decimal.Decimal) error {
	return a.apply(nil, Operation{Type: models.TransactionWithdraw, Amount: amount})
}

// Transfer moves amount to target while holding both account locks.
func (a *Account) Transfer(target Operator, amount decimal.Decimal) error {
	return a.transfer(nil, target, amount)
}

func (a *Account) Interest() decimal.Decimal {
	if a.interest == nil {
		return decimal.Zero
	}
	return a.interest.Interest(a.Snapshot())
}

// Details renders the account as a text block.
func (a *Account) Details() string {
	s := a.Snapshot()
	var b strings.Builder
	fmt.Fprintf(&b, "%s Account Details:\n", s.Kind)
	fmt.Fprintf(&b, "  Account ID: %s\n", s.ID)
	fmt.Fprintf(&b, "  Holder: %s\n", s.Holder)
	fmt.Fprintf(&b, "  Balance: $%s\n", s.Balance.StringFixed(2))
	if s.MinimumBalance.IsPositive() {
		fmt.Fprintf(&b, "  Minimum Balance: $%s\n", s.MinimumBalance.StringFixed(2))
	}
	if s.Kind == models.KindInvestment {
		a.describePortfolio(&b)
	}
	fmt.Fprintf(&b, "  Status: %s", s.State)
	return b.String()
}

// apply runs op through layers and the base rules, then commits the delta.
func (a *Account) apply(layers []Layer, op Operation) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	delta, err := Evaluate(layers, op, a.snapshotLocked())
	if err != nil {
		return err
	}
	a.balance = a.balance.Add(delta)
	a.lastModified = a.now()
	return nil
}

// transfer debits a and credits target while holding both locks. Only the
// source's state is consulted.
func (a *Account) transfer(layers []Layer, target Operator, amount decimal.Decimal) error {
	if target == nil {
		return models.ErrMissingTarget
	}
	dst := target.Base()
	if dst == a {
		return models.ErrSameAccount
	}

	unlock := lockPair(a, dst)
	defer unlock()

	op := Operation{Type: models.TransactionTransfer, Amount: amount}
	delta, err := Evaluate(layers, op, a.snapshotLocked())
	if err != nil {
		return err
	}

	now := a.now()
	a.balance = a.balance.Add(delta)
	a.lastModified = now
	dst.balance = dst.balance.Add(amount)
	dst.lastModified = dst.now()
	return nil
}

// lockPair acquires both account locks in id order to avoid deadlocks
// between opposing transfers.
func lockPair(a, b *Account) func() {
	first, second := a, b
	if b.id < a.id {
		first, second = b, a
	}
	first.mu.Lock()
	second.mu.Lock()
	return func() {
		second.mu.Unlock()
		first.mu.Unlock()
	}
}

// baseRule applies the account's own checks: state capability, positive
// amount, then capacity against the balance floor.
func baseRule(op Operation, s Snapshot) (decimal.Decimal, error) {
	if !s.State.Allows(op.Type) {
		return decimal.Zero, models.Failuref(models.CodeStatePolicyViolation,
			"cannot %s in %s state", strings.ToLower(string(op.Type)), s.State)
	}
	if !op.Amount.IsPositive() {
		return decimal.Zero, models.ErrInvalidAmount
	}

	switch op.Type {
	case models.TransactionDeposit:
		return op.Amount, nil
	case models.TransactionWithdraw:
		if s.Kind.IsDebt() {
			return decimal.Zero, models.Failuref(models.CodeOperationNotSupported,
				"cannot withdraw from a loan account")
		}
	}

	if op.Amount.GreaterThan(s.Available()) {
		if s.MinimumBalance.IsPositive() {
			return decimal.Zero, models.Failuref(models.CodeInsufficientFunds,
				"would breach minimum balance of %s", s.MinimumBalance.StringFixed(2))
		}
		return decimal.Zero, models.Failuref(models.CodeInsufficientFunds,
			"available balance %s", s.Balance.StringFixed(2))
	}
	return op.Amount.Neg(), nil
}
