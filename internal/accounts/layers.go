package accounts

import (
	"github.com/ruralpay/txauth/internal/models"
	"github.com/shopspring/decimal"
)

// Operation is the request a layer inspects.
type Operation struct {
	Type   models.TransactionType
	Amount decimal.Decimal
}

// Verdict tells the pipeline what a layer decided.
type Verdict int

const (
	// Delegate hands the operation to the next inner stage.
	Delegate Verdict = iota
	// Settle applies Outcome.Delta directly. Inner stages and the base rules
	// are skipped.
	Settle
	// Reject stops the pipeline with Outcome.Err.
	Reject
)

// Outcome is what a layer decided about an operation.
type Outcome struct {
	Verdict Verdict
	Delta   decimal.Decimal
	Err     error
}

// Pass delegates to the next inner stage.
func Pass() Outcome { return Outcome{Verdict: Delegate} }

// Apply settles the operation with delta. Inner stages are skipped.
func Apply(delta decimal.Decimal) Outcome { return Outcome{Verdict: Settle, Delta: delta} }

// Refuse stops the pipeline with err.
func Refuse(err error) Outcome { return Outcome{Verdict: Reject, Err: err} }

// Layer is one stage of a feature pipeline. Every hook is optional and
// receives copies, so a layer never touches the account directly.
type Layer struct {
	Name string
	// Intercept runs before the inner stages see the operation.
	Intercept func(op Operation, acct Snapshot) Outcome
	// AfterSuccess returns an extra balance delta once the inner stages
	// succeeded. acct already reflects the inner delta.
	AfterSuccess func(op Operation, acct Snapshot) decimal.Decimal
	// Interest adjusts the interest reported by the inner stages.
	Interest func(inner decimal.Decimal) decimal.Decimal
	// Describe decorates the details produced by the inner stages.
	Describe func(inner string) string
	// Floor lowers the balance the operation may end at, charges included,
	// for everything this layer wraps. ok=false leaves the floor unchanged.
	Floor func(op Operation, acct Snapshot) (floor decimal.Decimal, ok bool)
}

// Evaluate folds layers (outermost first) over op and returns the balance
// delta to commit. It has no side effects. After-success charges may not take
// the balance below the account minimum, or below a lower floor granted by a
// layer the operation passed through.
func Evaluate(layers []Layer, op Operation, acct Snapshot) (decimal.Decimal, error) {
	handledAt := len(layers)
	floor := acct.MinimumBalance
	var delta decimal.Decimal

intercept:
	for i, l := range layers {
		if l.Intercept == nil {
			continue
		}
		out := l.Intercept(op, acct)
		switch out.Verdict {
		case Reject:
			return decimal.Zero, out.Err
		case Settle:
			handledAt, delta = i, out.Delta
			break intercept
		}
	}

	// Layers the operation passed through, the settling one included, may
	// extend the floor.
	for i := 0; i < len(layers) && i <= handledAt; i++ {
		if layers[i].Floor == nil {
			continue
		}
		if f, ok := layers[i].Floor(op, acct); ok && f.LessThan(floor) {
			floor = f
		}
	}

	if handledAt == len(layers) {
		var err error
		if delta, err = baseRule(op, acct); err != nil {
			return decimal.Zero, err
		}
	}

	after := acct
	after.Balance = acct.Balance.Add(delta)
	charged := decimal.Zero
	for i := handledAt - 1; i >= 0; i-- {
		if layers[i].AfterSuccess == nil {
			continue
		}
		extra := layers[i].AfterSuccess(op, after)
		charged = charged.Add(extra)
		after.Balance = after.Balance.Add(extra)
	}

	if charged.IsNegative() && after.Balance.LessThan(floor) {
		return decimal.Zero, models.Failuref(models.CodeInsufficientFunds,
			"charges of %s would take the balance below %s",
			charged.Neg().StringFixed(2), floor.StringFixed(2))
	}
	return delta.Add(charged), nil
}

// Chain is an account with feature layers stacked on top of it. It shares
// identity, lock and balance with its base.
type Chain struct {
	base   *Account
	layers []Layer // outermost first
}

var _ Operator = (*Chain)(nil)

// Wrap stacks layers on base. Each layer wraps everything before it, so the
// last one listed is the outermost.
func Wrap(base *Account, layers ...Layer) *Chain {
	c := &Chain{base: base}
	for _, l := range layers {
		c = c.With(l)
	}
	return c
}

// With returns a new chain with l as the outermost layer.
func (c *Chain) With(l Layer) *Chain {
	layers := make([]Layer, 0, len(c.layers)+1)
	layers = append(layers, l)
	layers = append(layers, c.layers...)
	return &Chain{base: c.base, layers: layers}
}

// Layers lists layer names, outermost first.
func (c *Chain) Layers() []string {
	names := make([]string, len(c.layers))
	for i, l := range c.layers {
		names[i] = l.Name
	}
	return names
}

// ID returns the base account id.
func (c *Chain) ID() string { return c.base.ID() }

func (c *Chain) Base() *Account { return c.base }

func (c *Chain) Snapshot() Snapshot { return c.base.Snapshot() }

// Deposit runs a deposit through the layers and the base rules.
func (c *Chain) Deposit(amount decimal.Decimal) error {
	return c.base.apply(c.layers, Operation{Type: models.TransactionDeposit, Amount: amount})
}

// Withdraw runs a withdrawal through the layers and the base rules.
func (c *Chain) Withdraw(amount decimal.Decimal) error {
	return c.base.apply(c.layers, Operation{Type: models.TransactionWithdraw, Amount: amount})
}

// Transfer debits the chain and credits target's base account.
func (c *Chain) Transfer(target Operator, amount decimal.Decimal) error {
	return c.base.transfer(c.layers, target, amount)
}

// Interest folds the layers' adjustments over the base interest, innermost first.
func (c *Chain) Interest() decimal.Decimal {
	interest := c.base.Interest()
	for i := len(c.layers) - 1; i >= 0; i-- {
		if fn := c.layers[i].Interest; fn != nil {
			interest = fn(interest)
		}
	}
	return interest
}

func (c *Chain) Details() string {
	details := c.base.Details()
	for i := len(c.layers) - 1; i >= 0; i-- {
		if fn := c.layers[i].Describe; fn != nil {
			details = fn(details)
		}
	}
	return details
}
