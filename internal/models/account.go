package models

import "fmt"

// State gates which operations an account accepts.
type State string

const (
	StateActive    State = "ACTIVE"
	StateSuspended State = "SUSPENDED"
	StateFrozen    State = "FROZEN"
	StateClosed    State = "CLOSED"
)

// ParseState accepts the upper-case state names.
func ParseState(s string) (State, error) {
	switch st := State(s); st {
	case StateActive, StateSuspended, StateFrozen, StateClosed:
		return st, nil
	}
	return "", fmt.Errorf("unknown account state %q", s)
}

// CanDeposit reports whether money may enter the account.
func (s State) CanDeposit() bool {
	return s == StateActive || s == StateSuspended
}

func (s State) CanWithdraw() bool {
	return s == StateActive
}

func (s State) CanTransfer() bool {
	return s == StateActive
}

// Allows reports whether the state permits the given transaction type.
func (s State) Allows(t TransactionType) bool {
	switch t {
	case TransactionDeposit:
		return s.CanDeposit()
	case TransactionWithdraw:
		return s.CanWithdraw()
	case TransactionTransfer:
		return s.CanTransfer()
	}
	return false
}

// Description explains the state to account holders.
func (s State) Description() string {
	switch s {
	case StateActive:
		return "Account is active and fully operational. All transactions are allowed."
	case StateSuspended:
		return "Account is suspended. Deposits are allowed, but withdrawals and transfers are prohibited."
	case StateFrozen:
		return "Account is frozen. No transactions are allowed."
	case StateClosed:
		return "Account is closed. No transactions are allowed."
	}
	return "Unknown state."
}

// AccountKind is the product type of an account.
type AccountKind string

const (
	KindChecking   AccountKind = "CHECKING"
	KindSavings    AccountKind = "SAVINGS"
	KindLoan       AccountKind = "LOAN"
	KindInvestment AccountKind = "INVESTMENT"
)

// ParseAccountKind accepts the upper-case kind names.
func ParseAccountKind(s string) (AccountKind, error) {
	switch k := AccountKind(s); k {
	case KindChecking, KindSavings, KindLoan, KindInvestment:
		return k, nil
	}
	return "", fmt.Errorf("unknown account kind %q", s)
}

// IsDebt reports whether a negative balance is the normal state of the account.
func (k AccountKind) IsDebt() bool {
	return k == KindLoan
}
