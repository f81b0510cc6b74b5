package services

import (
	"github.com/ruralpay/txauth/internal/models"
	"github.com/shopspring/decimal"
)

// PrivilegePolicy caps the amount each role may move in one transaction.
// Admins are unbounded; roles without a ceiling are denied.
type PrivilegePolicy struct {
	ceilings map[models.Role]decimal.Decimal
}

// NewPrivilegePolicy sets the largest amount each role may move. Admins
// are unbounded.
func NewPrivilegePolicy(customer, teller, manager decimal.Decimal) *PrivilegePolicy {
	return &PrivilegePolicy{ceilings: map[models.Role]decimal.Decimal{
		models.RoleCustomer: customer,
		models.RoleTeller:   teller,
		models.RoleManager:  manager,
	}}
}

// DefaultPrivilegePolicy returns the standard role ceilings.
func DefaultPrivilegePolicy() *PrivilegePolicy {
	return NewPrivilegePolicy(
		decimal.NewFromInt(10000),
		decimal.NewFromInt(50000),
		decimal.NewFromInt(100000),
	)
}

// Allows reports whether role may move amount. Unknown roles may not.
func (p *PrivilegePolicy) Allows(role models.Role, amount decimal.Decimal) bool {
	if role == models.RoleAdmin {
		return true
	}
	ceiling, ok := p.ceilings[role]
	return ok && amount.LessThanOrEqual(ceiling)
}

// Ceiling returns the role's limit; ok is false for unbounded roles.
func (p *PrivilegePolicy) Ceiling(role models.Role) (decimal.Decimal, bool) {
	c, ok := p.ceilings[role]
	return c, ok
}
