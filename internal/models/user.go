package models

import (
	"fmt"
	"strings"
)

// Role is the privilege class of whoever initiates a transaction.
type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleTeller   Role = "TELLER"
	RoleManager  Role = "MANAGER"
	RoleAdmin    Role = "ADMIN"
)

// ParseRole is case-insensitive.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToUpper(strings.TrimSpace(s))); r {
	case RoleCustomer, RoleTeller, RoleManager, RoleAdmin:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Initiator identifies the caller of a transaction.
type Initiator struct {
	ID   string `json:"id" validate:"required"`
	Role Role   `json:"role" validate:"required,oneof=CUSTOMER TELLER MANAGER ADMIN"`
}
