package models

import "fmt"

// Role is the closed set of account roles
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// Capability names an operation gated by role
type Capability int

const (
	CapManageCatalog Capability = iota + 1
	CapManageOrders
	CapManageUsers
	CapReadAnyOrder
)

var roleCapabilities = map[Role]map[Capability]bool{
	RoleCustomer: {},
	RoleAdmin: {
		CapManageCatalog: true,
		CapManageOrders:  true,
		CapManageUsers:   true,
		CapReadAnyOrder:  true,
	},
}

// Can reports whether the role grants the capability
func (r Role) Can(c Capability) bool {
	return roleCapabilities[r][c]
}

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	_, ok := roleCapabilities[r]
	return ok
}

// ParseRole converts user input into a Role
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}
