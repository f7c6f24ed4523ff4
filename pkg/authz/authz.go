package authz

import (
	"github.com/shopvana/shopvana-backend/pkg/enums"
)

// Capability names one guarded operation surface.
type Capability string

const (
	CapCatalogWrite   Capability = "catalog:write"
	CapOrdersManage   Capability = "orders:manage"
	CapOrdersDelete   Capability = "orders:delete"
	CapPaymentsManage Capability = "payments:manage"
	CapWalletAdjust   Capability = "wallet:adjust"
	CapUsersRead      Capability = "users:read"
)

// roleCapabilities maps each role to the capabilities it carries beyond
// the customer surface (own cart, own orders, reviews, wishlists).
var roleCapabilities = map[enums.UserRole]map[Capability]bool{
	enums.UserRoleAdmin: {
		CapCatalogWrite:   true,
		CapOrdersManage:   true,
		CapOrdersDelete:   true,
		CapPaymentsManage: true,
		CapWalletAdjust:   true,
		CapUsersRead:      true,
	},
	enums.UserRoleVendor: {
		CapCatalogWrite: true,
		CapOrdersManage: true,
	},
	enums.UserRoleCustomer: {},
}

// Allowed reports whether the role carries the capability. Staff accounts
// pass every check regardless of role.
func Allowed(role enums.UserRole, isStaff bool, cap Capability) bool {
	if isStaff {
		return true
	}
	caps, ok := roleCapabilities[role]
	if !ok {
		return false
	}
	return caps[cap]
}
