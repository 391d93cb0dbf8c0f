// Package authz holds the static role-to-operation permission table the
// whole suite shares. Decisions are pure: role in, allowed set out. "Self"
// access is a separate, narrower check on the resource owner's email.
package authz

import "github.com/hrstack/authhub/internal/domain/account"

// Permission is a closed enum of the protected operations across the suite.
type Permission string

const (
	PermManageAccounts  Permission = "accounts.manage"
	PermManageEmployees Permission = "employees.manage"
	PermViewEmployees   Permission = "employees.view"
	PermApproveLeave    Permission = "leave.approve"
	PermRequestLeave    Permission = "leave.request"
	PermRunPayroll      Permission = "payroll.run"
	PermViewPayroll     Permission = "payroll.view"
	PermManageProjects  Permission = "projects.manage"
	PermViewProjects    Permission = "projects.view"
)

// Allowed reports whether a role may perform an operation. The switch is
// exhaustive over the permission enum; adding a permission without a case
// here denies it for everyone, which is the safe default.
func Allowed(role account.Role, perm Permission) bool {
	switch perm {
	case PermManageAccounts, PermManageEmployees, PermRunPayroll:
		return role == account.RoleHR

	case PermApproveLeave:
		return role == account.RoleManager || role == account.RoleHR

	case PermViewEmployees, PermViewProjects:
		return role == account.RoleManager || role == account.RoleHR

	case PermManageProjects:
		return role == account.RoleManager || role == account.RoleHR

	case PermRequestLeave, PermViewPayroll:
		// every authenticated role
		return role.IsValid()

	default:
		return false
	}
}

// Self reports whether the caller owns the resource. This is identity
// equality on normalized emails, not a role decision; HR does not get it
// for free here and must pass a role check instead.
func Self(claimsEmail, ownerEmail string) bool {
	if claimsEmail == "" || ownerEmail == "" {
		return false
	}

	return account.NormalizeEmail(claimsEmail) == account.NormalizeEmail(ownerEmail)
}
