package authz

import (
	"testing"

	"github.com/hrstack/authhub/internal/domain/account"
)

func TestAllowed_Table(t *testing.T) {
	cases := []struct {
		role account.Role
		perm Permission
		want bool
	}{
		{account.RoleHR, PermManageEmployees, true},
		{account.RoleManager, PermManageEmployees, false},
		{account.RoleEmployee, PermManageEmployees, false},

		{account.RoleHR, PermApproveLeave, true},
		{account.RoleManager, PermApproveLeave, true},
		{account.RoleEmployee, PermApproveLeave, false},

		{account.RoleHR, PermRunPayroll, true},
		{account.RoleManager, PermRunPayroll, false},

		{account.RoleEmployee, PermRequestLeave, true},
		{account.RoleEmployee, PermViewPayroll, true},

		{account.RoleEmployee, PermViewEmployees, false},
		{account.RoleManager, PermViewEmployees, true},
	}

	for _, c := range cases {
		if got := Allowed(c.role, c.perm); got != c.want {
			t.Errorf("Allowed(%s, %s) = %v, want %v", c.role, c.perm, got, c.want)
		}
	}
}

func TestAllowed_UnknownInputsDeny(t *testing.T) {
	if Allowed(account.Role("SUPERUSER"), PermRequestLeave) {
		t.Error("unknown role was allowed")
	}
	if Allowed(account.RoleHR, Permission("nonexistent.op")) {
		t.Error("unknown permission was allowed")
	}
}

func TestSelf(t *testing.T) {
	if !Self("JANE@x.com", "jane@x.com") {
		t.Error("normalized emails should match")
	}
	if Self("jane@x.com", "john@x.com") {
		t.Error("different owners matched")
	}
	if Self("", "jane@x.com") || Self("jane@x.com", "") {
		t.Error("empty email matched")
	}
}
