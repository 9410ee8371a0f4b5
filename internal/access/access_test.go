package access

import "testing"

func TestCan(t *testing.T) {
	cases := []struct {
		name   string
		role   Role
		action Action
		allow  bool
	}{
		{name: "member view", role: RoleMember, action: ActionView, allow: true},
		{name: "member edit", role: RoleMember, action: ActionEdit, allow: true},
		{name: "member manage", role: RoleMember, action: ActionManage, allow: false},
		{name: "owner view", role: RoleOwner, action: ActionView, allow: true},
		{name: "owner manage", role: RoleOwner, action: ActionManage, allow: true},
		{name: "unknown role", role: Role("guest"), action: ActionView, allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Can(tc.role, tc.action); got != tc.allow {
				t.Fatalf("Can(%q, %q) = %v, want %v", tc.role, tc.action, got, tc.allow)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	if Normalize("owner") != RoleOwner {
		t.Fatal("owner should normalize to RoleOwner")
	}
	if Normalize("") != RoleMember {
		t.Fatal("empty role should normalize to RoleMember")
	}
	if Normalize("superuser") != RoleMember {
		t.Fatal("unknown role should normalize to RoleMember")
	}
}
