package project

import (
	"errors"
	"testing"
)

func members(pairs ...string) []Member {
	// pairs: userID, role, userID, role, ...
	ms := make([]Member, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		ms = append(ms, Member{ProjectID: "p1", UserID: pairs[i], Role: pairs[i+1]})
	}
	return ms
}

func wantViolation(t *testing.T, err error, role string) {
	t.Helper()
	var ive *InvariantViolationError
	if !errors.As(err, &ive) {
		t.Fatalf("got err = %v, want *InvariantViolationError", err)
	}
	if ive.Role != role {
		t.Errorf("violated role = %q, want %q", ive.Role, role)
	}
}

func Test_checkRemove(t *testing.T) {
	tests := []struct {
		name     string
		members  []Member
		remove   string
		wantRole string // empty = allowed
	}{
		{
			name:     "removing last supervisor",
			members:  members("a", RoleSupervisor, "b", RoleGroupLeader, "c", RoleStudent),
			remove:   "a",
			wantRole: RoleSupervisor,
		},
		{
			name:     "removing last group leader",
			members:  members("a", RoleSupervisor, "b", RoleGroupLeader, "c", RoleStudent),
			remove:   "b",
			wantRole: RoleGroupLeader,
		},
		{
			name:    "removing a student",
			members: members("a", RoleSupervisor, "b", RoleGroupLeader, "c", RoleStudent),
			remove:  "c",
		},
		{
			name:    "removing one of two supervisors",
			members: members("a", RoleSupervisor, "a2", RoleSupervisor, "b", RoleGroupLeader),
			remove:  "a",
		},
		{
			name:    "removing the sole member empties the project",
			members: members("a", RoleSupervisor),
			remove:  "a",
		},
		{
			name:    "removing one of two leaves a single member",
			members: members("a", RoleSupervisor, "b", RoleGroupLeader),
			remove:  "b",
			// one member left: still non-empty, so both protected roles required
			wantRole: RoleGroupLeader,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkRemove(tt.members, tt.remove)
			if tt.wantRole == "" {
				if err != nil {
					t.Errorf("checkRemove() = %v, want nil", err)
				}
				return
			}
			wantViolation(t, err, tt.wantRole)
		})
	}
}

func Test_checkChangeRole(t *testing.T) {
	tests := []struct {
		name     string
		members  []Member
		user     string
		newRole  string
		wantRole string
	}{
		{
			name:     "demoting last supervisor",
			members:  members("a", RoleSupervisor, "b", RoleGroupLeader),
			user:     "a",
			newRole:  RoleStudent,
			wantRole: RoleSupervisor,
		},
		{
			name:     "last supervisor becomes group leader",
			members:  members("a", RoleSupervisor, "b", RoleGroupLeader),
			user:     "a",
			newRole:  RoleGroupLeader,
			wantRole: RoleSupervisor,
		},
		{
			name:     "last group leader becomes supervisor",
			members:  members("a", RoleSupervisor, "b", RoleGroupLeader),
			user:     "b",
			newRole:  RoleSupervisor,
			wantRole: RoleGroupLeader,
		},
		{
			name:    "demoting one of two supervisors",
			members: members("a", RoleSupervisor, "a2", RoleSupervisor, "b", RoleGroupLeader),
			user:    "a",
			newRole: RoleStudent,
		},
		{
			name:    "promoting a student",
			members: members("a", RoleSupervisor, "b", RoleGroupLeader, "c", RoleStudent),
			user:    "c",
			newRole: RoleGroupLeader,
		},
		{
			// swap in one direction: the departing role is what breaks
			name:    "student to supervisor",
			members: members("a", RoleSupervisor, "b", RoleGroupLeader, "c", RoleStudent),
			user:    "c",
			newRole: RoleSupervisor,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkChangeRole(tt.members, tt.user, tt.newRole)
			if tt.wantRole == "" {
				if err != nil {
					t.Errorf("checkChangeRole() = %v, want nil", err)
				}
				return
			}
			wantViolation(t, err, tt.wantRole)
		})
	}
}
