package project

import "fmt"

// InvariantViolationError is returned when a membership mutation would leave a
// non-empty project without any member in a protected role. The operation is
// rejected and has no side effect; Role names the constraint that failed.
type InvariantViolationError struct {
	Role string
}

func (err *InvariantViolationError) Error() string {
	return fmt.Sprintf("operation would leave the project without any %s", err.Role)
}

func roleCounts(members []Member) map[string]int {
	counts := make(map[string]int, len(members))
	for _, m := range members {
		counts[m.Role]++
	}
	return counts
}

// checkRemove simulates removing userID from members and rejects the removal
// if a protected role count would drop below one.
func checkRemove(members []Member, userID string) error {
	counts := roleCounts(members)
	for _, m := range members {
		if m.UserID == userID {
			counts[m.Role]--
			break
		}
	}
	// a project emptied entirely keeps no protected-role requirement
	if total := len(members) - 1; total <= 0 {
		return nil
	}
	for _, role := range ProtectedRoles {
		if counts[role] < 1 {
			return &InvariantViolationError{Role: role}
		}
	}
	return nil
}

// checkChangeRole simulates changing userID's role to newRole, accounting for
// the member leaving its old role count and entering the new one.
func checkChangeRole(members []Member, userID, newRole string) error {
	counts := roleCounts(members)
	for _, m := range members {
		if m.UserID == userID {
			counts[m.Role]--
			break
		}
	}
	counts[newRole]++
	for _, role := range ProtectedRoles {
		if counts[role] < 1 {
			return &InvariantViolationError{Role: role}
		}
	}
	return nil
}
