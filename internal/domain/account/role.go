package account

// Role is a closed enum. Dispatch on it is an exhaustive switch, never a
// string-keyed lookup table.
type Role string

const (
	RoleEmployee Role = "EMPLOYEE"
	RoleManager  Role = "MANAGER"
	RoleHR       Role = "HR"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleEmployee, RoleManager, RoleHR:
		return true
	default:
		return false
	}
}

// ParseRole maps user input onto the enum. Unknown values fail; the privileged
// HR role parses fine here and is rejected separately by RegisterableRole.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleEmployee:
		return RoleEmployee, nil
	case RoleManager:
		return RoleManager, nil
	case RoleHR:
		return RoleHR, nil
	default:
		return "", ErrInvalidRole
	}
}

// RegisterableRole parses a role for the public registration path. HR is never
// self-service; those accounts come from the startup seed.
func RegisterableRole(s string) (Role, error) {
	r, err := ParseRole(s)

	if err != nil {
		return "", err
	}

	if r == RoleHR {
		return "", ErrInvalidRole
	}

	return r, nil
}
