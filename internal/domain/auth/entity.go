package auth

import (
	"strconv"
)

// Role is issued by the external identity provider in the "role" claim.
type Role string

const (
	RoleOwner    Role = "owner"
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
)

// Principal is the caller identity read from a verified access token.
type Principal struct {
	UserID     string
	EmployeeID *int64
	Role       Role
}

func (p Principal) IsManager() bool {
	return p.Role == RoleManager || p.Role == RoleOwner
}

// CanSee reports whether the caller may read the attendance of employeeID.
func (p Principal) CanSee(employeeID int64) bool {
	if p.IsManager() {
		return true
	}
	return p.EmployeeID != nil && *p.EmployeeID == employeeID
}

// PrincipalFromClaims reads user_id, employee_id and role. employee_id may be
// encoded as a JSON number or a string depending on the issuer.
func PrincipalFromClaims(claims map[string]interface{}) (Principal, error) {
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return Principal{}, ErrInvalidToken
	}
	role, _ := claims["role"].(string)

	p := Principal{UserID: userID, Role: Role(role)}
	switch v := claims["employee_id"].(type) {
	case float64:
		id := int64(v)
		p.EmployeeID = &id
	case int64:
		p.EmployeeID = &v
	case string:
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			p.EmployeeID = &id
		}
	}
	return p, nil
}
