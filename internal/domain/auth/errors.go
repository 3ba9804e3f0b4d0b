package auth

import "errors"

var (
	ErrInvalidToken          = errors.New("invalid or expired token")
	ErrManagerAccessRequired = errors.New("manager access required")
	ErrEmployeeAccessDenied  = errors.New("access to another employee's attendance is not allowed")
)
