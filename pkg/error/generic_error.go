package error

import "net/http"

// GenericError is an error that knows how it is rendered by the REST layer.
type GenericError interface {
	Error() string
	ErrCode() string
	StatusCode() int
}

type ValidationError string

func (err ValidationError) Error() string {
	return string(err)
}

func (err ValidationError) ErrCode() string {
	return "VALIDATION_ERROR"
}

func (err ValidationError) StatusCode() int {
	return http.StatusBadRequest
}

// AuthError means the user must log in (again) before retrying.
type AuthError string

func (err AuthError) Error() string {
	return string(err)
}

func (err AuthError) ErrCode() string {
	return "AUTH_REQUIRED"
}

func (err AuthError) StatusCode() int {
	return http.StatusUnauthorized
}

// PasswordRequiredError asks the client for the two-step verification password.
type PasswordRequiredError string

func (err PasswordRequiredError) Error() string {
	return string(err)
}

func (err PasswordRequiredError) ErrCode() string {
	return "PASSWORD_REQUIRED"
}

func (err PasswordRequiredError) StatusCode() int {
	return http.StatusPreconditionRequired
}

type InternalServerError string

func (err InternalServerError) Error() string {
	return string(err)
}

func (err InternalServerError) ErrCode() string {
	return "INTERNAL_SERVER_ERROR"
}

func (err InternalServerError) StatusCode() int {
	return http.StatusInternalServerError
}
