package identity

import "errors"

// Error is a provider-defined failure. Message is shown to users verbatim.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

var (
	ErrInvalidCredentials = &Error{Code: "invalid_credentials", Message: "Invalid login credentials"}
	ErrEmailNotConfirmed  = &Error{Code: "email_not_confirmed", Message: "Email not confirmed"}
	ErrUserExists         = &Error{Code: "user_already_exists", Message: "User already registered"}
	ErrUsernameTaken      = &Error{Code: "username_taken", Message: "Username already taken"}
	ErrWeakPassword       = &Error{Code: "weak_password", Message: "Password should be at least 6 characters."}
	ErrInvalidEmail       = &Error{Code: "validation_failed", Message: "Unable to validate email address: invalid format"}
	ErrSessionMissing     = &Error{Code: "session_missing", Message: "Auth session missing!"}
	ErrInvalidToken       = &Error{Code: "bad_jwt", Message: "Invalid or expired token"}
	ErrInvalidRefresh     = &Error{Code: "refresh_token_not_found", Message: "Invalid Refresh Token: Refresh Token Not Found"}
	ErrInvalidCode        = &Error{Code: "bad_code_verifier", Message: "Invalid or expired recovery code"}
	ErrInvalidVerify      = &Error{Code: "otp_expired", Message: "Email link is invalid or has expired"}
	ErrUsernameNotFound   = &Error{Code: "username_not_found", Message: "Username not found"}
)

// Message extracts the user-facing text of a provider error.
func Message(err error, fallback string) string {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Message
	}
	return fallback
}
