// Package identity is the boundary to the identity provider: email/password
// signup and sign-in, sign-out, and auth-state change notification.
//
// The rest of the application treats the current user as a value passed
// into each operation; nothing reads an ambient "who is logged in" global.
// Subscribe exists for the few places that genuinely need to react to
// sign-in/sign-out (session cookie handling), and returns a cancel func.
package identity

import "errors"

// Handle identifies an authenticated user: the opaque provider ID (which is
// also the key of the user's profile document) and the verified email.
type Handle struct {
	ID    string
	Email string
}

// Code classifies identity failures the way the provider reports them.
// UserMessage turns a code into the string shown to the user.
type Code string

const (
	CodeInvalidCredential Code = "invalid-credential"
	CodeInvalidEmail      Code = "invalid-email"
	CodeUserNotFound      Code = "user-not-found"
	CodeWrongPassword     Code = "wrong-password"
	CodeEmailInUse        Code = "email-already-in-use"
	CodeWeakPassword      Code = "weak-password"
	CodeMissingPassword   Code = "missing-password"
	CodeNetwork           Code = "network-request-failed"
)

// Error is a coded identity failure.
type Error struct {
	Code Code
	Err  error // optional underlying cause
}

func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Code) + ": " + e.Err.Error()
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// CodeOf extracts the identity error code from an error chain.
// Returns "" when err is not an identity error.
func CodeOf(err error) Code {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Code
	}
	return ""
}

// UserMessage maps an identity failure to the string shown in the auth
// error banner. Unknown failures get the generic fallback; raw provider
// errors never reach the user.
func UserMessage(err error) string {
	switch CodeOf(err) {
	case CodeInvalidCredential:
		return "Wrong email or password."
	case CodeInvalidEmail:
		return "Please enter a valid email address."
	case CodeUserNotFound:
		return "No account found with that email."
	case CodeWrongPassword:
		return "Incorrect password."
	case CodeEmailInUse:
		return "Email is already in use."
	case CodeWeakPassword:
		return "Password too weak (min 6 characters)."
	case CodeMissingPassword:
		return "Password cannot be empty."
	case CodeNetwork:
		return "Network error. Try again."
	default:
		return "Something went wrong. Please try again."
	}
}
