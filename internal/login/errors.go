package login

import "errors"

// Fatal errors abort the run before any account is attempted.
var (
	ErrCredentialSource = errors.New("credential source")
	ErrBrowserLaunch    = errors.New("browser launch failed")
)

// Per-account errors become Failure results and never stop the batch.
var (
	ErrTimeout        = errors.New("timed out")
	ErrFieldNotFound  = errors.New("form field not found")
	ErrSubmitNotFound = errors.New("submit control not found")
	ErrNotLoggedIn    = errors.New("invalid credentials or no redirect to the panel home page")
)
