package rddapp

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"

	"google.golang.org/api/googleapi"
)

// CredentialsURL is where users download the OAuth client secret.
const CredentialsURL = "https://console.cloud.google.com/apis/credentials"

var (
	// ErrCredentialsNotFound is returned when the OAuth client secret file is
	// missing. It wraps fs.ErrNotExist.
	ErrCredentialsNotFound = fmt.Errorf("client secret file not found: %w", fs.ErrNotExist)

	// ErrConsentTimeout is returned when the user did not finish the browser
	// consent in time.
	ErrConsentTimeout = errors.New("timed out waiting for authorization")
)

// StepError tells which provisioning step failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// apiStatus names the class of a Google API failure for logs.
func apiStatus(err error) string {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return "transport"
	}
	switch gerr.Code {
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not found"
	case http.StatusTooManyRequests:
		return "rate limited"
	}
	if text := http.StatusText(gerr.Code); text != "" {
		return text
	}
	return fmt.Sprintf("http %d", gerr.Code)
}
