package tuya

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthentication means the provider rejected our credentials or
	// signature, or the token was still invalid after a forced refresh.
	ErrAuthentication = errors.New("tuya: authentication failed")

	// ErrDeviceNotFound means the device id is unknown to the provider or
	// not linked to these credentials.
	ErrDeviceNotFound = errors.New("tuya: device not found")

	// ErrCommandRejected means the provider declined the command itself.
	ErrCommandRejected = errors.New("tuya: command rejected")
)

// Tuya OpenAPI result codes this client acts on.
const (
	codeSignInvalid        = 1004
	codeTokenExpired       = 1010
	codeTokenInvalid       = 1011
	codeTokenStatusInvalid = 1012
	codeRequestTimeInvalid = 1013
	codePermissionDenied   = 1106
)

// APIError is a Tuya response with success=false.
type APIError struct {
	Code int
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tuya api error %d: %s", e.Code, e.Msg)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrAuthentication:
		return e.Code == codeSignInvalid || e.Code == codeRequestTimeInvalid || isTokenCode(e.Code)
	case ErrDeviceNotFound:
		// The cloud reports an unknown or unlinked device id as a
		// permission failure.
		return e.Code == codePermissionDenied
	}
	return false
}

func isTokenCode(code int) bool {
	return code == codeTokenExpired || code == codeTokenInvalid || code == codeTokenStatusInvalid
}

// NetworkError is a transport-level failure: the request never produced a
// usable response.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("tuya: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }
