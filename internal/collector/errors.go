package collector

import (
	"errors"
	"io/fs"
)

// notImplemented is the message gopsutil uses for counters it does not
// support on the running platform. The sentinel itself lives in an internal
// package and cannot be matched with errors.Is.
const notImplemented = "not implemented yet"

// IsProviderUnavailable reports whether err means the provider does not
// support the requested counter on this platform.
func IsProviderUnavailable(err error) bool {
	for ; err != nil; err = errors.Unwrap(err) {
		if err.Error() == notImplemented {
			return true
		}
	}
	return false
}

// IsAccessDenied reports whether err is an OS permission failure.
func IsAccessDenied(err error) bool {
	return errors.Is(err, fs.ErrPermission)
}

// ErrorClass returns a short label for logging err.
func ErrorClass(err error) string {
	switch {
	case err == nil:
		return "none"
	case IsProviderUnavailable(err):
		return "provider_unavailable"
	case IsAccessDenied(err):
		return "access_denied"
	default:
		return "other"
	}
}
