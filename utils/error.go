package utils

import "errors"

// ErrorRecordNotFound is the shared not-found sentinel. Remote 404s unwrap
// to it, so callers can errors.Is against one value regardless of which
// system reported the miss.
var ErrorRecordNotFound = errors.New("record not found")

// ErrorPanic aborts on startup-critical failures (migrations, wiring).
func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
