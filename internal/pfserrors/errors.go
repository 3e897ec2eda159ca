// Package pfserrors classifies errors returned across the pfs core
// (metadata service, client coherence agent, storage node client) into
// the kinds named by the protocol: InvalidArgument, NotFound,
// AlreadyExists, Busy, PermissionDenied, Transport, and Conflict.
//
// Each kind wraps an underlying cause and remains detectable with
// errors.Is/errors.As after being wrapped again with fmt.Errorf("%w", ...).
package pfserrors

import "errors"

type kind int

const (
	kindInvalidArgument kind = iota
	kindNotFound
	kindAlreadyExists
	kindBusy
	kindPermissionDenied
	kindTransport
	kindConflict
)

type wrapped struct {
	kind  kind
	cause error
}

func (w *wrapped) Error() string {
	return w.cause.Error()
}

func (w *wrapped) Unwrap() error {
	return w.cause
}

// Cause returns the error this one wraps.
func (w *wrapped) Cause() error {
	return w.cause
}

func newf(k kind, cause error) error {
	return &wrapped{kind: k, cause: cause}
}

func InvalidArgument(cause error) error   { return newf(kindInvalidArgument, cause) }
func NotFound(cause error) error          { return newf(kindNotFound, cause) }
func AlreadyExists(cause error) error     { return newf(kindAlreadyExists, cause) }
func Busy(cause error) error              { return newf(kindBusy, cause) }
func PermissionDenied(cause error) error  { return newf(kindPermissionDenied, cause) }
func Transport(cause error) error         { return newf(kindTransport, cause) }
func Conflict(cause error) error          { return newf(kindConflict, cause) }

func is(err error, k kind) bool {
	var w *wrapped
	for err != nil {
		if errors.As(err, &w) {
			if w.kind == k {
				return true
			}
			err = w.cause
			continue
		}
		return false
	}
	return false
}

func IsInvalidArgument(err error) bool  { return is(err, kindInvalidArgument) }
func IsNotFound(err error) bool         { return is(err, kindNotFound) }
func IsAlreadyExists(err error) bool    { return is(err, kindAlreadyExists) }
func IsBusy(err error) bool             { return is(err, kindBusy) }
func IsPermissionDenied(err error) bool { return is(err, kindPermissionDenied) }
func IsTransport(err error) bool        { return is(err, kindTransport) }
func IsConflict(err error) bool         { return is(err, kindConflict) }
