// Package failure defines the error taxonomy shared by the registration
// components.
//
// Every component reports its failures as *Error carrying a Kind. Callers
// (the HTTP layer, the CLI) use KindOf to pick a status and Kind.ClientFault
// to tell client-caused failures from dependency failures.
package failure

import (
	"context"
	"errors"
)

// Kind is a machine-readable failure class.
type Kind uint8

const (
	// KindUnknown is returned by KindOf for errors outside the taxonomy.
	KindUnknown Kind = iota
	// KindInput is an empty or unreadable upload.
	KindInput
	// KindDependency is an unreachable or misbehaving artifact store.
	KindDependency
	// KindClassification is a failed or malformed classification.
	KindClassification
	// KindLedgerNonce is a transient nonce failure, safe to retry with a
	// fresh nonce.
	KindLedgerNonce
	// KindLedgerRejected is a transaction refused by the ledger node.
	KindLedgerRejected
	// KindSigner is an unusable signing credential.
	KindSigner
	// KindTimeout is an expired run deadline.
	KindTimeout
)

var kindNames = [...]string{
	KindUnknown:        "unknown",
	KindInput:          "input",
	KindDependency:     "dependency",
	KindClassification: "classification",
	KindLedgerNonce:    "ledger_nonce",
	KindLedgerRejected: "ledger_rejected",
	KindSigner:         "signer_unavailable",
	KindTimeout:        "timeout",
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return kindNames[KindUnknown]
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// ClientFault reports whether failures of this kind are caused by the
// caller's input rather than by a dependency.
func (k Kind) ClientFault() bool {
	return k == KindInput
}

// Retryable reports whether the caller may repeat the whole run without
// external remediation.
func (k Kind) Retryable() bool {
	switch k {
	case KindDependency, KindLedgerNonce, KindTimeout:
		return true
	default:
		return false
	}
}

// Error is a classified component failure.
type Error struct {
	Kind Kind
	// Op names the failed operation, e.g. "artifact.Store".
	Op  string
	Err error
}

// New returns an *Error of the given kind.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.String()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of the outermost *Error in err's chain. Context
// deadline expiry without a classified cause is KindTimeout.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	return KindUnknown
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
