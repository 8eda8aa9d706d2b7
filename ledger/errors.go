package ledger

import (
	"errors"
	"strings"

	"github.com/nspcc-dev/neo-go/pkg/neorpc"
)

var (
	// ErrSignerUnavailable is returned when the signing credential can not be
	// loaded or can not sign.
	ErrSignerUnavailable = errors.New("signer unavailable")
	// ErrNonceFetch is returned when the account nonce can not be read.
	ErrNonceFetch = errors.New("nonce fetch failed")
	// ErrStaleNonce is returned when the nonce is already taken by another
	// transaction of the account.
	ErrStaleNonce = errors.New("stale nonce")
	// ErrRejected is returned when the node refuses the transaction.
	ErrRejected = errors.New("transaction rejected")
	// ErrNodeUnavailable is returned when the node can not be asked to
	// validate or price the transaction.
	ErrNodeUnavailable = errors.New("ledger node unavailable")
)

// JSON-RPC error codes of a Neo N3 node signalling that the transaction is
// already known.
const (
	codeLegacyError   = -500
	codeAlreadyExists = -501
	codeAlreadyInPool = -503
)

// isNonceConflict reports whether err returned by the node means another
// transaction with the same nonce got there first.
func isNonceConflict(err error) bool {
	var rpcErr *neorpc.Error
	if !errors.As(err, &rpcErr) {
		return false
	}

	switch rpcErr.Code {
	case codeAlreadyExists, codeAlreadyInPool:
		return true
	case codeLegacyError:
		// pre-3.6 nodes report everything with the generic code
		msg := strings.ToLower(rpcErr.Message + " " + rpcErr.Data)
		return strings.Contains(msg, "already exists") || strings.Contains(msg, "already in the pool")
	default:
		return false
	}
}

// isUnknownTransaction reports whether err returned by the node means it has
// no record of the requested transaction.
func isUnknownTransaction(err error) bool {
	if errors.Is(err, neorpc.ErrUnknownTransaction) || errors.Is(err, neorpc.ErrUnknownScriptContainer) {
		return true
	}

	var rpcErr *neorpc.Error
	if !errors.As(err, &rpcErr) || rpcErr.Code != neorpc.ErrCompatGeneric.Code {
		return false
	}

	// nodes predating the dedicated codes only say it in the text
	msg := strings.ToLower(rpcErr.Message + " " + rpcErr.Data)
	return strings.Contains(msg, "unknown transaction") || strings.Contains(msg, "unknown script container")
}

// isRPCResponse reports whether err is a well-formed node response, i.e. the
// transaction was seen and definitely not accepted.
func isRPCResponse(err error) bool {
	var rpcErr *neorpc.Error
	return errors.As(err, &rpcErr)
}

// faultMentionsNonce reports whether a FAULT exception raised by the
// contract is the nonce check.
func faultMentionsNonce(exception string) bool {
	return strings.Contains(strings.ToLower(exception), "nonce")
}
