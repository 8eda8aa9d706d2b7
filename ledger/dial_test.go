package ledger

import (
	"errors"
	"math/big"
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/neorpc"
	"github.com/nspcc-dev/neo-go/pkg/neorpc/result"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/trigger"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/neo-go/pkg/vm/vmstate"
	"github.com/nspcc-dev/neofs-authenticity/failure"
	"github.com/nspcc-dev/neofs-authenticity/fingerprint"
	"github.com/stretchr/testify/require"
)

type logFunc func(util.Uint256) (*result.ApplicationLog, error)

func (f logFunc) GetApplicationLog(h util.Uint256, _ *trigger.Type) (*result.ApplicationLog, error) {
	return f(h)
}

func logErr(err error) logFunc {
	return func(util.Uint256) (*result.ApplicationLog, error) { return nil, err }
}

func TestConfirmation_NotPersisted(t *testing.T) {
	for _, err := range []error{
		neorpc.ErrUnknownTransaction,
		neorpc.NewError(neorpc.ErrUnknownScriptContainerCode, "Unknown script container", ""),
		&neorpc.Error{Code: neorpc.ErrCompatGeneric.Code, Message: "Unknown transaction"},
	} {
		_, cerr := confirmation(logErr(err), util.Uint256{1})
		require.ErrorIs(t, cerr, ErrNotPersisted, err)
		require.False(t, failure.Is(cerr, failure.KindDependency))
	}

	_, err := confirmation(logFunc(func(util.Uint256) (*result.ApplicationLog, error) {
		return &result.ApplicationLog{Container: util.Uint256{1}}, nil
	}), util.Uint256{1})
	require.ErrorIs(t, err, ErrNotPersisted)
}

func TestConfirmation_NodeFailure(t *testing.T) {
	for _, err := range []error{
		errors.New("connection refused"),
		&neorpc.Error{Code: neorpc.ErrCompatGeneric.Code, Message: "RPC error", Data: "database is closed"},
		neorpc.NewInternalServerError("boom"),
	} {
		_, cerr := confirmation(logErr(err), util.Uint256{1})
		require.NotErrorIs(t, cerr, ErrNotPersisted, err)
		require.ErrorIs(t, cerr, ErrNodeUnavailable)
		require.True(t, failure.Is(cerr, failure.KindDependency))
	}
}

func TestConfirmation(t *testing.T) {
	fp := fingerprint.Of([]byte("hello"))
	submitter := util.Uint160{1, 2, 3}
	h := util.Uint256{0xde, 0xad}

	c, err := confirmation(logFunc(func(got util.Uint256) (*result.ApplicationLog, error) {
		require.Equal(t, h, got)
		return &result.ApplicationLog{
			Container:     h,
			IsTransaction: true,
			Executions: []state.Execution{{
				Trigger:     trigger.Application,
				VMState:     vmstate.Halt,
				GasConsumed: 1_234_567,
				Events: []state.NotificationEvent{
					{ScriptHash: testContract, Name: "Transfer", Item: stackitem.NewArray(nil)},
					{ScriptHash: testContract, Name: "Registered", Item: stackitem.NewArray([]stackitem.Item{
						stackitem.NewByteArray(fp.Bytes()),
						stackitem.NewByteArray(submitter.BytesBE()),
						stackitem.NewBigInteger(big.NewInt(7)),
					})},
				},
			}},
		}, nil
	}), h)
	require.NoError(t, err)
	require.True(t, c.Halted())
	require.EqualValues(t, 1_234_567, c.GasConsumed)
	require.Empty(t, c.FaultException)
	require.Len(t, c.Events, 1)
	require.Equal(t, fp.Bytes(), c.Events[0].Fingerprint)
	require.Equal(t, submitter, c.Events[0].Submitter)
	require.EqualValues(t, 7, c.Events[0].Nonce.Int64())

	c, err = confirmation(logFunc(func(util.Uint256) (*result.ApplicationLog, error) {
		return &result.ApplicationLog{
			Container: h,
			Executions: []state.Execution{{
				Trigger:        trigger.Application,
				VMState:        vmstate.Fault,
				FaultException: "stale nonce",
			}},
		}, nil
	}), h)
	require.NoError(t, err)
	require.False(t, c.Halted())
	require.Equal(t, "stale nonce", c.FaultException)
	require.Empty(t, c.Events)
}

func TestIsUnknownTransaction(t *testing.T) {
	require.False(t, isUnknownTransaction(errors.New("unknown transaction")))
	require.True(t, isUnknownTransaction(neorpc.ErrUnknownTransaction))
	require.False(t, isUnknownTransaction(neorpc.ErrUnknownBlock))
	require.True(t, isUnknownTransaction(&neorpc.Error{Code: -100, Data: "Unknown script container"}))
	require.False(t, isUnknownTransaction(&neorpc.Error{Code: -100, Message: "RPC error"}))
}
