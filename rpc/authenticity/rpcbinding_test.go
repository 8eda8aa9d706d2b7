package authenticity

import (
	"errors"
	"math/big"
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/core/transaction"
	"github.com/nspcc-dev/neo-go/pkg/neorpc/result"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/stretchr/testify/require"
)

type testInv struct {
	err error
	res *result.Invoke

	contract util.Uint160
	method   string
	params   []any
}

func (t *testInv) Call(contract util.Uint160, operation string, params ...any) (*result.Invoke, error) {
	t.contract, t.method, t.params = contract, operation, params
	return t.res, t.err
}

type testAct struct {
	testInv

	script []byte
	tx     *transaction.Transaction
	err    error
}

func (t *testAct) MakeRun(script []byte) (*transaction.Transaction, error) {
	t.script = script
	return t.tx, t.err
}

func (t *testAct) MakeUnsignedRun(script []byte, _ []transaction.Attribute) (*transaction.Transaction, error) {
	t.script = script
	return t.tx, t.err
}

func (t *testAct) SendRun(script []byte) (util.Uint256, uint32, error) {
	t.script = script
	return util.Uint256{1, 2, 3}, 42, t.err
}

func halt(items ...stackitem.Item) *result.Invoke {
	return &result.Invoke{State: "HALT", Stack: items}
}

func recordItem(fp []byte) stackitem.Item {
	return stackitem.NewStruct([]stackitem.Item{
		stackitem.Make(fp),
		stackitem.Make("bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi"),
		stackitem.Make(87),
		stackitem.Make(true),
		stackitem.Make(util.Uint160{9, 8, 7}.BytesBE()),
		stackitem.Make(5),
	})
}

func TestNonceOf(t *testing.T) {
	h := util.Uint160{1, 2, 3}
	acc := util.Uint160{4, 5, 6}

	ti := new(testInv)
	r := NewReader(ti, h)
	require.Equal(t, h, r.Hash())

	ti.err = errors.New("bad")
	_, err := r.NonceOf(acc)
	require.Error(t, err)

	ti.err = nil
	ti.res = &result.Invoke{State: "FAULT", FaultException: "oops"}
	_, err = r.NonceOf(acc)
	require.Error(t, err)

	ti.res = halt(stackitem.Make(17))
	n, err := r.NonceOf(acc)
	require.NoError(t, err)
	require.EqualValues(t, 17, n.Int64())
	require.Equal(t, h, ti.contract)
	require.Equal(t, MethodNonceOf, ti.method)
	require.Equal(t, []any{acc}, ti.params)
}

func TestVersion(t *testing.T) {
	ti := &testInv{res: halt(stackitem.Make(1))}

	v, err := NewReader(ti, util.Uint160{}).Version()
	require.NoError(t, err)
	require.EqualValues(t, 1, v.Int64())
	require.Equal(t, MethodVersion, ti.method)
}

func TestCount(t *testing.T) {
	fp := make([]byte, 32)
	fp[0] = 0xaa

	ti := &testInv{res: halt(stackitem.Make(0))}
	r := NewReader(ti, util.Uint160{1})

	n, err := r.Count(fp)
	require.NoError(t, err)
	require.Zero(t, n.Sign())
	require.Equal(t, MethodCount, ti.method)
	require.Equal(t, []any{fp}, ti.params)

	ti.res = halt(stackitem.Make(3))
	n, err = r.Count(fp)
	require.NoError(t, err)
	require.EqualValues(t, 3, n.Int64())

	ti.res = &result.Invoke{State: "FAULT", FaultException: "invalid fingerprint length"}
	_, err = r.Count(fp[:31])
	require.ErrorContains(t, err, "invalid fingerprint length")
}

func TestGetRecord(t *testing.T) {
	fp := make([]byte, 32)
	fp[0] = 0xaa

	ti := new(testInv)
	r := NewReader(ti, util.Uint160{1})

	ti.res = halt(stackitem.Null{})
	_, err := r.GetRecord(fp)
	require.ErrorIs(t, err, ErrNoRecord)

	ti.res = halt(stackitem.Make(100500))
	_, err = r.GetRecord(fp)
	require.Error(t, err)

	ti.res = halt(stackitem.NewStruct([]stackitem.Item{stackitem.Make(fp)}))
	_, err = r.GetRecord(fp)
	require.Error(t, err)

	ti.res = halt(recordItem(fp))
	rec, err := r.GetRecord(fp)
	require.NoError(t, err)
	require.Equal(t, fp, rec.Fingerprint)
	require.Equal(t, "bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi", rec.ArtifactAddress)
	require.EqualValues(t, 87, rec.Score.Int64())
	require.True(t, rec.IsAuthentic)
	require.Equal(t, util.Uint160{9, 8, 7}, rec.Submitter)
	require.EqualValues(t, 5, rec.Nonce.Int64())
	require.Equal(t, []any{fp}, ti.params)
}

func TestRecordFromStackItemInvalidString(t *testing.T) {
	var rec Record
	err := rec.FromStackItem(stackitem.NewStruct([]stackitem.Item{
		stackitem.Make([]byte{1}),
		stackitem.Make([]byte{0xff, 0xfe}),
		stackitem.Make(1),
		stackitem.Make(false),
		stackitem.Make(util.Uint160{}.BytesBE()),
		stackitem.Make(0),
	}))
	require.ErrorContains(t, err, "ArtifactAddress")
}

func TestRegisterContent(t *testing.T) {
	h := util.Uint160{1, 2, 3}
	fp := make([]byte, 32)

	want, err := RegisterContentScript(h, fp, "Qm", big.NewInt(87), true, big.NewInt(3))
	require.NoError(t, err)
	require.NotEmpty(t, want)

	ta := &testAct{tx: transaction.New([]byte{1}, 0)}
	c := New(ta, h)

	txHash, vub, err := c.RegisterContent(fp, "Qm", big.NewInt(87), true, big.NewInt(3))
	require.NoError(t, err)
	require.Equal(t, util.Uint256{1, 2, 3}, txHash)
	require.EqualValues(t, 42, vub)
	require.Equal(t, want, ta.script)

	tx, err := c.RegisterContentTransaction(fp, "Qm", big.NewInt(87), true, big.NewInt(3))
	require.NoError(t, err)
	require.Equal(t, ta.tx, tx)

	ta.script = nil
	tx, err = c.RegisterContentUnsigned(fp, "Qm", big.NewInt(87), true, big.NewInt(3))
	require.NoError(t, err)
	require.Equal(t, ta.tx, tx)
	require.Equal(t, want, ta.script)

	ta.err = errors.New("insufficient funds")
	_, _, err = c.RegisterContent(fp, "Qm", big.NewInt(87), true, big.NewInt(3))
	require.Error(t, err)
}

func TestRegisteredEventsFromApplicationLog(t *testing.T) {
	_, err := RegisteredEventsFromApplicationLog(nil)
	require.Error(t, err)

	fp := []byte{1, 2, 3}
	submitter := util.Uint160{7}

	log := &result.ApplicationLog{
		Executions: []state.Execution{{
			Events: []state.NotificationEvent{
				{Name: "Transfer", Item: stackitem.NewArray(nil)},
				{Name: "Registered", Item: stackitem.NewArray([]stackitem.Item{
					stackitem.Make(fp),
					stackitem.Make(submitter.BytesBE()),
					stackitem.Make(4),
				})},
			},
		}},
	}

	events, err := RegisteredEventsFromApplicationLog(log)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, fp, events[0].Fingerprint)
	require.Equal(t, submitter, events[0].Submitter)
	require.EqualValues(t, 4, events[0].Nonce.Int64())

	log.Executions[0].Events[1].Item = stackitem.NewArray([]stackitem.Item{stackitem.Make(fp)})
	_, err = RegisteredEventsFromApplicationLog(log)
	require.Error(t, err)
}
