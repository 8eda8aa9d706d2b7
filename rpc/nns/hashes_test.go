package nns

import (
	"errors"
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/neorpc/result"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/stretchr/testify/require"
)

type stateGetter struct {
	f func(int32) (*state.Contract, error)
}

func (s stateGetter) GetContractStateByID(id int32) (*state.Contract, error) {
	return s.f(id)
}

func TestInferHash(t *testing.T) {
	var sg stateGetter
	sg.f = func(int32) (*state.Contract, error) {
		return nil, errors.New("bad")
	}
	_, err := InferHash(sg)
	require.Error(t, err)
	sg.f = func(int32) (*state.Contract, error) {
		return &state.Contract{
			ContractBase: state.ContractBase{
				Hash: util.Uint160{0x01, 0x02, 0x03},
			},
		}, nil
	}
	h, err := InferHash(sg)
	require.NoError(t, err)
	require.Equal(t, util.Uint160{0x01, 0x02, 0x03}, h)
}

type testInv struct {
	err error
	res *result.Invoke

	gotMethod string
	gotParams []any
}

func (t *testInv) Call(contract util.Uint160, operation string, params ...any) (*result.Invoke, error) {
	t.gotMethod, t.gotParams = operation, params
	return t.res, t.err
}

func halt(items ...stackitem.Item) *result.Invoke {
	return &result.Invoke{
		State: "HALT",
		Stack: []stackitem.Item{stackitem.Make(items)},
	}
}

func TestResolveContract(t *testing.T) {
	ti := new(testInv)
	r := NewReader(ti, util.Uint160{1, 2, 3})

	ti.err = errors.New("bad")
	_, err := r.ResolveContract("blah")
	require.Error(t, err)

	ti.err = nil
	ti.res = halt()
	_, err = r.ResolveContract("blah")
	require.ErrorIs(t, err, ErrNoRecord)

	ti.res = halt(stackitem.Make(100500))
	_, err = r.ResolveContract("blah")
	require.Error(t, err)

	h := util.Uint160{1, 2, 3, 4, 5}

	ti.res = halt(stackitem.Make(h.StringLE()))
	res, err := r.ResolveContract(NameAuthenticity)
	require.NoError(t, err)
	require.Equal(t, h, res)
	require.Equal(t, "resolve", ti.gotMethod)
	require.Len(t, ti.gotParams, 2)
	require.Equal(t, NameAuthenticity, ti.gotParams[0])

	ti.res = halt(stackitem.Make("garbage"), stackitem.Make(address.Uint160ToString(h)))
	res, err = r.ResolveContract("blah")
	require.NoError(t, err)
	require.Equal(t, h, res)
}

func TestParseHash(t *testing.T) {
	h := util.Uint160{9, 8, 7}

	for _, s := range []string{
		h.StringLE(),
		"0x" + h.StringLE(),
		address.Uint160ToString(h),
	} {
		got, err := ParseHash(s)
		require.NoError(t, err, s)
		require.Equal(t, h, got)
	}

	_, err := ParseHash("authenticity.neofs")
	require.Error(t, err)
}
