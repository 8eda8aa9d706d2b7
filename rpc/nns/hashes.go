package nns

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/unwrap"
	"github.com/nspcc-dev/neo-go/pkg/util"
)

// ID is the default NNS contract ID. Networks deploy NNS first, therefore
// it always gets an ID of 1.
const ID = 1

// ErrNoRecord is returned when the domain has no TXT records.
var ErrNoRecord = errors.New("no TXT records")

// ContractStateGetter is the interface required for contract state resolution
// using a known contract ID.
type ContractStateGetter interface {
	GetContractStateByID(int32) (*state.Contract, error)
}

// InferHash resolves the NNS contract hash assuming it follows [ID]
// assignment.
func InferHash(sg ContractStateGetter) (util.Uint160, error) {
	c, err := sg.GetContractStateByID(ID)
	if err != nil {
		return util.Uint160{}, err
	}

	return c.Hash, nil
}

// ContractReader resolves domain records of the NNS contract.
type ContractReader struct {
	invoker Invoker
	hash    util.Uint160
}

// NewReader creates an instance of ContractReader using provided contract hash and the given Invoker.
func NewReader(invoker Invoker, hash util.Uint160) *ContractReader {
	return &ContractReader{invoker, hash}
}

// Resolve invokes `resolve` method of contract.
func (c *ContractReader) Resolve(name string, typ *big.Int) ([]string, error) {
	return unwrap.ArrayOfUTF8Strings(c.invoker.Call(c.hash, "resolve", name, typ))
}

// ResolveContract returns the script hash stored in a TXT record of the
// domain. Both little-endian hex and Neo address forms are accepted; the
// first parsable record wins.
func (c *ContractReader) ResolveContract(name string) (util.Uint160, error) {
	records, err := c.Resolve(name, big.NewInt(TXT))
	if err != nil {
		return util.Uint160{}, fmt.Errorf("resolve %q: %w", name, err)
	}

	if len(records) == 0 {
		return util.Uint160{}, fmt.Errorf("resolve %q: %w", name, ErrNoRecord)
	}

	for _, rec := range records {
		h, err := ParseHash(rec)
		if err == nil {
			return h, nil
		}
	}

	return util.Uint160{}, fmt.Errorf("resolve %q: no valid script hash among %d records", name, len(records))
}

// ParseHash decodes a script hash given either as little-endian hex (with
// or without "0x") or as a Neo address.
func ParseHash(s string) (util.Uint160, error) {
	h, err := util.Uint160DecodeStringLE(strings.TrimPrefix(s, "0x"))
	if err == nil {
		return h, nil
	}

	return address.StringToUint160(s)
}
