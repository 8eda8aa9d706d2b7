// Package authenticity contains RPC wrappers for the ContentAuthenticity
// contract.
package authenticity

import (
	"errors"
	"fmt"
	"math/big"
	"unicode/utf8"

	"github.com/nspcc-dev/neo-go/pkg/core/transaction"
	"github.com/nspcc-dev/neo-go/pkg/neorpc/result"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/unwrap"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
)

// Method names of the contract.
const (
	MethodVersion         = "version"
	MethodNonceOf         = "nonceOf"
	MethodGetRecord       = "getRecord"
	MethodCount           = "count"
	MethodRegisterContent = "registerContent"
)

// ErrNoRecord is returned by GetRecord for unknown fingerprints.
var ErrNoRecord = errors.New("no record for the fingerprint")

// Record is a contract-specific authenticity.Record type used by its methods.
type Record struct {
	Fingerprint     []byte
	ArtifactAddress string
	Score           *big.Int
	IsAuthentic     bool
	Submitter       util.Uint160
	Nonce           *big.Int
}

// RegisteredEvent represents "Registered" event emitted by the contract.
type RegisteredEvent struct {
	Fingerprint []byte
	Submitter   util.Uint160
	Nonce       *big.Int
}

// Invoker is used by ContractReader to call various safe methods.
type Invoker interface {
	Call(contract util.Uint160, operation string, params ...any) (*result.Invoke, error)
}

// Actor is used by Contract to call state-changing methods.
type Actor interface {
	Invoker

	MakeRun(script []byte) (*transaction.Transaction, error)
	MakeUnsignedRun(script []byte, attrs []transaction.Attribute) (*transaction.Transaction, error)
	SendRun(script []byte) (util.Uint256, uint32, error)
}

// ContractReader implements safe contract methods.
type ContractReader struct {
	invoker Invoker
	hash    util.Uint160
}

// Contract implements all contract methods.
type Contract struct {
	ContractReader
	actor Actor
	hash  util.Uint160
}

// NewReader creates an instance of ContractReader using provided contract hash and the given Invoker.
func NewReader(invoker Invoker, hash util.Uint160) *ContractReader {
	return &ContractReader{invoker, hash}
}

// New creates an instance of Contract using provided contract hash and the given Actor.
func New(actor Actor, hash util.Uint160) *Contract {
	return &Contract{ContractReader{actor, hash}, actor, hash}
}

// Hash returns the contract address.
func (c *ContractReader) Hash() util.Uint160 {
	return c.hash
}

// Version invokes `version` method of contract.
func (c *ContractReader) Version() (*big.Int, error) {
	return unwrap.BigInt(c.invoker.Call(c.hash, MethodVersion))
}

// NonceOf invokes `nonceOf` method of contract. The result is the nonce the
// contract expects in the next registration submitted by account.
func (c *ContractReader) NonceOf(account util.Uint160) (*big.Int, error) {
	return unwrap.BigInt(c.invoker.Call(c.hash, MethodNonceOf, account))
}

// Count invokes `count` method of contract. The result is the number of
// registrations of the fingerprint, zero for unknown content.
func (c *ContractReader) Count(fingerprint []byte) (*big.Int, error) {
	return unwrap.BigInt(c.invoker.Call(c.hash, MethodCount, fingerprint))
}

// GetRecord invokes `getRecord` method of contract. It returns ErrNoRecord
// if the fingerprint has never been registered. For fingerprints registered
// several times the latest record is returned.
func (c *ContractReader) GetRecord(fingerprint []byte) (*Record, error) {
	item, err := unwrap.Item(c.invoker.Call(c.hash, MethodGetRecord, fingerprint))
	if err != nil {
		return nil, err
	}

	if _, ok := item.(stackitem.Null); ok {
		return nil, ErrNoRecord
	}

	return itemToRecord(item, nil)
}

// RegisterContentScript builds the invocation script of `registerContent`
// method of contract deployed at hash.
func RegisterContentScript(hash util.Uint160, fingerprint []byte, artifactAddress string, score *big.Int, isAuthentic bool, nonce *big.Int) ([]byte, error) {
	return smartcontract.CreateCallScript(hash, MethodRegisterContent, fingerprint, artifactAddress, score, isAuthentic, nonce)
}

// RegisterContent creates a transaction invoking `registerContent` method of the contract.
// This transaction is signed and immediately sent to the network.
// The values returned are its hash, ValidUntilBlock value and error if any.
func (c *Contract) RegisterContent(fingerprint []byte, artifactAddress string, score *big.Int, isAuthentic bool, nonce *big.Int) (util.Uint256, uint32, error) {
	script, err := RegisterContentScript(c.hash, fingerprint, artifactAddress, score, isAuthentic, nonce)
	if err != nil {
		return util.Uint256{}, 0, err
	}
	return c.actor.SendRun(script)
}

// RegisterContentTransaction creates a transaction invoking `registerContent` method of the contract.
// This transaction is signed, but not sent to the network, instead it's
// returned to the caller.
func (c *Contract) RegisterContentTransaction(fingerprint []byte, artifactAddress string, score *big.Int, isAuthentic bool, nonce *big.Int) (*transaction.Transaction, error) {
	script, err := RegisterContentScript(c.hash, fingerprint, artifactAddress, score, isAuthentic, nonce)
	if err != nil {
		return nil, err
	}
	return c.actor.MakeRun(script)
}

// RegisterContentUnsigned creates a transaction invoking `registerContent` method of the contract.
// This transaction is not signed, it's simply returned to the caller.
// Any fields of it that do not affect fees can be changed (ValidUntilBlock,
// Nonce), fee values (NetworkFee, SystemFee) can be increased as well.
func (c *Contract) RegisterContentUnsigned(fingerprint []byte, artifactAddress string, score *big.Int, isAuthentic bool, nonce *big.Int) (*transaction.Transaction, error) {
	script, err := RegisterContentScript(c.hash, fingerprint, artifactAddress, score, isAuthentic, nonce)
	if err != nil {
		return nil, err
	}
	return c.actor.MakeUnsignedRun(script, nil)
}

// itemToRecord converts stack item into *Record.
func itemToRecord(item stackitem.Item, err error) (*Record, error) {
	if err != nil {
		return nil, err
	}
	var res = new(Record)
	err = res.FromStackItem(item)
	return res, err
}

// FromStackItem retrieves fields of Record from the given
// [stackitem.Item] or returns an error if it's not possible to do to so.
func (res *Record) FromStackItem(item stackitem.Item) error {
	arr, ok := item.Value().([]stackitem.Item)
	if !ok {
		return errors.New("not an array")
	}
	if len(arr) != 6 {
		return errors.New("wrong number of structure elements")
	}

	var (
		index = -1
		err   error
	)
	index++
	res.Fingerprint, err = arr[index].TryBytes()
	if err != nil {
		return fmt.Errorf("field Fingerprint: %w", err)
	}

	index++
	res.ArtifactAddress, err = func(item stackitem.Item) (string, error) {
		b, err := item.TryBytes()
		if err != nil {
			return "", err
		}
		if !utf8.Valid(b) {
			return "", errors.New("not a UTF-8 string")
		}
		return string(b), nil
	}(arr[index])
	if err != nil {
		return fmt.Errorf("field ArtifactAddress: %w", err)
	}

	index++
	res.Score, err = arr[index].TryInteger()
	if err != nil {
		return fmt.Errorf("field Score: %w", err)
	}

	index++
	res.IsAuthentic, err = arr[index].TryBool()
	if err != nil {
		return fmt.Errorf("field IsAuthentic: %w", err)
	}

	index++
	res.Submitter, err = func(item stackitem.Item) (util.Uint160, error) {
		b, err := item.TryBytes()
		if err != nil {
			return util.Uint160{}, err
		}
		u, err := util.Uint160DecodeBytesBE(b)
		if err != nil {
			return util.Uint160{}, err
		}
		return u, nil
	}(arr[index])
	if err != nil {
		return fmt.Errorf("field Submitter: %w", err)
	}

	index++
	res.Nonce, err = arr[index].TryInteger()
	if err != nil {
		return fmt.Errorf("field Nonce: %w", err)
	}

	return nil
}

// RegisteredEventsFromApplicationLog retrieves a set of all emitted events
// with "Registered" name from the provided [result.ApplicationLog].
func RegisteredEventsFromApplicationLog(log *result.ApplicationLog) ([]*RegisteredEvent, error) {
	if log == nil {
		return nil, errors.New("nil application log")
	}

	var res []*RegisteredEvent
	for i, ex := range log.Executions {
		for j, e := range ex.Events {
			if e.Name != "Registered" {
				continue
			}
			event := new(RegisteredEvent)
			err := event.FromStackItem(e.Item)
			if err != nil {
				return nil, fmt.Errorf("failed to deserialize RegisteredEvent from stackitem (execution #%d, event #%d): %w", i, j, err)
			}
			res = append(res, event)
		}
	}

	return res, nil
}

// FromStackItem converts provided [stackitem.Array] to RegisteredEvent or
// returns an error if it's not possible to do to so.
func (e *RegisteredEvent) FromStackItem(item *stackitem.Array) error {
	if item == nil {
		return errors.New("nil item")
	}
	arr, ok := item.Value().([]stackitem.Item)
	if !ok {
		return errors.New("not an array")
	}
	if len(arr) != 3 {
		return errors.New("wrong number of structure elements")
	}

	var (
		index = -1
		err   error
	)
	index++
	e.Fingerprint, err = arr[index].TryBytes()
	if err != nil {
		return fmt.Errorf("field Fingerprint: %w", err)
	}

	index++
	e.Submitter, err = func(item stackitem.Item) (util.Uint160, error) {
		b, err := item.TryBytes()
		if err != nil {
			return util.Uint160{}, err
		}
		u, err := util.Uint160DecodeBytesBE(b)
		if err != nil {
			return util.Uint160{}, err
		}
		return u, nil
	}(arr[index])
	if err != nil {
		return fmt.Errorf("field Submitter: %w", err)
	}

	index++
	e.Nonce, err = arr[index].TryInteger()
	if err != nil {
		return fmt.Errorf("field Nonce: %w", err)
	}

	return nil
}
