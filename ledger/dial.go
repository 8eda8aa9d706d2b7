package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nspcc-dev/neo-go/pkg/crypto/keys"
	"github.com/nspcc-dev/neo-go/pkg/neorpc/result"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/actor"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/invoker"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/trigger"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/vmstate"
	"github.com/nspcc-dev/neo-go/pkg/wallet"
	"github.com/nspcc-dev/neofs-authenticity/failure"
	"github.com/nspcc-dev/neofs-authenticity/fingerprint"
	"github.com/nspcc-dev/neofs-authenticity/rpc/authenticity"
	"github.com/nspcc-dev/neofs-authenticity/rpc/nns"
	"go.uber.org/zap"
)

// ErrNotPersisted is returned by Node.Confirmation for transactions not
// included in a block yet.
var ErrNotPersisted = errors.New("transaction not persisted")

// DialPrm groups Dial and DialNode parameters.
type DialPrm struct {
	Logger *zap.Logger

	// Endpoint is the Neo N3 RPC endpoint.
	Endpoint string
	// WIF is the signing key. It is never logged. Not needed by DialNode.
	WIF string
	// Contract is the script hash, address or NNS domain of the authenticity
	// contract.
	Contract string

	GasLimit          int64
	GasPrice          int64
	NonceRetryBackoff time.Duration

	DialTimeout    time.Duration
	RequestTimeout time.Duration
}

// Node is a read-only connection to the ledger.
type Node struct {
	rpc      *rpcclient.Client
	contract util.Uint160
	reader   *authenticity.ContractReader
}

// DialNode connects to the RPC node and resolves the contract.
func DialNode(ctx context.Context, prm DialPrm) (*Node, error) {
	const op = "ledger.DialNode"

	c, err := rpcclient.New(ctx, prm.Endpoint, rpcclient.Options{
		DialTimeout:    prm.DialTimeout,
		RequestTimeout: prm.RequestTimeout,
	})
	if err != nil {
		return nil, failure.New(failure.KindDependency, op, fmt.Errorf("%w: RPC client: %w", ErrNodeUnavailable, err))
	}

	err = c.Init()
	if err != nil {
		c.Close()
		return nil, failure.New(failure.KindDependency, op, fmt.Errorf("%w: init RPC client: %w", ErrNodeUnavailable, err))
	}

	contract, err := resolveContract(c, prm.Contract)
	if err != nil {
		c.Close()
		return nil, failure.New(failure.KindDependency, op, fmt.Errorf("resolve contract: %w", err))
	}

	return &Node{
		rpc:      c,
		contract: contract,
		reader:   authenticity.NewReader(invoker.New(c, nil), contract),
	}, nil
}

// Contract returns the resolved contract hash.
func (n *Node) Contract() util.Uint160 {
	return n.contract
}

// Lookup returns the on-chain record of fp. authenticity.ErrNoRecord is
// returned if fp was never registered.
func (n *Node) Lookup(fp fingerprint.Fingerprint) (*authenticity.Record, error) {
	return lookup(n.reader, fp)
}

// Registrations returns the number of times fp has been registered, zero for
// unknown content.
func (n *Node) Registrations(fp fingerprint.Fingerprint) (uint64, error) {
	return registrations(n.reader, fp)
}

// Confirmation is the execution outcome of a registration transaction.
type Confirmation struct {
	State          string                          `json:"vmState"`
	GasConsumed    int64                           `json:"gasConsumed"`
	FaultException string                          `json:"exception,omitempty"`
	Events         []*authenticity.RegisteredEvent `json:"events"`
}

// Confirmation returns the execution outcome of the transaction h.
// ErrNotPersisted is returned while h is not in a block, other node failures
// are failure.KindDependency.
func (n *Node) Confirmation(h util.Uint256) (Confirmation, error) {
	return confirmation(n.rpc, h)
}

type applicationLogs interface {
	GetApplicationLog(util.Uint256, *trigger.Type) (*result.ApplicationLog, error)
}

func confirmation(src applicationLogs, h util.Uint256) (Confirmation, error) {
	log, err := src.GetApplicationLog(h, nil)
	if err != nil {
		if isUnknownTransaction(err) {
			return Confirmation{}, fmt.Errorf("%w: %w", ErrNotPersisted, err)
		}
		return Confirmation{}, failure.New(failure.KindDependency, "ledger.Confirmation",
			fmt.Errorf("%w: application log: %w", ErrNodeUnavailable, err))
	}

	if len(log.Executions) == 0 {
		return Confirmation{}, fmt.Errorf("%w: no executions", ErrNotPersisted)
	}

	evs, err := authenticity.RegisteredEventsFromApplicationLog(log)
	if err != nil {
		return Confirmation{}, fmt.Errorf("decode events: %w", err)
	}

	ex := log.Executions[0]

	return Confirmation{
		State:          ex.VMState.String(),
		GasConsumed:    ex.GasConsumed,
		FaultException: ex.FaultException,
		Events:         evs,
	}, nil
}

// Halted reports whether the transaction executed successfully.
func (c Confirmation) Halted() bool {
	return c.State == vmstate.Halt.String()
}

// Close closes the connection.
func (n *Node) Close() {
	n.rpc.Close()
}

// Dial connects to the RPC node and returns Client signing with the key from
// prm. The returned function closes the connection.
func Dial(ctx context.Context, prm DialPrm) (*Client, func(), error) {
	const op = "ledger.Dial"

	priv, err := keys.NewPrivateKeyFromWIF(prm.WIF)
	if err != nil {
		// the WIF must not leak through the error text
		return nil, nil, failure.New(failure.KindSigner, op, fmt.Errorf("%w: decode WIF", ErrSignerUnavailable))
	}

	n, err := DialNode(ctx, prm)
	if err != nil {
		return nil, nil, err
	}

	act, err := actor.NewSimple(n.rpc, wallet.NewAccountFromPrivateKey(priv))
	if err != nil {
		n.Close()
		return nil, nil, failure.New(failure.KindSigner, op, fmt.Errorf("%w: init actor: %w", ErrSignerUnavailable, err))
	}

	cli, err := New(Prm{
		Logger:            prm.Logger,
		Actor:             act,
		Reader:            authenticity.NewReader(act, n.contract),
		Contract:          n.contract,
		GasLimit:          prm.GasLimit,
		GasPrice:          prm.GasPrice,
		NonceRetryBackoff: prm.NonceRetryBackoff,
	})
	if err != nil {
		n.Close()
		return nil, nil, err
	}

	return cli, n.Close, nil
}

// resolveContract parses s as a script hash or address, falling back to NNS
// resolution of s as a domain.
func resolveContract(c *rpcclient.Client, s string) (util.Uint160, error) {
	if s == "" {
		return util.Uint160{}, errors.New("no contract configured")
	}

	h, err := nns.ParseHash(s)
	if err == nil {
		return h, nil
	}

	nnsHash, err := nns.InferHash(c)
	if err != nil {
		return util.Uint160{}, fmt.Errorf("infer NNS contract hash: %w", err)
	}

	return nns.NewReader(invoker.New(c, nil), nnsHash).ResolveContract(s)
}
