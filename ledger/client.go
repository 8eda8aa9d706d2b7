// Package ledger submits content registrations to the authenticity contract
// deployed on a Neo N3 network.
//
// A registration is a single transaction invoking the contract's
// registerContent method. Every submission carries the signing account's
// next nonce: it is read from the contract, passed as the last call argument
// and also used as the transaction nonce. Submissions of one account are
// serialized inside the process (see AccountLocks), so two concurrent runs
// never race for the same nonce.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/nspcc-dev/neo-go/pkg/core/transaction"
	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/neorpc/result"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/vmstate"
	"github.com/nspcc-dev/neofs-authenticity/failure"
	"github.com/nspcc-dev/neofs-authenticity/fingerprint"
	"github.com/nspcc-dev/neofs-authenticity/rpc/authenticity"
	"go.uber.org/zap"
)

// MaxScore is the upper bound of an authenticity score.
const MaxScore = 100

// DefaultNonceRetryBackoff is the pause before a submission is repeated with
// a fresh nonce.
const DefaultNonceRetryBackoff = time.Second

// Actor groups the node services used to validate, build, sign and
// broadcast a transaction. *actor.Actor implements it.
type Actor interface {
	Sender() util.Uint160
	GetBlockCount() (uint32, error)
	Run(script []byte) (*result.Invoke, error)
	MakeUnsignedUncheckedRun(script []byte, sysfee int64, attrs []transaction.Attribute) (*transaction.Transaction, error)
	Sign(tx *transaction.Transaction) error
	Send(tx *transaction.Transaction) (util.Uint256, uint32, error)
}

// Reader provides the account nonce kept by the contract.
// *authenticity.ContractReader implements it.
type Reader interface {
	NonceOf(account util.Uint160) (*big.Int, error)
}

type recordReader interface {
	GetRecord(fingerprint []byte) (*authenticity.Record, error)
}

type countReader interface {
	Count(fingerprint []byte) (*big.Int, error)
}

// Prm groups Client parameters.
type Prm struct {
	Logger *zap.Logger

	Actor  Actor
	Reader Reader

	// Contract is the script hash of the authenticity contract.
	Contract util.Uint160

	// GasLimit is the fixed system fee attached to every registration, in
	// GAS fractions. A registration needing more is rejected.
	GasLimit int64
	// GasPrice is the fixed surcharge added on top of the network fee
	// computed by the node, in GAS fractions.
	GasPrice int64

	// NonceRetryBackoff is the pause before a registration failed with a
	// nonce conflict is repeated. Defaults to DefaultNonceRetryBackoff.
	NonceRetryBackoff time.Duration

	// Locks serializes submissions per account. Defaults to the
	// process-wide set.
	Locks *AccountLocks

	// Clock returns the submission time. Defaults to time.Now.
	Clock func() time.Time
}

// Client submits registrations on behalf of a single account.
type Client struct {
	log *zap.Logger

	act    Actor
	reader Reader

	contract util.Uint160
	account  util.Uint160

	gasLimit int64
	gasPrice int64

	retryBackoff time.Duration
	locks        *AccountLocks
	now          func() time.Time
}

// Registration is a verdict about to be put on the ledger.
type Registration struct {
	Fingerprint     fingerprint.Fingerprint
	ArtifactAddress string
	// Score is the raw authenticity score in [0, 100]. The ledger stores
	// its integer part.
	Score       float64
	IsAuthentic bool
}

// Record is what a registration transaction carries.
type Record struct {
	Fingerprint     fingerprint.Fingerprint
	ArtifactAddress string
	Score           int64
	IsAuthentic     bool
	Nonce           uint64
	SubmittedAt     time.Time
}

// Submission is a registration accepted by the node.
type Submission struct {
	Record Record
	// Hash is the transaction hash.
	Hash util.Uint256
	// ValidUntilBlock is the height after which the transaction can not be
	// included anymore.
	ValidUntilBlock uint32
}

// TransactionID returns the transaction hash in the form printed by Neo
// tooling.
func (s Submission) TransactionID() string {
	return "0x" + s.Hash.StringLE()
}

// New constructs Client from Prm.
func New(prm Prm) (*Client, error) {
	switch {
	case prm.Actor == nil:
		return nil, errors.New("missing actor")
	case prm.Reader == nil:
		return nil, errors.New("missing contract reader")
	case prm.Contract.Equals(util.Uint160{}):
		return nil, errors.New("missing contract hash")
	case prm.GasLimit <= 0:
		return nil, fmt.Errorf("non-positive gas limit %d", prm.GasLimit)
	case prm.GasPrice < 0:
		return nil, fmt.Errorf("negative gas price %d", prm.GasPrice)
	}

	c := &Client{
		log:          prm.Logger,
		act:          prm.Actor,
		reader:       prm.Reader,
		contract:     prm.Contract,
		account:      prm.Actor.Sender(),
		gasLimit:     prm.GasLimit,
		gasPrice:     prm.GasPrice,
		retryBackoff: prm.NonceRetryBackoff,
		locks:        prm.Locks,
		now:          prm.Clock,
	}

	if c.log == nil {
		c.log = zap.NewNop()
	}
	if c.retryBackoff <= 0 {
		c.retryBackoff = DefaultNonceRetryBackoff
	}
	if c.locks == nil {
		c.locks = defaultLocks
	}
	if c.now == nil {
		c.now = time.Now
	}

	c.log = c.log.With(zap.String("account", address.Uint160ToString(c.account)))

	return c, nil
}

// Account returns the signing account.
func (c *Client) Account() util.Uint160 {
	return c.account
}

// TruncateScore converts a raw score to the integer stored on the ledger,
// rounding toward zero.
func TruncateScore(score float64) (int64, error) {
	if math.IsNaN(score) || score < 0 || score > MaxScore {
		return 0, fmt.Errorf("score %v out of range [0, %d]", score, MaxScore)
	}

	return int64(math.Trunc(score)), nil
}

// Register submits reg and returns once the node accepted the transaction.
//
// A nonce conflict is repeated once with a fresh nonce after
// Prm.NonceRetryBackoff. Rejections are never repeated. Failures are
// *failure.Error of kinds KindInput, KindLedgerNonce, KindLedgerRejected,
// KindSigner, KindDependency (node unreachable) and KindTimeout.
func (c *Client) Register(ctx context.Context, reg Registration) (Submission, error) {
	const op = "ledger.Register"

	score, err := TruncateScore(reg.Score)
	if err != nil {
		return Submission{}, failure.New(failure.KindInput, op, err)
	}
	if reg.Fingerprint.IsZero() {
		return Submission{}, failure.New(failure.KindInput, op, errors.New("missing fingerprint"))
	}
	if reg.ArtifactAddress == "" {
		return Submission{}, failure.New(failure.KindInput, op, errors.New("missing artifact address"))
	}

	slot, err := c.locks.acquire(ctx, c.account)
	if err != nil {
		return Submission{}, failure.New(failure.KindTimeout, op, fmt.Errorf("wait for account lock: %w", err))
	}
	defer slot.release()

	b := backoff.NewConstantBackOff(c.retryBackoff)

	sub, err := backoff.Retry(ctx, func() (Submission, error) {
		sub, err := c.submit(ctx, slot, reg, score)
		if err != nil && !failure.Is(err, failure.KindLedgerNonce) {
			return sub, backoff.Permanent(err)
		}
		return sub, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(2), backoff.WithNotify(func(err error, d time.Duration) {
		c.log.Warn("nonce conflict, retrying with a fresh nonce",
			zap.Stringer("fingerprint", reg.Fingerprint), zap.Duration("backoff", d), zap.Error(err))
	}))
	if err != nil {
		if failure.KindOf(err) == failure.KindUnknown && ctx.Err() != nil {
			err = failure.New(failure.KindTimeout, op, err)
		}
		return Submission{}, err
	}

	return sub, nil
}

func (c *Client) submit(ctx context.Context, slot *accountSlot, reg Registration, score int64) (Submission, error) {
	const op = "ledger.Register"

	if err := ctx.Err(); err != nil {
		return Submission{}, failure.New(failure.KindTimeout, op, err)
	}

	n, err := c.reader.NonceOf(c.account)
	if err != nil {
		return Submission{}, failure.New(failure.KindLedgerNonce, op, fmt.Errorf("%w: %w", ErrNonceFetch, err))
	}
	if n.Sign() < 0 || !n.IsUint64() {
		return Submission{}, failure.New(failure.KindLedgerNonce, op, fmt.Errorf("%w: invalid nonce %s", ErrNonceFetch, n))
	}

	nonce := n.Uint64()
	pending, err := slot.pending(nonce, c.act.GetBlockCount)
	if err != nil {
		return Submission{}, failure.New(failure.KindDependency, op, fmt.Errorf("%w: block count: %w", ErrNodeUnavailable, err))
	}
	if pending {
		return Submission{}, failure.New(failure.KindLedgerNonce, op,
			fmt.Errorf("%w: node reports %d, %d is already broadcast and valid until block %d",
				ErrStaleNonce, nonce, slot.lastNonce, slot.validUntil))
	}

	script, err := authenticity.RegisterContentScript(c.contract, reg.Fingerprint.Bytes(), reg.ArtifactAddress,
		big.NewInt(score), reg.IsAuthentic, new(big.Int).SetUint64(nonce))
	if err != nil {
		return Submission{}, failure.New(failure.KindLedgerRejected, op, fmt.Errorf("%w: build script: %w", ErrRejected, err))
	}

	res, err := c.act.Run(script)
	if err != nil {
		return Submission{}, failure.New(failure.KindDependency, op, fmt.Errorf("%w: test invocation: %w", ErrNodeUnavailable, err))
	}

	if res.State != vmstate.Halt.String() {
		if faultMentionsNonce(res.FaultException) {
			return Submission{}, failure.New(failure.KindLedgerNonce, op,
				fmt.Errorf("%w: contract refused nonce %d: %s", ErrStaleNonce, nonce, res.FaultException))
		}
		return Submission{}, failure.New(failure.KindLedgerRejected, op,
			fmt.Errorf("%w: invocation faulted: %s", ErrRejected, res.FaultException))
	}

	if res.GasConsumed > c.gasLimit {
		return Submission{}, failure.New(failure.KindLedgerRejected, op,
			fmt.Errorf("%w: invocation needs %d GAS fractions, limit is %d", ErrRejected, res.GasConsumed, c.gasLimit))
	}

	tx, err := c.act.MakeUnsignedUncheckedRun(script, c.gasLimit, nil)
	if err != nil {
		return Submission{}, failure.New(failure.KindDependency, op, fmt.Errorf("%w: make transaction: %w", ErrNodeUnavailable, err))
	}

	tx.Nonce = uint32(nonce)
	tx.NetworkFee += c.gasPrice

	err = c.act.Sign(tx)
	if err != nil {
		return Submission{}, failure.New(failure.KindSigner, op, fmt.Errorf("%w: %w", ErrSignerUnavailable, err))
	}

	submittedAt := c.now().UTC()

	h, vub, err := c.act.Send(tx)
	if err != nil {
		if isNonceConflict(err) {
			return Submission{}, failure.New(failure.KindLedgerNonce, op, fmt.Errorf("%w: %w", ErrStaleNonce, err))
		}
		if !isRPCResponse(err) {
			// the node may have accepted the transaction before the
			// connection failed
			slot.markBroadcast(nonce, tx.ValidUntilBlock)
		}
		return Submission{}, failure.New(failure.KindLedgerRejected, op, fmt.Errorf("%w: %w", ErrRejected, err))
	}

	slot.markBroadcast(nonce, vub)

	c.log.Info("registration submitted",
		zap.Stringer("fingerprint", reg.Fingerprint),
		zap.String("tx", h.StringLE()),
		zap.Uint64("nonce", nonce),
		zap.Uint32("vub", vub))

	return Submission{
		Record: Record{
			Fingerprint:     reg.Fingerprint,
			ArtifactAddress: reg.ArtifactAddress,
			Score:           score,
			IsAuthentic:     reg.IsAuthentic,
			Nonce:           nonce,
			SubmittedAt:     submittedAt,
		},
		Hash:            h,
		ValidUntilBlock: vub,
	}, nil
}

// lookup reads the latest record of fp, keeping authenticity.ErrNoRecord
// matchable.
func lookup(r recordReader, fp fingerprint.Fingerprint) (*authenticity.Record, error) {
	rec, err := r.GetRecord(fp.Bytes())
	if err != nil {
		if errors.Is(err, authenticity.ErrNoRecord) {
			return nil, err
		}
		return nil, failure.New(failure.KindDependency, "ledger.Lookup", fmt.Errorf("%w: %w", ErrNodeUnavailable, err))
	}

	return rec, nil
}

// registrations reads how many times fp has been registered.
func registrations(r countReader, fp fingerprint.Fingerprint) (uint64, error) {
	n, err := r.Count(fp.Bytes())
	if err != nil {
		return 0, failure.New(failure.KindDependency, "ledger.Registrations", fmt.Errorf("%w: %w", ErrNodeUnavailable, err))
	}
	if !n.IsUint64() {
		return 0, failure.New(failure.KindDependency, "ledger.Registrations", fmt.Errorf("%w: invalid count %s", ErrNodeUnavailable, n))
	}
	return n.Uint64(), nil
}
