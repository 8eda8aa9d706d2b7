package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neofs-authenticity/config"
	"github.com/nspcc-dev/neofs-authenticity/failure"
	"github.com/nspcc-dev/neofs-authenticity/fingerprint"
	"github.com/nspcc-dev/neofs-authenticity/ledger"
	"github.com/nspcc-dev/neofs-authenticity/rpc/authenticity"
)

// lookupResult is printed by lookup. ContentCID is the raw-leaf CIDv1 of the
// content, the address content-addressed stores give a single-block copy of
// it, so it can be checked against ArtifactAddress.
type lookupResult struct {
	ContentFingerprint fingerprint.Fingerprint `json:"contentFingerprint"`
	ContentCID         string                  `json:"contentCid"`
	Registered         bool                    `json:"registered"`
	Registrations      uint64                  `json:"registrations"`
	ArtifactAddress    string                  `json:"artifactAddress,omitempty"`
	Score              *big.Int                `json:"score,omitempty"`
	IsAuthentic        bool                    `json:"isAuthentic"`
	Submitter          string                  `json:"submitter,omitempty"`
	Nonce              *big.Int                `json:"nonce,omitempty"`
}

// confirmResult is printed by confirm.
type confirmResult struct {
	TransactionID string `json:"transactionId"`
	Persisted     bool   `json:"persisted"`
	*ledger.Confirmation
}

func dialNode(ctx context.Context, env *cmdEnv) (*ledger.Node, error) {
	cfg := env.cfg.Ledger
	var missing config.MissingError
	if cfg.Endpoint == "" {
		missing.Keys = append(missing.Keys, "ledger.endpoint")
	}
	if cfg.Contract == "" {
		missing.Keys = append(missing.Keys, "ledger.contract")
	}
	if len(missing.Keys) > 0 {
		return nil, &missing
	}

	return ledger.DialNode(ctx, ledger.DialPrm{
		Endpoint:       cfg.Endpoint,
		Contract:       cfg.Contract,
		DialTimeout:    cfg.DialTimeout,
		RequestTimeout: cfg.RequestTimeout,
	})
}

// parseContentRef accepts a fingerprint or a path to the content itself.
func parseContentRef(s string) (fingerprint.Fingerprint, error) {
	fp, err := fingerprint.Parse(s)
	if err == nil {
		return fp, nil
	}

	f, err := os.Open(s)
	if err != nil {
		return fingerprint.Fingerprint{}, failure.New(failure.KindInput, "parse content reference",
			fmt.Errorf("%q is neither a fingerprint nor a readable file", s))
	}
	defer f.Close()

	return fingerprint.FromReader(f)
}

func runLookup(ctx context.Context, env *cmdEnv, args []string) error {
	fp, err := parseContentRef(args[0])
	if err != nil {
		return err
	}

	n, err := dialNode(ctx, env)
	if err != nil {
		return err
	}
	defer n.Close()

	rec, err := n.Lookup(fp)
	if err != nil && !errors.Is(err, authenticity.ErrNoRecord) {
		return err
	}

	count, err := n.Registrations(fp)
	if err != nil {
		return err
	}

	return env.print(newLookupResult(fp, rec, count))
}

// newLookupResult describes the record of fp, rec is nil for unknown content.
func newLookupResult(fp fingerprint.Fingerprint, rec *authenticity.Record, count uint64) lookupResult {
	res := lookupResult{
		ContentFingerprint: fp,
		ContentCID:         fp.CID().String(),
		Registrations:      count,
	}

	if rec != nil {
		res.Registered = true
		res.ArtifactAddress = rec.ArtifactAddress
		res.Score = rec.Score
		res.IsAuthentic = rec.IsAuthentic
		res.Submitter = address.Uint160ToString(rec.Submitter)
		res.Nonce = rec.Nonce
	}

	return res
}

func runConfirm(ctx context.Context, env *cmdEnv, args []string) error {
	h, err := util.Uint256DecodeStringLE(strings.TrimPrefix(args[0], "0x"))
	if err != nil {
		return failure.New(failure.KindInput, "parse transaction ID", err)
	}

	n, err := dialNode(ctx, env)
	if err != nil {
		return err
	}
	defer n.Close()

	res := confirmResult{TransactionID: "0x" + h.StringLE()}

	c, err := n.Confirmation(h)
	switch {
	case errors.Is(err, ledger.ErrNotPersisted):
	case err != nil:
		return err
	default:
		res.Persisted = true
		res.Confirmation = &c
	}

	return env.print(res)
}
