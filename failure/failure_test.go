package failure

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	cause := errors.New("connection refused")

	for _, tc := range []struct {
		name string
		err  error
		kind Kind
	}{
		{name: "nil", err: nil, kind: KindUnknown},
		{name: "plain", err: cause, kind: KindUnknown},
		{name: "direct", err: New(KindDependency, "artifact.Store", cause), kind: KindDependency},
		{name: "wrapped", err: fmt.Errorf("run: %w", New(KindLedgerNonce, "ledger.Register", cause)), kind: KindLedgerNonce},
		{name: "deadline", err: fmt.Errorf("wait: %w", context.DeadlineExceeded), kind: KindTimeout},
		{name: "classified deadline", err: New(KindDependency, "artifact.Store", context.DeadlineExceeded), kind: KindDependency},
	} {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.kind, KindOf(tc.err))
			require.True(t, Is(tc.err, tc.kind))
		})
	}
}

func TestError(t *testing.T) {
	cause := errors.New("boom")
	err := New(KindClassification, "classifier.Classify", cause)

	require.EqualError(t, err, "classifier.Classify: boom")
	require.ErrorIs(t, err, cause)
	require.EqualError(t, New(KindInput, "fingerprint.FromReader", nil), "fingerprint.FromReader: input")
}

func TestKindProperties(t *testing.T) {
	require.True(t, KindInput.ClientFault())

	for _, k := range []Kind{KindDependency, KindClassification, KindLedgerNonce, KindLedgerRejected, KindSigner, KindTimeout} {
		require.False(t, k.ClientFault(), k)
	}

	require.True(t, KindLedgerNonce.Retryable())
	require.False(t, KindLedgerRejected.Retryable())
	require.False(t, KindClassification.Retryable())

	require.Equal(t, "ledger_rejected", KindLedgerRejected.String())
	require.Equal(t, "unknown", Kind(200).String())

	b, err := KindSigner.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "signer_unavailable", string(b))
}
