package receipts

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nspcc-dev/neofs-authenticity/fingerprint"
	"github.com/nspcc-dev/neofs-authenticity/pipeline"
	"github.com/stretchr/testify/require"
)

func openJournal(t *testing.T) *Journal {
	j, err := Open(context.Background(), filepath.Join(t.TempDir(), "receipts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, j.Close()) })
	return j
}

func testReceipt(data string, at time.Time) pipeline.Receipt {
	return pipeline.Receipt{
		Message:            pipeline.SuccessMessage,
		AuthenticityScore:  91.2,
		IsAuthentic:        true,
		ArtifactAddress:    "bafkreifzjut3te2nhyekklss27nh3k72ysco7y32koao5eei66wof36n5e",
		ArtifactURL:        "https://ipfs.io/ipfs/bafkreifzjut3te2nhyekklss27nh3k72ysco7y32koao5eei66wof36n5e",
		ContentFingerprint: fingerprint.Of([]byte(data)),
		TransactionID:      "0x" + strings.Repeat("ab", 32),
		ValidUntilBlock:    5000,
		LedgerScore:        91,
		Nonce:              3,
		SubmittedAt:        at,
		Filename:           data + ".png",
		RunID:              uuid.New(),
	}
}

func TestJournal(t *testing.T) {
	ctx := context.Background()
	j := openJournal(t)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	first := testReceipt("hello", base)
	other := testReceipt("other", base.Add(time.Second))
	second := testReceipt("hello", base.Add(1500*time.Millisecond))
	second.IsAuthentic = false
	second.ArtifactURL = ""

	for _, r := range []pipeline.Receipt{first, other, second} {
		require.NoError(t, j.Record(ctx, r))
	}

	got, err := j.ByFingerprint(ctx, first.ContentFingerprint)
	require.NoError(t, err)
	require.Equal(t, []pipeline.Receipt{first, second}, got)

	got, err = j.ByFingerprint(ctx, fingerprint.Of([]byte("missing")))
	require.NoError(t, err)
	require.Empty(t, got)

	got, err = j.List(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, []pipeline.Receipt{second, other}, got)
}

func TestJournal_DuplicateRun(t *testing.T) {
	ctx := context.Background()
	j := openJournal(t)

	r := testReceipt("hello", time.Now().UTC())
	require.NoError(t, j.Record(ctx, r))
	require.Error(t, j.Record(ctx, r))
}

func TestJournal_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "receipts.db")

	j, err := Open(ctx, path)
	require.NoError(t, err)

	r := testReceipt("hello", time.Date(2024, 5, 1, 12, 0, 0, 123, time.UTC))
	require.NoError(t, j.Record(ctx, r))
	require.NoError(t, j.Close())

	j, err = Open(ctx, path)
	require.NoError(t, err)
	defer j.Close()

	got, err := j.ByFingerprint(ctx, r.ContentFingerprint)
	require.NoError(t, err)
	require.Equal(t, []pipeline.Receipt{r}, got)
}
