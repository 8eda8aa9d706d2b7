package pipeline

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/nspcc-dev/neofs-authenticity/failure"
	"github.com/nspcc-dev/neofs-authenticity/fingerprint"
)

// SuccessMessage is the message of every confirmed receipt.
const SuccessMessage = "Content analyzed successfully"

// Content is an upload owned by a single run.
type Content struct {
	// Name is the declared file name. It never affects the fingerprint.
	Name string
	Data []byte
}

// ReadContent reads the whole upload from r.
func ReadContent(name string, r io.Reader) (Content, error) {
	const op = "pipeline.ReadContent"

	data, err := io.ReadAll(r)
	if err != nil {
		return Content{}, failure.New(failure.KindInput, op, fmt.Errorf("read %q: %w", name, err))
	}

	if len(data) == 0 {
		return Content{}, failure.New(failure.KindInput, op, fingerprint.ErrEmpty)
	}

	return Content{Name: name, Data: data}, nil
}

// Receipt is the caller-facing result of a confirmed run.
type Receipt struct {
	Message string `json:"message"`
	// AuthenticityScore is the raw classifier score. The ledger keeps its
	// integer part, see LedgerScore.
	AuthenticityScore  float64                 `json:"authenticityScore"`
	IsAuthentic        bool                    `json:"isAuthentic"`
	ArtifactAddress    string                  `json:"artifactAddress"`
	ArtifactURL        string                  `json:"artifactUrl,omitempty"`
	ContentFingerprint fingerprint.Fingerprint `json:"contentFingerprint"`
	TransactionID      string                  `json:"transactionId"`
	ValidUntilBlock    uint32                  `json:"validUntilBlock"`
	LedgerScore        int64                   `json:"ledgerScore"`
	Nonce              uint64                  `json:"nonce"`
	SubmittedAt        time.Time               `json:"submittedAt"`
	Filename           string                  `json:"filename,omitempty"`
	RunID              uuid.UUID               `json:"runId"`
}
