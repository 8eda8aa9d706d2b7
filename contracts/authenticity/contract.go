package authenticity

import (
	"github.com/nspcc-dev/neo-go/pkg/interop"
	"github.com/nspcc-dev/neo-go/pkg/interop/contract"
	"github.com/nspcc-dev/neo-go/pkg/interop/native/management"
	"github.com/nspcc-dev/neo-go/pkg/interop/native/std"
	"github.com/nspcc-dev/neo-go/pkg/interop/runtime"
	"github.com/nspcc-dev/neo-go/pkg/interop/storage"
	"github.com/nspcc-dev/neofs-authenticity/common"
)

// Record is a registration of content.
type Record struct {
	Fingerprint     []byte
	ArtifactAddress string
	Score           int
	IsAuthentic     bool
	Submitter       interop.Hash160
	Nonce           int
}

const (
	fingerprintSize       = 32
	maxArtifactAddressLen = 128
	maxScore              = 100

	noncePrefix  = 'n'
	recordPrefix = 'r'
	countPrefix  = 'c'
)

// nolint:deadcode,unused
func _deploy(data any, isUpdate bool) {
	if isUpdate {
		args := data.([]any)
		common.CheckVersion(args[len(args)-1].(int))
		return
	}

	runtime.Log("authenticity contract initialized")
}

// Update method updates contract source code and manifest. It can be invoked
// only by committee.
func Update(script []byte, manifest []byte, data any) {
	if !common.HasUpdateAccess() {
		panic("only committee can update contract")
	}

	contract.Call(interop.Hash160(management.Hash), "update",
		contract.All, script, manifest, common.AppendVersion(data))
	runtime.Log("authenticity contract updated")
}

// RegisterContent stores a registration of content with the given
// fingerprint on behalf of the transaction sender. Nonce must be equal to
// the current NonceOf value of the sender, it is incremented on success.
//
// Score is an integer in [0, 100]. ArtifactAddress is the address of the
// stored content copy.
func RegisterContent(fingerprint []byte, artifactAddress string, score int, isAuthentic bool, nonce int) {
	if len(fingerprint) != fingerprintSize {
		panic("invalid fingerprint length")
	}
	if len(artifactAddress) == 0 || len(artifactAddress) > maxArtifactAddressLen {
		panic("invalid artifact address")
	}
	if score < 0 || score > maxScore {
		panic("score out of range")
	}

	submitter := runtime.GetScriptContainer().Sender
	common.CheckWitness(submitter)

	ctx := storage.GetContext()

	nonceKey := append([]byte{noncePrefix}, submitter...)
	expected := common.GetInt(ctx, nonceKey)
	if nonce != expected {
		panic("invalid nonce: expected " + std.Itoa10(expected))
	}
	storage.Put(ctx, nonceKey, expected+1)

	common.SetSerialized(ctx, append([]byte{recordPrefix}, fingerprint...), Record{
		Fingerprint:     fingerprint,
		ArtifactAddress: artifactAddress,
		Score:           score,
		IsAuthentic:     isAuthentic,
		Submitter:       submitter,
		Nonce:           nonce,
	})

	countKey := append([]byte{countPrefix}, fingerprint...)
	storage.Put(ctx, countKey, common.GetInt(ctx, countKey)+1)

	runtime.Notify("Registered", fingerprint, submitter, nonce)
}

// NonceOf returns the nonce expected in the next registration of account.
func NonceOf(account interop.Hash160) int {
	if !common.IsHash160(account) {
		panic("invalid account")
	}

	ctx := storage.GetReadOnlyContext()
	return common.GetInt(ctx, append([]byte{noncePrefix}, account...))
}

// GetRecord returns the latest Record of the content with the given
// fingerprint or nil if it has never been registered.
func GetRecord(fingerprint []byte) any {
	if len(fingerprint) != fingerprintSize {
		panic("invalid fingerprint length")
	}

	ctx := storage.GetReadOnlyContext()
	return common.GetSerialized(ctx, append([]byte{recordPrefix}, fingerprint...))
}

// Count returns the number of registrations of the content with the given
// fingerprint.
func Count(fingerprint []byte) int {
	if len(fingerprint) != fingerprintSize {
		panic("invalid fingerprint length")
	}

	ctx := storage.GetReadOnlyContext()
	return common.GetInt(ctx, append([]byte{countPrefix}, fingerprint...))
}

// Version returns the version of the contract.
func Version() int {
	return common.Version
}
