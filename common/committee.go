// Package common contains helpers shared by the contracts of this module.
// It is compiled into contract code, so it depends on interop packages only.
package common

import (
	"github.com/nspcc-dev/neo-go/pkg/interop"
	"github.com/nspcc-dev/neo-go/pkg/interop/contract"
	"github.com/nspcc-dev/neo-go/pkg/interop/native/neo"
	"github.com/nspcc-dev/neo-go/pkg/interop/runtime"
)

// CommitteeAddress returns the `M = N/2+1` multisignature address of the
// current committee.
func CommitteeAddress() []byte {
	committee := neo.GetCommittee()
	return contract.CreateMultisigAccount(len(committee)/2+1, committee)
}

// HasUpdateAccess returns true if contract can be updated.
func HasUpdateAccess() bool {
	return runtime.CheckWitness(CommitteeAddress())
}

// IsHash160 checks that h has the length of a script hash.
func IsHash160(h interop.Hash160) bool {
	return len(h) == interop.Hash160Len
}
