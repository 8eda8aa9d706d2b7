// Package fingerprint computes content fingerprints of uploaded media.
//
// A fingerprint is the SHA-256 digest of the content bytes only: file name,
// upload time and any other metadata never contribute to it, so identical
// bytes always produce the identical fingerprint.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"github.com/nspcc-dev/neofs-authenticity/failure"
)

// Size is the fingerprint length in bytes.
const Size = sha256.Size

// Fingerprint is a content digest. The zero value is not a valid
// fingerprint of any content.
type Fingerprint [Size]byte

// ErrEmpty is returned for content without bytes.
var ErrEmpty = errors.New("empty content")

// Of returns the fingerprint of data.
func Of(data []byte) Fingerprint {
	return sha256.Sum256(data)
}

// FromReader reads r to the end and returns the fingerprint of everything
// read. Read failures (e.g. a truncated upload) are reported as
// failure.KindInput and are never retried.
func FromReader(r io.Reader) (Fingerprint, error) {
	var res Fingerprint

	h := sha256.New()

	n, err := io.Copy(h, r)
	if err != nil {
		return res, failure.New(failure.KindInput, "fingerprint.FromReader", fmt.Errorf("read content: %w", err))
	}

	if n == 0 {
		return res, failure.New(failure.KindInput, "fingerprint.FromReader", ErrEmpty)
	}

	copy(res[:], h.Sum(nil))

	return res, nil
}

// Parse decodes the hex form produced by String. A leading "0x" is
// accepted.
func Parse(s string) (Fingerprint, error) {
	var res Fingerprint

	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s) != 2*Size {
		return res, fmt.Errorf("invalid fingerprint length %d, expected %d hex chars", len(s), 2*Size)
	}

	_, err := hex.Decode(res[:], []byte(s))
	if err != nil {
		return res, fmt.Errorf("decode fingerprint hex: %w", err)
	}

	return res, nil
}

// String returns lowercase hex without prefix.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// Bytes returns the raw digest. The ledger stores this form, never the hex
// string.
func (f Fingerprint) Bytes() []byte {
	b := make([]byte, Size)
	copy(b, f[:])
	return b
}

// IsZero checks whether f is the zero value.
func (f Fingerprint) IsZero() bool {
	return f == Fingerprint{}
}

// CID returns the CIDv1 (raw codec, sha2-256 multihash) addressing the same
// bytes. It matches what content-addressed stores produce for single raw
// blocks and is handy for cross-referencing.
func (f Fingerprint) CID() cid.Cid {
	mh, err := multihash.Encode(f[:], multihash.SHA2_256)
	if err != nil {
		// only fails for unknown codes or mismatched digest length, both fixed here
		panic(fmt.Sprintf("encode sha2-256 multihash: %v", err))
	}
	return cid.NewCidV1(cid.Raw, mh)
}

// MarshalText implements encoding.TextMarshaler.
func (f Fingerprint) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Fingerprint) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}
