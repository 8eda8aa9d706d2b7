// Package artifact pushes uploaded content to a content-addressed store and
// returns its address.
//
// The store is an IPFS (Kubo) node reached through its HTTP RPC API. The
// client is deliberately thin: it performs exactly one request per Store
// call and never retries. Storing the same bytes twice may yield a second
// (content-identical) object, which is not an error.
package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/nspcc-dev/neofs-authenticity/failure"
	"go.uber.org/zap"
)

const addPath = "/api/v0/add"

// maxErrorBody limits how much of a rejection response is kept in the error.
const maxErrorBody = 512

var (
	// ErrUnreachable is returned when the store cannot be reached at all.
	ErrUnreachable = errors.New("artifact store unreachable")
	// ErrRejected is returned when the store answers with a non-2xx status
	// or an unusable body.
	ErrRejected = errors.New("artifact store rejected content")
)

// Address is an opaque content address assigned by the store. Repeated
// uploads of identical bytes are not guaranteed to get identical addresses.
type Address string

// String implements fmt.Stringer.
func (a Address) String() string { return string(a) }

// CID decodes the address as a content identifier.
func (a Address) CID() (cid.Cid, error) {
	return cid.Decode(string(a))
}

// URL returns the gateway link to the artifact, or an empty string if
// gateway is empty.
func (a Address) URL(gateway string) string {
	if gateway == "" || a == "" {
		return ""
	}
	return strings.TrimSuffix(gateway, "/") + "/ipfs/" + string(a)
}

// Options groups Store parameters.
type Options struct {
	// Base URL of the Kubo RPC API, e.g. http://127.0.0.1:5001. Required.
	Endpoint string

	// Client used for requests. Defaults to a client with Timeout.
	HTTPClient *http.Client

	// Request timeout of the default client. Defaults to 30s.
	Timeout time.Duration

	// Whether the node should pin added content.
	Pin bool

	// CID version requested from the node (0 or 1).
	CIDVersion int

	Logger *zap.Logger
}

// Store is a client of the artifact store. It is safe for concurrent use.
type Store struct {
	log    *zap.Logger
	client *http.Client
	addURL string
}

// New constructs Store from opts.
func New(opts Options) (*Store, error) {
	if opts.Endpoint == "" {
		return nil, errors.New("missing artifact store endpoint")
	}

	base, err := url.Parse(opts.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse artifact store endpoint: %w", err)
	}

	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("unsupported artifact store endpoint scheme %q", base.Scheme)
	}

	if opts.CIDVersion != 0 && opts.CIDVersion != 1 {
		return nil, fmt.Errorf("unsupported CID version %d", opts.CIDVersion)
	}

	base.Path = strings.TrimSuffix(base.Path, "/") + addPath

	q := base.Query()
	q.Set("pin", strconv.FormatBool(opts.Pin))
	q.Set("cid-version", strconv.Itoa(opts.CIDVersion))
	q.Set("progress", "false")
	base.RawQuery = q.Encode()

	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Store{
		log:    log,
		client: client,
		addURL: base.String(),
	}, nil
}

// addResponse is one JSON object of the add stream.
type addResponse struct {
	Name string `json:"Name"`
	Hash string `json:"Hash"`
	Size string `json:"Size"`
}

// Store uploads data under the given file name and returns the address
// assigned by the store. Failures are failure.KindDependency wrapping
// ErrUnreachable or ErrRejected.
func (s *Store) Store(ctx context.Context, name string, data []byte) (Address, error) {
	const op = "artifact.Store"

	body, contentType, err := multipartBody(name, data)
	if err != nil {
		return "", failure.New(failure.KindDependency, op, fmt.Errorf("%w: encode request: %w", ErrRejected, err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.addURL, body)
	if err != nil {
		return "", failure.New(failure.KindDependency, op, fmt.Errorf("%w: build request: %w", ErrUnreachable, err))
	}

	req.Header.Set("Content-Type", contentType)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", failure.New(failure.KindDependency, op, fmt.Errorf("%w: %w", ErrUnreachable, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", failure.New(failure.KindDependency, op,
			fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, strings.TrimSpace(string(msg))))
	}

	// the node streams one object per added entry, the last one is the root
	var last addResponse

	dec := json.NewDecoder(resp.Body)
	for {
		var next addResponse

		err = dec.Decode(&next)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", failure.New(failure.KindDependency, op, fmt.Errorf("%w: decode response: %w", ErrRejected, err))
		}

		last = next
	}

	if last.Hash == "" {
		return "", failure.New(failure.KindDependency, op, fmt.Errorf("%w: response carries no hash", ErrRejected))
	}

	id, err := cid.Decode(last.Hash)
	if err != nil {
		return "", failure.New(failure.KindDependency, op, fmt.Errorf("%w: invalid CID %q: %w", ErrRejected, last.Hash, err))
	}

	s.log.Debug("artifact stored",
		zap.String("name", name),
		zap.Int("size", len(data)),
		zap.Stringer("cid", id),
	)

	return Address(last.Hash), nil
}

func multipartBody(name string, data []byte) (io.Reader, string, error) {
	var buf bytes.Buffer

	w := multipart.NewWriter(&buf)

	if name == "" {
		name = "file"
	}

	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return nil, "", err
	}

	_, err = part.Write(data)
	if err != nil {
		return nil, "", err
	}

	err = w.Close()
	if err != nil {
		return nil, "", err
	}

	return &buf, w.FormDataContentType(), nil
}
