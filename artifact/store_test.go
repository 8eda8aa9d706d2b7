package artifact

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/multiformats/go-multihash"
	"github.com/nspcc-dev/neofs-authenticity/failure"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// cidV0 mimics what Kubo returns for small files with default settings.
func cidV0(t testing.TB, data []byte) string {
	mh, err := multihash.Sum(data, multihash.SHA2_256, -1)
	require.NoError(t, err)
	return base58.Encode(mh)
}

func newTestStore(t *testing.T, h http.HandlerFunc) *Store {
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	s, err := New(Options{
		Endpoint: srv.URL,
		Pin:      true,
		Logger:   zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	return s
}

func TestStore(t *testing.T) {
	data := []byte("hello")
	hash := cidV0(t, data)

	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, addPath, r.URL.Path)
		require.Equal(t, "true", r.URL.Query().Get("pin"))
		require.Equal(t, "0", r.URL.Query().Get("cid-version"))

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		require.Equal(t, "hello.png", hdr.Filename)

		got, err := io.ReadAll(f)
		require.NoError(t, err)
		require.Equal(t, data, got)

		fmt.Fprintf(w, `{"Name":"hello.png","Hash":%q,"Size":"13"}`+"\n", hash)
	})

	addr, err := s.Store(context.Background(), "hello.png", data)
	require.NoError(t, err)
	require.Equal(t, Address(hash), addr)

	id, err := addr.CID()
	require.NoError(t, err)
	require.EqualValues(t, 0, id.Version())
}

func TestStoreStreamedResponse(t *testing.T) {
	data := []byte("hello")
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"Name":"a","Hash":%q,"Size":"1"}`+"\n", cidV0(t, []byte("chunk")))
		fmt.Fprintf(w, `{"Name":"hello.png","Hash":%q,"Size":"13"}`+"\n", cidV0(t, data))
	})

	addr, err := s.Store(context.Background(), "hello.png", data)
	require.NoError(t, err)
	require.Equal(t, Address(cidV0(t, data)), addr)
}

func TestStoreFailures(t *testing.T) {
	for _, tc := range []struct {
		name    string
		handler http.HandlerFunc
		want    error
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "repo locked", http.StatusInternalServerError)
			},
			want: ErrRejected,
		},
		{
			name: "bad request",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "file argument 'path' is required", http.StatusBadRequest)
			},
			want: ErrRejected,
		},
		{
			name: "malformed json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"Hash":`)
			},
			want: ErrRejected,
		},
		{
			name: "missing hash",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"Name":"x"}`)
			},
			want: ErrRejected,
		},
		{
			name: "invalid cid",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"Name":"x","Hash":"not-a-cid"}`)
			},
			want: ErrRejected,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestStore(t, tc.handler)

			_, err := s.Store(context.Background(), "x", []byte("x"))
			require.ErrorIs(t, err, tc.want)
			require.Equal(t, failure.KindDependency, failure.KindOf(err))
		})
	}
}

func TestStoreUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	s, err := New(Options{Endpoint: endpoint})
	require.NoError(t, err)

	_, err = s.Store(context.Background(), "x", []byte("x"))
	require.ErrorIs(t, err, ErrUnreachable)
	require.Equal(t, failure.KindDependency, failure.KindOf(err))
}

func TestStoreCanceled(t *testing.T) {
	block := make(chan struct{})
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	})
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Store(ctx, "x", []byte("x"))
	require.ErrorIs(t, err, ErrUnreachable)
	require.ErrorIs(t, err, context.Canceled)
}

func TestNew(t *testing.T) {
	for _, opts := range []Options{
		{},
		{Endpoint: "ftp://127.0.0.1:5001"},
		{Endpoint: "http://127.0.0.1:5001", CIDVersion: 2},
		{Endpoint: "://bad"},
	} {
		_, err := New(opts)
		require.Error(t, err, opts)
	}

	s, err := New(Options{Endpoint: "http://127.0.0.1:5001/", CIDVersion: 1})
	require.NoError(t, err)
	require.Equal(t, "http://127.0.0.1:5001/api/v0/add?cid-version=1&pin=false&progress=false", s.addURL)
}

func TestAddressURL(t *testing.T) {
	a := Address("bafkreibm6jg3ux5qumhcn2b3flc3tyu6dmlb4xa7u5bf44yegnrjhc4yeq")

	require.Empty(t, a.URL(""))
	require.Empty(t, Address("").URL("https://ipfs.io"))
	require.Equal(t, "https://ipfs.io/ipfs/"+a.String(), a.URL("https://ipfs.io/"))
	require.Equal(t, "https://ipfs.io/ipfs/"+a.String(), a.URL("https://ipfs.io"))
}
