package rdap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) (*Client, *atomic.Int32) {
	t.Helper()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	regs := Registries{"ai": srv.URL + "/rdap/domain/"}
	opts = append([]Option{WithHTTPClient(srv.Client())}, opts...)
	return NewClient(regs, opts...), &hits
}

func TestLookupClassifiesStatus(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rdap/domain/abcd.ai":
			w.WriteHeader(http.StatusNotFound)
		case "/rdap/domain/efgh.ai":
			w.Header().Set("Content-Type", AcceptHeader)
			_, _ = w.Write([]byte(`{"objectClassName":"domain"}`))
		default:
			w.WriteHeader(http.StatusTooManyRequests)
		}
	})

	ctx := context.Background()

	res, err := c.Lookup(ctx, "abcd.ai", "ai")
	require.NoError(t, err)
	assert.Equal(t, Available, res.Outcome)
	assert.Equal(t, http.StatusNotFound, res.Status)
	assert.NoError(t, res.Err)

	res, err = c.Lookup(ctx, "efgh.ai", "ai")
	require.NoError(t, err)
	assert.Equal(t, Taken, res.Outcome)

	res, err = c.Lookup(ctx, "ijkl.ai", "AI")
	require.NoError(t, err)
	assert.Equal(t, Unresolved, res.Outcome)
	assert.Equal(t, http.StatusTooManyRequests, res.Status)
	assert.ErrorIs(t, res.Err, ErrLookupUnexpectedStatus)
}

func TestLookupSendsRDAPAcceptHeader(t *testing.T) {
	t.Parallel()

	var accept atomic.Value
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		accept.Store(r.Header.Get("Accept"))
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.Lookup(context.Background(), "abcd.ai", "ai")
	require.NoError(t, err)
	assert.Equal(t, AcceptHeader, accept.Load())
}

func TestLookupTimeoutIsTransportError(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, WithTimeout(50*time.Millisecond))
	defer close(release)

	start := time.Now()
	res, err := c.Lookup(context.Background(), "ijkl.ai", "ai")
	require.NoError(t, err)
	assert.Equal(t, Unresolved, res.Outcome)
	assert.Zero(t, res.Status)
	assert.ErrorIs(t, res.Err, ErrLookupTransport)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestLookupUnknownRegistrySendsNothing(t *testing.T) {
	t.Parallel()

	c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.Lookup(context.Background(), "abcd.xyz", "xyz")
	require.ErrorIs(t, err, ErrUnknownRegistry)
	assert.Zero(t, hits.Load())
}

func TestLookupConnectionRefusedIsTransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(Registries{"ai": url + "/"}, WithTimeout(time.Second))
	res, err := c.Lookup(context.Background(), "abcd.ai", "ai")
	require.NoError(t, err)
	assert.Equal(t, Unresolved, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrLookupTransport)
}

func TestRegistriesMergeAndNames(t *testing.T) {
	t.Parallel()

	regs := DefaultRegistries().Merge(map[string]string{"XYZ": " https://rdap.example/domain/ ", "ai": "https://alt/"})

	assert.Equal(t, []string{"ai", "com", "io", "net", "xyz"}, regs.Names())
	ep, err := regs.Endpoint("xyz")
	require.NoError(t, err)
	assert.Equal(t, "https://rdap.example/domain/", ep)
	ep, err = regs.Endpoint("AI")
	require.NoError(t, err)
	assert.Equal(t, "https://alt/", ep)

	_, err = regs.Endpoint("org")
	assert.ErrorIs(t, err, ErrUnknownRegistry)
	assert.Equal(t, "abcd.ai", DomainName("abcd", "AI"))
}

func TestOutcomeString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "available", Available.String())
	assert.Equal(t, "taken", Taken.String())
	assert.Equal(t, "unresolved", Unresolved.String())
}
