package gdrive

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agentllm/agentllm/internal/common"
	"github.com/agentllm/agentllm/internal/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type memStore struct {
	cred    *credentials.Credential
	upserts int
	err     error
}

func (m *memStore) Get(context.Context, string, string) (*credentials.Credential, error) {
	return m.cred, nil
}

func (m *memStore) Upsert(_ context.Context, _, _ string, c *credentials.Credential) error {
	m.upserts++
	if m.err != nil {
		return m.err
	}
	m.cred = c
	return nil
}

func (m *memStore) Delete(context.Context, string, string) error { return nil }

func tokenServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"fresh","token_type":"Bearer","expires_in":3600}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestTokenSource_PersistsRefresh(t *testing.T) {
	var hits int32
	srv := tokenServer(t, &hits)
	store := &memStore{cred: &credentials.Credential{
		AccessToken:  "stale",
		RefreshToken: "refresh",
		Expiry:       time.Now().Add(-time.Hour),
	}}
	cfg := oauth2.Config{ClientID: "id", Endpoint: oauth2.Endpoint{TokenURL: srv.URL}}

	ts, err := TokenSource(context.Background(), cfg, store, "alice", nil)
	require.NoError(t, err)

	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok.AccessToken)
	assert.Equal(t, 1, store.upserts)
	assert.Equal(t, "fresh", store.cred.AccessToken)
	assert.Equal(t, "refresh", store.cred.RefreshToken, "refresh token kept when not rotated")

	_, err = ts.Token()
	require.NoError(t, err)
	assert.Equal(t, 1, store.upserts, "unchanged token not rewritten")
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
}

func TestTokenSource_ValidTokenNotRefreshed(t *testing.T) {
	store := &memStore{cred: &credentials.Credential{AccessToken: "live", Expiry: time.Now().Add(time.Hour)}}
	ts, err := TokenSource(context.Background(), oauth2.Config{}, store, "alice", nil)
	require.NoError(t, err)

	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "live", tok.AccessToken)
	assert.Equal(t, 0, store.upserts)
}

func TestTokenSource_StoreFailureStillReturnsToken(t *testing.T) {
	var hits int32
	srv := tokenServer(t, &hits)
	store := &memStore{
		cred: &credentials.Credential{AccessToken: "stale", RefreshToken: "r", Expiry: time.Now().Add(-time.Hour)},
		err:  errors.New("disk full"),
	}
	ts, err := TokenSource(context.Background(), oauth2.Config{Endpoint: oauth2.Endpoint{TokenURL: srv.URL}}, store, "alice", nil)
	require.NoError(t, err)

	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok.AccessToken)
}

func TestTokenSource_UnresponsiveTokenEndpoint(t *testing.T) {
	withHTTPTimeout(t, 200*time.Millisecond)
	srv := hangingServer(t)
	store := &memStore{cred: &credentials.Credential{AccessToken: "stale", RefreshToken: "r", Expiry: time.Now().Add(-time.Hour)}}

	ts, err := TokenSource(context.Background(), oauth2.Config{Endpoint: oauth2.Endpoint{TokenURL: srv.URL}}, store, "alice", nil)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := ts.Token()
		done <- err
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Equal(t, 0, store.upserts)
	case <-time.After(5 * time.Second):
		t.Fatal("refresh against unresponsive token endpoint did not time out")
	}
}

func TestTokenSource_MissingCredential(t *testing.T) {
	_, err := TokenSource(context.Background(), oauth2.Config{}, &memStore{}, "nobody", nil)
	require.ErrorIs(t, err, common.ErrMissingCredential)
}
