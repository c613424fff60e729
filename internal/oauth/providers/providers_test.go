package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agentllm/agentllm/internal/common"
	"github.com/agentllm/agentllm/internal/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type fakeValidator struct {
	userID string
	err    error
}

func (f fakeValidator) Validate(string) (string, error) { return f.userID, f.err }

type fakeStore struct {
	err          error
	calls        int
	LastProvider string
	LastUserID   string
	LastCred     *credentials.Credential
}

func (f *fakeStore) Get(context.Context, string, string) (*credentials.Credential, error) {
	return f.LastCred, nil
}

func (f *fakeStore) Upsert(_ context.Context, provider, userID string, cred *credentials.Credential) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.LastProvider, f.LastUserID, f.LastCred = provider, userID, cred
	return nil
}

func (f *fakeStore) Delete(context.Context, string, string) error { return nil }

// fakeOAuth serves /token and /user; tokenHandler and userHandler may be
// swapped per test.
type fakeOAuth struct {
	srv          *httptest.Server
	tokenCalls   atomic.Int32
	userCalls    atomic.Int32
	tokenHandler http.HandlerFunc
	userHandler  http.HandlerFunc
}

func newFakeOAuth(t *testing.T) *fakeOAuth {
	t.Helper()
	f := &fakeOAuth{
		tokenHandler: jsonHandler(http.StatusOK,
			`{"access_token":"at","token_type":"bearer","refresh_token":"rt","expires_in":3600,"scope":"repo,read:user"}`),
		userHandler: jsonHandler(http.StatusOK, `{"login":"octocat","id":1}`),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		f.tokenHandler(w, r)
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		f.userCalls.Add(1)
		f.userHandler(w, r)
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeOAuth) endpoint() oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:   f.srv.URL + "/authorize",
		TokenURL:  f.srv.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
}

func jsonHandler(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = fmt.Fprint(w, body)
	}
}

func testConfig() Config {
	return Config{
		Google:  ClientConfig{ClientID: "gid", ClientSecret: "gsecret"},
		GitHub:  ClientConfig{ClientID: "hid", ClientSecret: "hsecret"},
		Timeout: 2 * time.Second,
	}
}

func newGitHub(f *fakeOAuth, v StateValidator, store credentials.Store, opts ...Option) *GitHubProvider {
	opts = append([]Option{WithEndpoint(f.endpoint()), WithAPIBaseURL(f.srv.URL)}, opts...)
	return NewGitHubProvider(testConfig(), v, store, opts...)
}

func TestGitHub_Success(t *testing.T) {
	f := newFakeOAuth(t)
	store := &fakeStore{}
	var gotCode, gotRedirect, gotAuth string
	f.tokenHandler = func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		gotCode, gotRedirect = r.PostForm.Get("code"), r.PostForm.Get("redirect_uri")
		jsonHandler(http.StatusOK, `{"access_token":"at","token_type":"bearer","scope":"repo,read:user"}`)(w, r)
	}
	f.userHandler = func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		jsonHandler(http.StatusOK, `{"login":"octocat"}`)(w, r)
	}

	p := newGitHub(f, fakeValidator{userID: "u1"}, store)
	ok, msg := p.ExchangeCodeForToken(context.Background(), "the-code", "state", "http://localhost/cb")

	require.True(t, ok, msg)
	assert.Equal(t, "Successfully authenticated octocat", msg)
	assert.Equal(t, "the-code", gotCode)
	assert.Equal(t, "http://localhost/cb", gotRedirect)
	assert.Equal(t, "Bearer at", gotAuth)

	assert.Equal(t, common.ProviderGitHub, store.LastProvider)
	assert.Equal(t, "u1", store.LastUserID)
	require.NotNil(t, store.LastCred)
	assert.Equal(t, "at", store.LastCred.AccessToken)
	assert.Equal(t, []string{"repo", "read:user"}, store.LastCred.Scopes)
}

func TestGoogle_SuccessNamesUser(t *testing.T) {
	f := newFakeOAuth(t)
	store := &fakeStore{}
	f.tokenHandler = jsonHandler(http.StatusOK, `{"access_token":"gat","token_type":"Bearer","refresh_token":"grt","expires_in":3600}`)

	p := NewGoogleDriveProvider(testConfig(), fakeValidator{userID: "alice"}, store, WithEndpoint(f.endpoint()))
	ok, msg := p.ExchangeCodeForToken(context.Background(), "c", "s", "http://localhost/cb")

	require.True(t, ok, msg)
	assert.Equal(t, "Successfully authenticated alice", msg)
	assert.Equal(t, common.ProviderGoogle, store.LastProvider)
	assert.Equal(t, "grt", store.LastCred.RefreshToken)
	assert.Equal(t, []string{GoogleDriveScope}, store.LastCred.Scopes)
	assert.False(t, store.LastCred.Expiry.IsZero())
	assert.EqualValues(t, 0, f.userCalls.Load(), "google does not call an identity endpoint")
}

func TestExchange_StateFailuresSkipRemote(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"expired", common.ErrStateTokenExpired, MsgStateExpired},
		{"invalid", common.ErrStateTokenInvalid, MsgStateInvalid},
		{"other", errors.New("weird"), MsgStateInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeOAuth(t)
			store := &fakeStore{}
			p := newGitHub(f, fakeValidator{err: tt.err}, store)

			ok, msg := p.ExchangeCodeForToken(context.Background(), "c", "s", "r")
			assert.False(t, ok)
			assert.Equal(t, tt.want, msg)
			assert.EqualValues(t, 0, f.tokenCalls.Load())
			assert.Equal(t, 0, store.calls)
		})
	}
}

func TestExchange_RemoteAndLibraryFailures(t *testing.T) {
	tests := []struct {
		name  string
		token http.HandlerFunc
		user  http.HandlerFunc
		want  string
	}{
		{
			name:  "token endpoint 400",
			token: jsonHandler(http.StatusBadRequest, `{"error":"invalid_grant"}`),
			want:  "GitHub authorization failed, try again",
		},
		{
			name:  "error field with 200",
			token: jsonHandler(http.StatusOK, `{"error":"bad_verification_code","error_description":"The code passed is incorrect or expired."}`),
			want:  "GitHub authorization failed, try again",
		},
		{
			name: "token endpoint 500 html",
			token: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "<html>oops</html>", http.StatusInternalServerError)
			},
			want: "GitHub authorization failed, try again",
		},
		{
			name:  "missing access token",
			token: jsonHandler(http.StatusOK, `{"token_type":"bearer"}`),
			want:  "GitHub authentication failed",
		},
		{
			name:  "malformed json",
			token: jsonHandler(http.StatusOK, `{not json`),
			want:  "GitHub authentication failed",
		},
		{
			name: "identity lookup 401",
			user: jsonHandler(http.StatusUnauthorized, `{"message":"Bad credentials"}`),
			want: "GitHub authorization failed, try again",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeOAuth(t)
			if tt.token != nil {
				f.tokenHandler = tt.token
			}
			if tt.user != nil {
				f.userHandler = tt.user
			}
			store := &fakeStore{}
			p := newGitHub(f, fakeValidator{userID: "u1"}, store)

			ok, msg := p.ExchangeCodeForToken(context.Background(), "c", "s", "r")
			assert.False(t, ok)
			assert.Equal(t, tt.want, msg)
			assert.Equal(t, 0, store.calls, "nothing is stored on failure")
		})
	}
}

func TestExchange_Timeout(t *testing.T) {
	f := newFakeOAuth(t)
	f.tokenHandler = func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}

	p := newGitHub(f, fakeValidator{userID: "u1"}, &fakeStore{},
		WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}))

	ok, msg := p.ExchangeCodeForToken(context.Background(), "c", "s", "r")
	assert.False(t, ok)
	assert.Equal(t, MsgTimeout, msg)
}

func TestExchange_ConnectionRefused(t *testing.T) {
	f := newFakeOAuth(t)
	ep := f.endpoint()
	f.srv.Close()

	p := NewGitHubProvider(testConfig(), fakeValidator{userID: "u1"}, &fakeStore{}, WithEndpoint(ep))
	ok, msg := p.ExchangeCodeForToken(context.Background(), "c", "s", "r")
	assert.False(t, ok)
	assert.Equal(t, "GitHub authorization failed, try again", msg)
}

func TestExchange_StoreFailure(t *testing.T) {
	f := newFakeOAuth(t)
	store := &fakeStore{err: errors.New("disk full")}
	p := newGitHub(f, fakeValidator{userID: "u1"}, store)

	ok, msg := p.ExchangeCodeForToken(context.Background(), "c", "s", "r")
	assert.False(t, ok)
	assert.Equal(t, MsgSaveFailed, msg)
	assert.Equal(t, 1, store.calls)
}

func TestExchange_NotConfigured(t *testing.T) {
	f := newFakeOAuth(t)
	cfg := testConfig()
	cfg.GitHub.ClientSecret = ""
	p := NewGitHubProvider(cfg, fakeValidator{userID: "u1"}, &fakeStore{}, WithEndpoint(f.endpoint()))

	assert.False(t, p.IsConfigured())
	ok, msg := p.ExchangeCodeForToken(context.Background(), "c", "s", "r")
	assert.False(t, ok)
	assert.Equal(t, "GitHub is not configured", msg)
	assert.EqualValues(t, 0, f.tokenCalls.Load())
}

func TestAuthCodeURL(t *testing.T) {
	f := newFakeOAuth(t)

	g := NewGoogleDriveProvider(testConfig(), fakeValidator{}, &fakeStore{}, WithEndpoint(f.endpoint()))
	u, err := url.Parse(g.AuthCodeURL("tok", "http://localhost/oauth/google/callback"))
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "tok", q.Get("state"))
	assert.Equal(t, "gid", q.Get("client_id"))
	assert.Equal(t, "http://localhost/oauth/google/callback", q.Get("redirect_uri"))
	assert.Equal(t, GoogleDriveScope, q.Get("scope"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))

	h := newGitHub(f, fakeValidator{}, &fakeStore{})
	u, err = url.Parse(h.AuthCodeURL("tok2", "http://localhost/oauth/github/callback"))
	require.NoError(t, err)
	assert.Equal(t, "tok2", u.Query().Get("state"))
	assert.Equal(t, "repo read:user", u.Query().Get("scope"))
	assert.Empty(t, u.Query().Get("access_type"))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, failTimeout, classify(context.DeadlineExceeded))
	assert.Equal(t, failTimeout, classify(fmt.Errorf("wrapped: %w", context.DeadlineExceeded)))
	assert.Equal(t, failRemote, classify(&oauth2.RetrieveError{ErrorCode: "invalid_grant"}))
	assert.Equal(t, failLibrary, classify(errors.New("oauth2: server response missing access_token")))
}
