package credentials

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/agentllm/agentllm/internal/common"
	"github.com/agentllm/agentllm/internal/models"
	"github.com/agentllm/agentllm/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func openStorage(t *testing.T) storage.RepositoryManager {
	t.Helper()
	m, err := storage.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func newStore(t *testing.T, m storage.RepositoryManager, secret string) *EncryptedStore {
	t.Helper()
	s, err := NewEncryptedStore(context.Background(), m.Credentials(), m.Metadata(), secret,
		WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	return s
}

func TestNewEncryptedStore_EmptySecret(t *testing.T) {
	m := openStorage(t)
	_, err := NewEncryptedStore(context.Background(), m.Credentials(), m.Metadata(), "")
	require.ErrorIs(t, err, common.ErrMissingEncryptionKey)
}

func TestNewEncryptedStore_CreatesSaltOnce(t *testing.T) {
	m := openStorage(t)
	ctx := context.Background()

	newStore(t, m, "k")
	salt1, err := m.Metadata().Get(ctx, SaltKey)
	require.NoError(t, err)
	require.NotEmpty(t, salt1)

	newStore(t, m, "k")
	salt2, err := m.Metadata().Get(ctx, SaltKey)
	require.NoError(t, err)
	assert.Equal(t, salt1, salt2)
}

func TestEncryptedStore_RoundTrip(t *testing.T) {
	m := openStorage(t)
	s := newStore(t, m, "k")
	ctx := context.Background()

	in := &Credential{
		AccessToken:  "at",
		RefreshToken: "rt",
		TokenType:    "Bearer",
		Expiry:       fixedNow.Add(time.Hour),
		Scopes:       []string{"repo", "read:user"},
	}
	require.NoError(t, s.Upsert(ctx, common.ProviderGitHub, "u1", in))

	got, err := s.Get(ctx, common.ProviderGitHub, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, common.ProviderGitHub, got.Provider)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, "at", got.AccessToken)
	assert.Equal(t, "rt", got.RefreshToken)
	assert.Equal(t, []string{"repo", "read:user"}, got.Scopes)
	assert.True(t, got.Expiry.Equal(fixedNow.Add(time.Hour)))
	assert.True(t, got.UpdatedAt.Equal(fixedNow))

	// the caller's value is not mutated
	assert.Empty(t, in.Provider)
}

func TestEncryptedStore_CiphertextDoesNotContainToken(t *testing.T) {
	m := openStorage(t)
	s := newStore(t, m, "k")
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, common.ProviderJira, "u1", &Credential{AccessToken: "plain-token-value"}))

	rec, err := m.Credentials().Get(ctx, common.ProviderJira, "u1")
	require.NoError(t, err)
	assert.NotContains(t, string(rec.Ciphertext), "plain-token-value")
}

func TestEncryptedStore_GetMissing(t *testing.T) {
	s := newStore(t, openStorage(t), "k")

	got, err := s.Get(context.Background(), common.ProviderJira, "nobody")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestEncryptedStore_OverwriteReplaces(t *testing.T) {
	s := newStore(t, openStorage(t), "k")
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, common.ProviderJira, "u1", &Credential{AccessToken: "t1", ServerURL: "https://jira.example"}))
	require.NoError(t, s.Upsert(ctx, common.ProviderJira, "u1", &Credential{AccessToken: "t2"}))

	got, err := s.Get(ctx, common.ProviderJira, "u1")
	require.NoError(t, err)
	assert.Equal(t, "t2", got.AccessToken)
	assert.Empty(t, got.ServerURL, "upsert overwrites, never merges")
}

func TestNewEncryptedStore_WrongSecretRejected(t *testing.T) {
	m := openStorage(t)
	ctx := context.Background()

	require.NoError(t, newStore(t, m, "right").Upsert(ctx, common.ProviderGoogle, "u1", &Credential{AccessToken: "at"}))

	_, err := NewEncryptedStore(ctx, m.Credentials(), m.Metadata(), "wrong")
	require.ErrorIs(t, err, common.ErrWrongEncryptionKey)

	// the first secret still opens the database
	got, err := newStore(t, m, "right").Get(ctx, common.ProviderGoogle, "u1")
	require.NoError(t, err)
	assert.Equal(t, "at", got.AccessToken)
}

func TestEncryptedStore_TamperedRecordFailsDecryption(t *testing.T) {
	m := openStorage(t)
	s := newStore(t, m, "k")
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, common.ProviderGoogle, "u1", &Credential{AccessToken: "at"}))
	rec, err := m.Credentials().Get(ctx, common.ProviderGoogle, "u1")
	require.NoError(t, err)
	rec.Ciphertext[0] ^= 0xff
	require.NoError(t, m.Credentials().Upsert(ctx, rec))

	_, err = s.Get(ctx, common.ProviderGoogle, "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decrypt credential google/u1")
}

func TestEncryptedStore_DeleteAndProviders(t *testing.T) {
	s := newStore(t, openStorage(t), "k")
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, common.ProviderGoogle, "u1", &Credential{AccessToken: "a"}))
	require.NoError(t, s.Upsert(ctx, common.ProviderJira, "u1", &Credential{AccessToken: "b"}))

	names, err := s.Providers(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"google", "jira"}, names)

	require.NoError(t, s.Delete(ctx, common.ProviderGoogle, "u1"))
	got, err := s.Get(ctx, common.ProviderGoogle, "u1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestEncryptedStore_ConcurrentWritesLastWins(t *testing.T) {
	s := newStore(t, openStorage(t), "k")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Upsert(ctx, common.ProviderGitHub, "u1", &Credential{AccessToken: "tok"}))
		}()
	}
	wg.Wait()

	got, err := s.Get(ctx, common.ProviderGitHub, "u1")
	require.NoError(t, err)
	assert.Equal(t, "tok", got.AccessToken)
}

type failingRepo struct {
	getErr    error
	upsertErr error
}

func (f *failingRepo) Get(context.Context, string, string) (*models.CredentialRecord, error) {
	return nil, f.getErr
}
func (f *failingRepo) Upsert(context.Context, *models.CredentialRecord) error { return f.upsertErr }
func (f *failingRepo) Delete(context.Context, string, string) error           { return nil }
func (f *failingRepo) ListByUser(context.Context, string) ([]models.CredentialRecord, error) {
	return nil, nil
}

func TestEncryptedStore_RepositoryErrorsWrapped(t *testing.T) {
	m := openStorage(t)
	boom := errors.New("boom")
	s, err := NewEncryptedStore(context.Background(), &failingRepo{getErr: boom, upsertErr: boom}, m.Metadata(), "k")
	require.NoError(t, err)

	_, err = s.Get(context.Background(), "github", "u1")
	require.ErrorIs(t, err, boom)

	err = s.Upsert(context.Background(), "github", "u1", &Credential{AccessToken: "x"})
	require.ErrorIs(t, err, boom)

	require.Error(t, s.Upsert(context.Background(), "github", "u1", nil))
}

func TestOAuth2Conversion(t *testing.T) {
	tok := &oauth2.Token{AccessToken: "a", RefreshToken: "r", TokenType: "Bearer", Expiry: fixedNow}
	c := FromOAuth2Token(tok, []string{"s"})
	assert.Equal(t, []string{"s"}, c.Scopes)

	back := c.OAuth2Token()
	assert.Equal(t, tok.AccessToken, back.AccessToken)
	assert.Equal(t, tok.RefreshToken, back.RefreshToken)
	assert.Equal(t, tok.TokenType, back.TokenType)
	assert.True(t, back.Expiry.Equal(fixedNow))
}
