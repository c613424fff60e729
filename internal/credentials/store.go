package credentials

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/agentllm/agentllm/internal/common"
	"github.com/agentllm/agentllm/internal/cryptox"
	"github.com/agentllm/agentllm/internal/logging"
	"github.com/agentllm/agentllm/internal/models"
	credrepo "github.com/agentllm/agentllm/internal/repositories/credentials"
	"github.com/agentllm/agentllm/internal/repositories/metadata"
)

const (
	// SaltKey is the metadata key holding the key-derivation salt.
	SaltKey = "credentials_kdf_salt"
	// KeyCheckKey holds a sealed marker written with the first key used on
	// the database.
	KeyCheckKey = "credentials_key_check"

	keyCheckMarker = "agentllm-credentials"
	nonceSize      = 12
)

// EncryptedStore seals credentials with AES-GCM before handing them to the
// repository. Writes to the same (provider, user id) are serialized.
type EncryptedStore struct {
	repo credrepo.Repository
	key  []byte
	now  func() time.Time
	log  logging.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

type StoreOption func(*EncryptedStore)

func WithClock(now func() time.Time) StoreOption {
	return func(s *EncryptedStore) { s.now = now }
}

func WithLogger(l logging.Logger) StoreOption {
	return func(s *EncryptedStore) { s.log = l }
}

// NewEncryptedStore derives the encryption key from secret and the salt kept
// in meta, creating the salt on first use.
func NewEncryptedStore(ctx context.Context, repo credrepo.Repository, meta metadata.Repository, secret string, opts ...StoreOption) (*EncryptedStore, error) {
	if secret == "" {
		return nil, common.ErrMissingEncryptionKey
	}

	fresh, err := common.RandomBytes(cryptox.SaltSize)
	if err != nil {
		return nil, err
	}
	salt, err := meta.SetIfAbsent(ctx, SaltKey, fresh)
	if err != nil {
		return nil, fmt.Errorf("load kdf salt: %w", err)
	}
	if len(salt) == 0 {
		return nil, errors.New("load kdf salt: empty salt")
	}

	key, err := cryptox.DeriveKey([]byte(secret), salt)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	if err := verifyKey(ctx, meta, key); err != nil {
		return nil, err
	}

	s := &EncryptedStore{
		repo:  repo,
		key:   key,
		now:   time.Now,
		log:   logging.Nop(),
		locks: make(map[string]*sync.Mutex),
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// verifyKey seals the marker on first use and otherwise checks that key
// opens the stored one, so a changed secret fails at startup rather than on
// the first credential read.
func verifyKey(ctx context.Context, meta metadata.Repository, key []byte) error {
	ciphertext, nonce, err := cryptox.EncryptEntry(keyCheckMarker, key)
	if err != nil {
		return fmt.Errorf("seal key check: %w", err)
	}
	stored, err := meta.SetIfAbsent(ctx, KeyCheckKey, append(nonce, ciphertext...))
	if err != nil {
		return fmt.Errorf("load key check: %w", err)
	}
	if len(stored) <= nonceSize {
		return fmt.Errorf("load key check: %d byte record", len(stored))
	}

	var marker string
	if err := cryptox.DecryptEntry(stored[nonceSize:], stored[:nonceSize], key, &marker); err != nil || marker != keyCheckMarker {
		return common.ErrWrongEncryptionKey
	}
	return nil
}

func (s *EncryptedStore) lockFor(provider, userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := provider + "\x00" + userID
	l, ok := s.locks[k]
	if !ok {
		l = &sync.Mutex{}
		s.locks[k] = l
	}
	return l
}

func (s *EncryptedStore) Get(ctx context.Context, provider, userID string) (*Credential, error) {
	rec, err := s.repo.Get(ctx, provider, userID)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", err)
	}

	cred := &Credential{}
	if err := cryptox.DecryptEntry(rec.Ciphertext, rec.Nonce, s.key, cred); err != nil {
		return nil, fmt.Errorf("decrypt credential %s/%s: %w", provider, userID, err)
	}
	cred.Provider = provider
	cred.UserID = userID
	cred.UpdatedAt = rec.UpdatedAt
	return cred, nil
}

// Upsert stores a copy of cred under (provider, userID); the key fields
// of cred itself are ignored.
func (s *EncryptedStore) Upsert(ctx context.Context, provider, userID string, cred *Credential) error {
	if cred == nil {
		return errors.New("nil credential")
	}

	l := s.lockFor(provider, userID)
	l.Lock()
	defer l.Unlock()

	c := *cred
	c.Provider = provider
	c.UserID = userID
	c.UpdatedAt = s.now().UTC()

	ciphertext, nonce, err := cryptox.EncryptEntry(c, s.key)
	if err != nil {
		return fmt.Errorf("encrypt credential: %w", err)
	}

	err = s.repo.Upsert(ctx, &models.CredentialRecord{
		Provider:   provider,
		UserID:     userID,
		Ciphertext: ciphertext,
		Nonce:      nonce,
		UpdatedAt:  c.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("store credential: %w", err)
	}

	s.log.Info(ctx, "credential stored", "provider", provider, "user_id", userID)
	return nil
}

func (s *EncryptedStore) Delete(ctx context.Context, provider, userID string) error {
	l := s.lockFor(provider, userID)
	l.Lock()
	defer l.Unlock()

	if err := s.repo.Delete(ctx, provider, userID); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}

// Providers lists the providers userID holds a credential for.
func (s *EncryptedStore) Providers(ctx context.Context, userID string) ([]string, error) {
	recs, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Provider)
	}
	return out, nil
}
