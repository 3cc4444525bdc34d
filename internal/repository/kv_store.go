package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/repocerti-api/internal/models"
	appErrors "github.com/noah-isme/repocerti-api/pkg/errors"
)

const (
	accountsCollection = "accounts"
	recordsCollection  = "records"
)

// QueryObserver receives store operation timings.
type QueryObserver interface {
	ObserveDBQuery(label string, duration time.Duration)
}

// KVStore keeps accounts and records as two JSON arrays under namespaced keys.
// Every mutation rewrites the whole collection. Malformed collections are
// logged and treated as empty. Backend read failures are tolerated on reads
// but abort mutations, so a failed Get never leads to an overwriting Set. The mutex only serializes writers inside this
// process; separate processes sharing a backend still race and the last
// write wins.
type KVStore struct {
	backend   KVBackend
	namespace string
	logger    *zap.Logger
	observer  QueryObserver
	now       func() time.Time

	mu sync.Mutex
}

// NewKVStore builds a store over the given backend.
func NewKVStore(backend KVBackend, namespace string, logger *zap.Logger, observer QueryObserver) *KVStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if namespace == "" {
		namespace = "repocerti_db"
	}
	return &KVStore{
		backend:   backend,
		namespace: namespace,
		logger:    logger,
		observer:  observer,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateAccount appends the account unless its email is already registered.
func (s *KVStore) CreateAccount(ctx context.Context, account *models.Account) error {
	defer s.observe("create_account", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := loadCollection[models.Account](ctx, s, accountsCollection)
	if err != nil {
		return err
	}
	email := models.NormalizeEmail(account.Email)
	for _, existing := range accounts {
		if models.NormalizeEmail(existing.Email) == email {
			return appErrors.ErrDuplicateEmail
		}
	}

	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = s.now()
	}
	account.Email = email

	accounts = append(accounts, *account)
	return s.save(ctx, accountsCollection, accounts)
}

// FindAccountByEmail returns nil without error when nothing matches.
func (s *KVStore) FindAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	defer s.observe("find_account_by_email", time.Now())
	email = models.NormalizeEmail(email)
	for _, account := range s.loadAccounts(ctx) {
		if models.NormalizeEmail(account.Email) == email {
			found := account
			return &found, nil
		}
	}
	return nil, nil
}

// FindAccountByID returns nil without error when nothing matches.
func (s *KVStore) FindAccountByID(ctx context.Context, id string) (*models.Account, error) {
	defer s.observe("find_account_by_id", time.Now())
	for _, account := range s.loadAccounts(ctx) {
		if account.ID == id {
			found := account
			return &found, nil
		}
	}
	return nil, nil
}

// UpdateAccountDesignation rewrites one account's designation. Stored records keep their snapshot.
func (s *KVStore) UpdateAccountDesignation(ctx context.Context, id string, designation models.Designation) (*models.Account, error) {
	defer s.observe("update_account_designation", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := loadCollection[models.Account](ctx, s, accountsCollection)
	if err != nil {
		return nil, err
	}
	for i := range accounts {
		if accounts[i].ID != id {
			continue
		}
		accounts[i].Designation = designation
		if err := s.save(ctx, accountsCollection, accounts); err != nil {
			return nil, err
		}
		updated := accounts[i]
		return &updated, nil
	}
	return nil, nil
}

// SaveRecord assigns an id and creation time, then appends the record.
func (s *KVStore) SaveRecord(ctx context.Context, record *models.StoredRecord) (*models.StoredRecord, error) {
	defer s.observe("save_record", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := loadCollection[models.StoredRecord](ctx, s, recordsCollection)
	if err != nil {
		return nil, err
	}
	stored := *record
	stored.ID = uuid.NewString()
	stored.CreatedAt = s.now()

	records = append(records, stored)
	if err := s.save(ctx, recordsCollection, records); err != nil {
		return nil, err
	}
	return &stored, nil
}

// ListRecordsForAccount returns the account's records in insertion order.
func (s *KVStore) ListRecordsForAccount(ctx context.Context, accountID string) ([]models.StoredRecord, error) {
	defer s.observe("list_records_for_account", time.Now())
	owned := make([]models.StoredRecord, 0)
	for _, record := range s.loadRecords(ctx) {
		if record.OwnerID == accountID {
			owned = append(owned, record)
		}
	}
	return owned, nil
}

// ListRecords returns the full collection in insertion order.
func (s *KVStore) ListRecords(ctx context.Context) ([]models.StoredRecord, error) {
	defer s.observe("list_records", time.Now())
	return s.loadRecords(ctx), nil
}

func (s *KVStore) loadAccounts(ctx context.Context) []models.Account {
	accounts, err := loadCollection[models.Account](ctx, s, accountsCollection)
	if err != nil {
		s.logStorageRead(s.key(accountsCollection), err)
		return make([]models.Account, 0)
	}
	return accounts
}

func (s *KVStore) loadRecords(ctx context.Context) []models.StoredRecord {
	records, err := loadCollection[models.StoredRecord](ctx, s, recordsCollection)
	if err != nil {
		s.logStorageRead(s.key(recordsCollection), err)
		return make([]models.StoredRecord, 0)
	}
	return records
}

// loadCollection decodes one collection. A missing key or malformed payload
// yields an empty slice; any other backend error is returned to the caller.
func loadCollection[T any](ctx context.Context, s *KVStore, collection string) ([]T, error) {
	empty := make([]T, 0)
	key := s.key(collection)
	raw, err := s.backend.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return empty, nil
		}
		return nil, fmt.Errorf("load %s: %w", collection, err)
	}
	if len(raw) == 0 {
		return empty, nil
	}
	var decoded []T
	if err := json.Unmarshal(raw, &decoded); err != nil {
		s.logStorageRead(key, err)
		return empty, nil
	}
	if decoded == nil {
		return empty, nil
	}
	return decoded, nil
}

func (s *KVStore) logStorageRead(key string, err error) {
	readErr := appErrors.Wrap(err, appErrors.ErrStorageRead.Code, appErrors.ErrStorageRead.Status, appErrors.ErrStorageRead.Message)
	s.logger.Warn("treating unreadable collection as empty", zap.String("key", key), zap.Error(readErr))
}

func (s *KVStore) save(ctx context.Context, collection string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", collection, err)
	}
	if err := s.backend.Set(ctx, s.key(collection), payload); err != nil {
		return fmt.Errorf("persist %s: %w", collection, err)
	}
	return nil
}

func (s *KVStore) key(collection string) string {
	return s.namespace + ":" + collection
}

func (s *KVStore) observe(label string, start time.Time) {
	if s.observer != nil {
		s.observer.ObserveDBQuery("kv_"+label, time.Since(start))
	}
}
