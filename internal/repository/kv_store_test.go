package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/repocerti-api/internal/models"
	appErrors "github.com/noah-isme/repocerti-api/pkg/errors"
)

type failingBackend struct {
	getErr error
	setErr error
}

func (b *failingBackend) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, b.getErr
}

func (b *failingBackend) Set(ctx context.Context, key string, value []byte) error {
	return b.setErr
}

type recordingObserver struct {
	labels []string
}

func (o *recordingObserver) ObserveDBQuery(label string, duration time.Duration) {
	o.labels = append(o.labels, label)
}

func newMemoryStore() (*KVStore, *MemoryBackend) {
	backend := NewMemoryBackend()
	return NewKVStore(backend, "test", zap.NewNop(), nil), backend
}

func TestKVStoreCreateAccountRejectsCaseInsensitiveDuplicate(t *testing.T) {
	store, _ := newMemoryStore()
	ctx := context.Background()

	first := &models.Account{Username: "ana", Email: "Ana@Example.com", Role: models.RoleStudent}
	require.NoError(t, store.CreateAccount(ctx, first))
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, "ana@example.com", first.Email)
	assert.False(t, first.CreatedAt.IsZero())

	err := store.CreateAccount(ctx, &models.Account{Username: "other", Email: "ANA@example.COM", Role: models.RoleStaff})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrDuplicateEmail))
}

func TestKVStoreFindAccountByEmail(t *testing.T) {
	store, _ := newMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.CreateAccount(ctx, &models.Account{ID: "a1", Username: "ana", Email: "ana@example.com", Role: models.RoleStudent}))

	found, err := store.FindAccountByEmail(ctx, "  ANA@example.com ")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "a1", found.ID)

	missing, err := store.FindAccountByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)

	byID, err := store.FindAccountByID(ctx, "a1")
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "ana", byID.Username)
}

func TestKVStoreSaveRecordAssignsIdentityAndKeepsOrder(t *testing.T) {
	store, _ := newMemoryStore()
	ctx := context.Background()

	in := &models.StoredRecord{ID: "ignored", OwnerID: "u1", Title: "first", Type: models.RecordTypeReport}
	first, err := store.SaveRecord(ctx, in)
	require.NoError(t, err)
	assert.NotEqual(t, "ignored", first.ID)
	assert.False(t, first.CreatedAt.IsZero())

	_, err = store.SaveRecord(ctx, &models.StoredRecord{OwnerID: "u2", Title: "second"})
	require.NoError(t, err)
	third, err := store.SaveRecord(ctx, &models.StoredRecord{OwnerID: "u1", Title: "third", Images: []models.Attachment{{Base64: "aGk=", MIMEType: "image/png"}}})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)

	owned, err := store.ListRecordsForAccount(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, owned, 2)
	assert.Equal(t, "first", owned[0].Title)
	assert.Equal(t, "third", owned[1].Title)
	assert.Len(t, owned[1].Images, 1)

	all, err := store.ListRecords(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := store.ListRecordsForAccount(ctx, "ghost")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestKVStoreMalformedDataIsTreatedAsEmpty(t *testing.T) {
	store, backend := newMemoryStore()
	ctx := context.Background()
	require.NoError(t, backend.Set(ctx, "test:records", []byte("{not json")))
	require.NoError(t, backend.Set(ctx, "test:accounts", []byte(`{"id":"object-not-array"}`)))

	records, err := store.ListRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	found, err := store.FindAccountByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Nil(t, found)

	saved, err := store.SaveRecord(ctx, &models.StoredRecord{OwnerID: "u1", Title: "fresh"})
	require.NoError(t, err)
	records, err = store.ListRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, saved.ID, records[0].ID)
}

func TestKVStoreReadFailureRecoveredOnReads(t *testing.T) {
	store := NewKVStore(&failingBackend{getErr: errors.New("io")}, "test", zap.NewNop(), nil)
	ctx := context.Background()

	records, err := store.ListRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	found, err := store.FindAccountByID(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestKVStoreWriteFailurePropagated(t *testing.T) {
	store := NewKVStore(&failingBackend{getErr: ErrKeyNotFound, setErr: errors.New("disk full")}, "test", zap.NewNop(), nil)

	_, err := store.SaveRecord(context.Background(), &models.StoredRecord{OwnerID: "u1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

// flakyBackend fails the next failGets reads, then delegates to the memory backend.
type flakyBackend struct {
	*MemoryBackend
	failGets int
	sets     int
}

func (b *flakyBackend) Get(ctx context.Context, key string) ([]byte, error) {
	if b.failGets > 0 {
		b.failGets--
		return nil, errors.New("i/o timeout")
	}
	return b.MemoryBackend.Get(ctx, key)
}

func (b *flakyBackend) Set(ctx context.Context, key string, value []byte) error {
	b.sets++
	return b.MemoryBackend.Set(ctx, key, value)
}

func TestKVStoreTransientReadFailureAbortsMutations(t *testing.T) {
	backend := &flakyBackend{MemoryBackend: NewMemoryBackend()}
	store := NewKVStore(backend, "test", zap.NewNop(), nil)
	ctx := context.Background()

	require.NoError(t, store.CreateAccount(ctx, &models.Account{ID: "h1", Email: "h@example.com", Role: models.RoleStaff, Designation: models.DesignationHOD}))
	for _, title := range []string{"a", "b", "c"} {
		_, err := store.SaveRecord(ctx, &models.StoredRecord{OwnerID: "u1", Title: title})
		require.NoError(t, err)
	}
	setsBefore := backend.sets

	backend.failGets = 1
	_, err := store.SaveRecord(ctx, &models.StoredRecord{OwnerID: "u1", Title: "d"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "i/o timeout")

	backend.failGets = 1
	err = store.CreateAccount(ctx, &models.Account{Email: "new@example.com", Role: models.RoleStudent})
	require.Error(t, err)

	backend.failGets = 1
	_, err = store.UpdateAccountDesignation(ctx, "h1", models.DesignationDean)
	require.Error(t, err)

	assert.Equal(t, setsBefore, backend.sets)

	records, err := store.ListRecords(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 3)

	account, err := store.FindAccountByID(ctx, "h1")
	require.NoError(t, err)
	require.NotNil(t, account)
	assert.Equal(t, models.DesignationHOD, account.Designation)
}

func TestKVStoreOldEntriesDecodeWithDefaults(t *testing.T) {
	store, backend := newMemoryStore()
	ctx := context.Background()
	legacy := `[{"id":"r1","owner_id":"u1","title":"legacy","type":"report","content":"x"}]`
	require.NoError(t, backend.Set(ctx, "test:records", []byte(legacy)))

	records, err := store.ListRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.Designation(""), records[0].OwnerDesignation)
	assert.Nil(t, records[0].Images)
}

func TestKVStoreUpdateDesignationLeavesSnapshots(t *testing.T) {
	store, _ := newMemoryStore()
	ctx := context.Background()
	account := &models.Account{ID: "h1", Username: "hank", Email: "h@example.com", Role: models.RoleStaff, Designation: models.DesignationHOD}
	require.NoError(t, store.CreateAccount(ctx, account))
	_, err := store.SaveRecord(ctx, &models.StoredRecord{OwnerID: "h1", OwnerRole: models.RoleStaff, OwnerDesignation: models.DesignationHOD})
	require.NoError(t, err)

	updated, err := store.UpdateAccountDesignation(ctx, "h1", models.DesignationDean)
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, models.DesignationDean, updated.Designation)

	records, err := store.ListRecordsForAccount(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, models.DesignationHOD, records[0].OwnerDesignation)

	missing, err := store.UpdateAccountDesignation(ctx, "nobody", models.DesignationDean)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestKVStoreReportsTimings(t *testing.T) {
	observer := &recordingObserver{}
	store := NewKVStore(NewMemoryBackend(), "", nil, observer)
	_, err := store.ListRecords(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"kv_list_records"}, observer.labels)
	assert.Equal(t, "repocerti_db:records", store.key(recordsCollection))
}

func TestKVStoreOverRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	backend := NewRedisBackend(client)
	t.Cleanup(func() { _ = backend.Close() })

	store := NewKVStore(backend, "repocerti_db", zap.NewNop(), nil)
	ctx := context.Background()

	require.NoError(t, store.CreateAccount(ctx, &models.Account{Username: "ana", Email: "ana@example.com", Role: models.RoleStudent}))
	_, err := store.SaveRecord(ctx, &models.StoredRecord{OwnerID: "u1", Title: "report"})
	require.NoError(t, err)

	assert.True(t, mr.Exists("repocerti_db:accounts"))
	raw, err := mr.Get("repocerti_db:records")
	require.NoError(t, err)
	assert.Contains(t, raw, `"title":"report"`)

	// A second store over the same keys sees the persisted collections.
	reopened := NewKVStore(NewRedisBackend(client), "repocerti_db", zap.NewNop(), nil)
	found, err := reopened.FindAccountByEmail(ctx, "ANA@example.com")
	require.NoError(t, err)
	require.NotNil(t, found)

	_, err = backend.Get(ctx, "repocerti_db:missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}
