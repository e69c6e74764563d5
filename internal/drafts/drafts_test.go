package drafts

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sfp-labs/fellowship-portal/internal/application"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func sampleDraft() application.Draft {
	d := application.NewFormData()
	d.FullName = "Le Minh C"
	d.Email = "minh@example.edu"
	d.AreasOfInterest = []string{"Finance", "Other"}
	d.AreasOfInterestOther = "Impact investing"
	d.Ratings[application.CriterionTeamwork] = 4
	return application.Draft{FormData: d, Step: application.StepProfile}
}

func TestRedisStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	_, client := setupRedis(t)
	store := NewRedisStore(client, "session-1", time.Hour)

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	want := sampleDraft()
	require.NoError(t, store.Save(ctx, want))

	got, err = store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, *got)
}

func TestRedisStoreUsesFixedKeyAndTTL(t *testing.T) {
	ctx := context.Background()
	mr, client := setupRedis(t)
	store := NewRedisStore(client, "abc", 2*time.Hour)

	require.NoError(t, store.Save(ctx, sampleDraft()))

	assert.True(t, mr.Exists("fellowship:draft:abc"))
	assert.Equal(t, 2*time.Hour, mr.TTL("fellowship:draft:abc"))

	mr.FastForward(3 * time.Hour)
	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStoreClear(t *testing.T) {
	ctx := context.Background()
	mr, client := setupRedis(t)
	store := NewRedisStore(client, "abc", 0)

	require.NoError(t, store.Save(ctx, sampleDraft()))
	require.NoError(t, store.Clear(ctx))

	assert.False(t, mr.Exists(Key("abc")))
	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStoreCorruptDraft(t *testing.T) {
	mr, client := setupRedis(t)
	require.NoError(t, mr.Set(Key("abc"), "{broken"))

	_, err := NewRedisStore(client, "abc", 0).Load(context.Background())
	assert.Error(t, err)
}

func TestRedisStoreUnavailable(t *testing.T) {
	mr, client := setupRedis(t)
	mr.Close()

	store := NewRedisStore(client, "abc", 0)
	_, err := store.Load(context.Background())
	assert.Error(t, err)
	assert.Error(t, store.Save(context.Background(), sampleDraft()))
}

func TestRedisStoreSessionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	_, client := setupRedis(t)

	a := NewRedisStore(client, "a", 0)
	b := NewRedisStore(client, "b", 0)
	require.NoError(t, a.Save(ctx, sampleDraft()))

	got, err := b.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	n, err := Count(ctx, client)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	store := backend.Store("k")

	want := sampleDraft()
	require.NoError(t, store.Save(ctx, want))
	assert.Equal(t, 1, backend.Len())

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, *got)

	other, err := backend.Store("other").Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, other)

	require.NoError(t, store.Clear(ctx))
	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStoreExpiresDrafts(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	backend := NewMemoryBackend(WithTTL(time.Hour))
	backend.now = func() time.Time { return now }
	store := backend.Store("k")

	require.NoError(t, store.Save(ctx, sampleDraft()))

	now = now.Add(59 * time.Minute)
	got, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)

	// Saving again restarts the TTL.
	require.NoError(t, store.Save(ctx, sampleDraft()))
	now = now.Add(59 * time.Minute)
	got, err = store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)

	now = now.Add(time.Minute)
	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 0, backend.Len())
}

func TestMemoryBackendPrune(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	backend := NewMemoryBackend(WithTTL(time.Hour))
	backend.now = func() time.Time { return now }

	require.NoError(t, backend.Store("old").Save(ctx, sampleDraft()))
	now = now.Add(30 * time.Minute)
	require.NoError(t, backend.Store("fresh").Save(ctx, sampleDraft()))
	assert.Equal(t, 0, backend.Prune())

	now = now.Add(45 * time.Minute)
	assert.Equal(t, 1, backend.Prune())
	assert.Equal(t, 1, backend.Len())

	got, err := backend.Store("fresh").Load(ctx)
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestMemoryBackendDefaultTTL(t *testing.T) {
	assert.Equal(t, DefaultTTL, NewMemoryBackend().ttl)
	assert.Equal(t, DefaultTTL, NewMemoryBackend(WithTTL(0)).ttl)
	assert.Equal(t, time.Minute, NewMemoryBackend(WithTTL(time.Minute)).ttl)
}

func TestControllerWithRedisStore(t *testing.T) {
	ctx := context.Background()
	_, client := setupRedis(t)

	first := application.NewController(application.Options{
		Store:     NewRedisStore(client, "browser-1", 0),
		Deadlines: application.DefaultDeadlines(),
	})
	first.Hydrate(ctx)
	require.NoError(t, first.Update(ctx, application.FieldFullName, application.Text("Pham D")))

	second := application.NewController(application.Options{
		Store:     NewRedisStore(client, "browser-1", 0),
		Deadlines: application.DefaultDeadlines(),
	})
	second.Hydrate(ctx)
	assert.Equal(t, "Pham D", second.Snapshot().FormData.FullName)
}

func TestValidSessionKey(t *testing.T) {
	assert.True(t, ValidSessionKey("3f2b0c1e-9d7a-4c55-8f0e-0b1f2a3c4d5e"))
	assert.False(t, ValidSessionKey(""))
	assert.False(t, ValidSessionKey("has space"))
	assert.False(t, ValidSessionKey("glob*"))
}
