package stripewebhook

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapStore struct {
	data   map[string]string
	ttls   map[string]time.Duration
	setErr error
}

func newMapStore() *mapStore {
	return &mapStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *mapStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *mapStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if m.setErr != nil {
		return false, m.setErr
	}
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = value.(string)
	m.ttls[key] = ttl
	return true, nil
}

func (m *mapStore) IdempotencyKey(scope, id string) string { return scope + ":" + id }

func (m *mapStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func TestDeduperClaimsOnce(t *testing.T) {
	store := newMapStore()
	d, err := NewDeduper(store, 0)
	require.NoError(t, err)
	ctx := context.Background()

	first, err := d.Claim(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, first)
	assert.Equal(t, defaultDedupeTTL, store.ttls["stripe-event:evt_1"])

	first, err = d.Claim(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, first)

	require.NoError(t, d.Release(ctx, "evt_1"))
	first, err = d.Claim(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, first)
}

func TestDeduperRejectsBadIDs(t *testing.T) {
	d, err := NewDeduper(newMapStore(), time.Hour)
	require.NoError(t, err)

	_, err = d.Claim(context.Background(), " ")
	assert.ErrorIs(t, err, errEventID)
	_, err = d.Claim(context.Background(), "cs_test_123")
	assert.Error(t, err)
	assert.ErrorIs(t, d.Release(context.Background(), ""), errEventID)
}

func TestDeduperWrapsStoreErrors(t *testing.T) {
	store := newMapStore()
	store.setErr = errors.New("connection refused")
	d, err := NewDeduper(store, time.Hour)
	require.NoError(t, err)

	_, err = d.Claim(context.Background(), "evt_2")
	assert.ErrorContains(t, err, "claim evt_2")

	_, err = NewDeduper(nil, time.Hour)
	assert.Error(t, err)
}
