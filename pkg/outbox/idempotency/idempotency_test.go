package idempotency

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	keys    map[string]string
	setErr  error
	lastTTL time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{keys: make(map[string]string)}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	return f.keys[key], nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if f.setErr != nil {
		return false, f.setErr
	}
	f.lastTTL = ttl
	if _, ok := f.keys[key]; ok {
		return false, nil
	}
	f.keys[key] = "1"
	return true, nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return strings.Join([]string{"dbz", "idempotency", scope, id}, ":")
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.keys, key)
	}
	return nil
}

func TestManagerMarksFirstSeen(t *testing.T) {
	store := newFakeStore()
	mgr, err := NewManager(store, time.Hour)
	require.NoError(t, err)

	eventID := "evt_" + t.Name()
	processed, err := mgr.CheckAndMarkProcessed(context.Background(), "settlement-publisher", eventID)
	require.NoError(t, err)
	assert.False(t, processed)
	assert.Equal(t, time.Hour, store.lastTTL)

	processed, err = mgr.CheckAndMarkProcessed(context.Background(), "settlement-publisher", eventID)
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestManagerScopesByConsumer(t *testing.T) {
	store := newFakeStore()
	mgr, err := NewManager(store, time.Minute)
	require.NoError(t, err)

	eventID := "evt_" + t.Name()
	_, err = mgr.CheckAndMarkProcessed(context.Background(), "consumer-a", eventID)
	require.NoError(t, err)

	processed, err := mgr.CheckAndMarkProcessed(context.Background(), "consumer-b", eventID)
	require.NoError(t, err)
	assert.False(t, processed, "different consumer should not be marked")
}

func TestManagerDelete(t *testing.T) {
	store := newFakeStore()
	mgr, err := NewManager(store, time.Minute)
	require.NoError(t, err)

	eventID := "evt_" + t.Name()
	_, err = mgr.CheckAndMarkProcessed(context.Background(), "consumer", eventID)
	require.NoError(t, err)

	require.NoError(t, mgr.Delete(context.Background(), "consumer", eventID))

	processed, err := mgr.CheckAndMarkProcessed(context.Background(), "consumer", eventID)
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestManagerValidation(t *testing.T) {
	_, err := NewManager(nil, time.Minute)
	assert.Error(t, err)

	store := newFakeStore()
	_, err = NewManager(store, -time.Second)
	assert.Error(t, err)

	mgr, err := NewManager(store, time.Minute)
	require.NoError(t, err)

	_, err = mgr.CheckAndMarkProcessed(context.Background(), "", "evt_fixed")
	assert.Error(t, err)

	_, err = mgr.CheckAndMarkProcessed(context.Background(), "consumer", "")
	assert.Error(t, err)
}

func TestManagerPropagatesStoreErrors(t *testing.T) {
	store := newFakeStore()
	store.setErr = errors.New("redis down")
	mgr, err := NewManager(store, time.Minute)
	require.NoError(t, err)

	_, err = mgr.CheckAndMarkProcessed(context.Background(), "consumer", "evt_fixed")
	assert.Error(t, err)
}
