package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStores(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory": NewMemoryStore(),
		"s3":     NewS3StoreWithClient(newMockS3Client(), "test-bucket"),
	}
}

func TestStoreGetMissingReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(ctx, "missing")
			assert.True(t, IsNotFound(err))
		})
	}
}

func TestStorePutThenGetRoundTrips(t *testing.T) {
	ctx := context.Background()
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			obj, err := s.Put(ctx, "k1", []byte("hello"), PutOptions{})
			require.NoError(t, err)
			require.NotEmpty(t, obj.Version)

			got, err := s.Get(ctx, "k1")
			require.NoError(t, err)
			assert.Equal(t, []byte("hello"), got.Data)
			assert.Equal(t, obj.Version, got.Version)
		})
	}
}

func TestStoreIfNoneMatchStarRejectsExisting(t *testing.T) {
	ctx := context.Background()
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Put(ctx, "k1", []byte("v1"), PutOptions{IfNoneMatch: "*"})
			require.NoError(t, err)

			_, err = s.Put(ctx, "k1", []byte("v2"), PutOptions{IfNoneMatch: "*"})
			assert.True(t, IsPreconditionFailed(err))
		})
	}
}

func TestStoreIfMatchRequiresCurrentVersion(t *testing.T) {
	ctx := context.Background()
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			obj, err := s.Put(ctx, "k1", []byte("v1"), PutOptions{})
			require.NoError(t, err)

			_, err = s.Put(ctx, "k1", []byte("v2"), PutOptions{IfMatch: "stale-version"})
			assert.True(t, IsPreconditionFailed(err))

			updated, err := s.Put(ctx, "k1", []byte("v2"), PutOptions{IfMatch: obj.Version})
			require.NoError(t, err)
			assert.NotEqual(t, obj.Version, updated.Version)
		})
	}
}

func TestStoreListFiltersByPrefix(t *testing.T) {
	ctx := context.Background()
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Put(ctx, "a/1", []byte("x"), PutOptions{})
			require.NoError(t, err)
			_, err = s.Put(ctx, "a/2", []byte("x"), PutOptions{})
			require.NoError(t, err)
			_, err = s.Put(ctx, "b/1", []byte("x"), PutOptions{})
			require.NoError(t, err)

			keys, err := s.List(ctx, ListOptions{Prefix: "a/"})
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"a/1", "a/2"}, keys)
		})
	}
}

func TestStoreDeleteThenGetNotFound(t *testing.T) {
	ctx := context.Background()
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Put(ctx, "k1", []byte("v1"), PutOptions{})
			require.NoError(t, err)
			require.NoError(t, s.Delete(ctx, "k1"))

			_, err = s.Get(ctx, "k1")
			assert.True(t, IsNotFound(err))
		})
	}
}
