package wallet

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/centralbank/fabric-asset-api/backend/pkg/common/apperr"
	"github.com/centralbank/fabric-asset-api/backend/pkg/resources"
	"github.com/hyperledger/fabric-sdk-go/pkg/gateway"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingResolver struct {
	mu    sync.Mutex
	calls int
	inner PathResolver
}

func (c *countingResolver) Resolve(name string) (string, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.inner.Resolve(name)
}

func TestResolverFileSystem(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "wallet"), 0o755))

	paths := &countingResolver{inner: resources.NewLoader(root)}
	r := NewResolver(`{"type":"file_system","options":{"path":"wallet"}}`, paths)

	store, err := r.IdentityStore()
	require.NoError(t, err)
	assert.Equal(t, TypeFileSystem, store.Type())
	fs, ok := store.(*FileSystemStore)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "wallet"), fs.Path())

	again, err := r.IdentityStore()
	require.NoError(t, err)
	assert.Same(t, store, again)
	assert.Equal(t, 1, paths.calls)
}

func TestResolverFileSystemLookup(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "wallet")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	seed, err := gateway.NewFileSystemWallet(dir)
	require.NoError(t, err)
	require.NoError(t, seed.Put("admin", gateway.NewX509Identity("Org1MSP", "cert-pem", "key-pem")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.id"), []byte("not an identity"), 0o600))

	r := NewResolver(`{"type":"FILE_SYSTEM","options":{"path":"wallet"}}`, resources.NewLoader(root))
	store, err := r.IdentityStore()
	require.NoError(t, err)

	id, err := store.Lookup("admin")
	require.NoError(t, err)
	assert.NotNil(t, id)

	_, err = store.Lookup("nobody")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = store.Lookup("broken")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestResolverFileSystemMissingDirectory(t *testing.T) {
	r := NewResolver(`{"type":"FILE_SYSTEM","options":{"path":"nowhere"}}`, resources.NewLoader(t.TempDir()))

	_, err := r.IdentityStore()
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.Configuration))
	assert.Contains(t, err.Error(), "open file system wallet")
}

func TestResolverInMemory(t *testing.T) {
	r := NewResolver(`{"type":"IN_MEMORY","options":{"identities":[{"label":"user1","mspId":"Org1MSP","certificate":"c","privateKey":"k"}]}}`, nil)

	store, err := r.IdentityStore()
	require.NoError(t, err)
	assert.Equal(t, TypeInMemory, store.Type())

	_, err = store.Lookup("user1")
	require.NoError(t, err)

	_, err = store.Lookup("user2")
	assert.True(t, errors.Is(err, ErrNotFound))

	mem := store.(*InMemoryStore)
	require.NoError(t, mem.Put("user2", gateway.NewX509Identity("Org1MSP", "c", "k")))
	_, err = store.Lookup("user2")
	assert.NoError(t, err)
}

func TestResolverFailureIsNotMemoized(t *testing.T) {
	root := t.TempDir()
	r := NewResolver(`{"type":"FILE_SYSTEM","options":{"path":"wallet"}}`, resources.NewLoader(root))

	_, err := r.IdentityStore()
	require.Error(t, err)
	assert.Error(t, r.HealthCheck(context.Background()))

	require.NoError(t, os.MkdirAll(filepath.Join(root, "wallet"), 0o755))
	store, err := r.IdentityStore()
	require.NoError(t, err)
	assert.NotNil(t, store)
	assert.NoError(t, r.HealthCheck(context.Background()))
}

func TestResolverBogusType(t *testing.T) {
	r := NewResolver(`{"type":"BOGUS"}`, nil)

	_, err := r.IdentityStore()
	assert.True(t, errors.Is(err, apperr.Configuration))
}

func TestResolverConcurrentFirstUse(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "wallet"), 0o755))
	paths := &countingResolver{inner: resources.NewLoader(root)}
	r := NewResolver(`{"type":"FILE_SYSTEM","options":{"path":"wallet"}}`, paths)

	const n = 32
	stores := make([]Store, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := r.IdentityStore()
			assert.NoError(t, err)
			stores[i] = s
		}(i)
	}
	wg.Wait()

	for _, s := range stores {
		assert.Same(t, stores[0], s)
	}
	assert.Equal(t, 1, paths.calls)
}
