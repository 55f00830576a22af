// Package wallet provides the identity stores callers authenticate to the
// network with, and the resolver that builds the configured store once per
// process.
package wallet

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/centralbank/fabric-asset-api/backend/pkg/common/apperr"
	"github.com/hyperledger/fabric-lib-go/common/flogging"
	"github.com/hyperledger/fabric-sdk-go/pkg/gateway"
)

var logger = flogging.MustGetLogger("wallet")

// PathResolver maps a packaged resource name to a filesystem path.
type PathResolver interface {
	Resolve(name string) (string, error)
}

// Resolver builds the identity store described by a wallet profile and
// memoizes it. Only a successfully built store is memoized.
type Resolver struct {
	profile   string
	resources PathResolver

	mu    sync.Mutex
	store atomic.Pointer[resolved]
}

type resolved struct {
	store Store
}

func NewResolver(profile string, resources PathResolver) *Resolver {
	return &Resolver{profile: profile, resources: resources}
}

// IdentityStore returns the process identity store, building it on first
// use. Concurrent first callers build it exactly once.
func (r *Resolver) IdentityStore() (Store, error) {
	if s := r.store.Load(); s != nil {
		return s.store, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if s := r.store.Load(); s != nil {
		return s.store, nil
	}

	store, err := r.build()
	if err != nil {
		logger.Errorf("Cannot retrieve wallet: %s", err)
		return nil, err
	}
	r.store.Store(&resolved{store: store})
	return store, nil
}

// HealthCheck reports whether the identity store can be obtained.
func (r *Resolver) HealthCheck(context.Context) error {
	_, err := r.IdentityStore()
	return err
}

func (r *Resolver) build() (Store, error) {
	p, err := ParseProfile(r.profile)
	if err != nil {
		return nil, err
	}

	switch p.Type {
	case TypeFileSystem:
		return r.buildFileSystem(p.Options)
	default:
		return buildInMemory(p.Options)
	}
}

func (r *Resolver) buildFileSystem(o Options) (Store, error) {
	const op = "open file system wallet"

	logger.Infof("Wallet path attribute: %s", o.Path)
	path, err := r.resources.Resolve(o.Path)
	if err != nil {
		return nil, apperr.E(apperr.Configuration, op, "", err)
	}
	logger.Debugf("Wallet resolved to %s", path)

	store, err := NewFileSystemStore(path)
	if err != nil {
		return nil, apperr.E(apperr.Configuration, op, "", err)
	}
	return store, nil
}

func buildInMemory(o Options) (Store, error) {
	store := NewInMemoryStore()
	for _, e := range o.Identities {
		id := gateway.NewX509Identity(e.MSPID, e.Certificate, e.PrivateKey)
		if err := store.Put(e.Label, id); err != nil {
			return nil, apperr.E(apperr.Configuration, "seed in-memory wallet", e.Label, err)
		}
	}
	logger.Infof("In-memory wallet created with %d identities", len(o.Identities))
	return store, nil
}
