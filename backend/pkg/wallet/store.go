package wallet

import (
	"github.com/hyperledger/fabric-sdk-go/pkg/gateway"
	"github.com/pkg/errors"
)

// ErrNotFound is returned by Lookup when the wallet holds no identity under
// the requested label.
var ErrNotFound = errors.New("identity not found in wallet")

// Store resolves identity labels to the credentials used to connect to the
// network. Population of a store is outside its scope.
type Store interface {
	Type() Type
	// Lookup returns the identity stored under label. It returns an error
	// wrapping ErrNotFound if there is none, or the read failure otherwise.
	Lookup(label string) (gateway.Identity, error)
	// Wallet returns the SDK wallet backing the store.
	Wallet() *gateway.Wallet
}

type sdkWallet struct {
	wallet *gateway.Wallet
}

func (s *sdkWallet) Wallet() *gateway.Wallet { return s.wallet }

func (s *sdkWallet) Lookup(label string) (gateway.Identity, error) {
	if !s.wallet.Exists(label) {
		return nil, errors.WithMessagef(ErrNotFound, "label [%s]", label)
	}
	id, err := s.wallet.Get(label)
	if err != nil {
		return nil, errors.Wrapf(err, "failed reading identity [%s] from wallet", label)
	}
	return id, nil
}

// FileSystemStore keeps one identity file per label under a directory.
type FileSystemStore struct {
	sdkWallet
	path string
}

// NewFileSystemStore opens the file-system wallet rooted at path.
func NewFileSystemStore(path string) (*FileSystemStore, error) {
	w, err := gateway.NewFileSystemWallet(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed opening file system wallet at [%s]", path)
	}
	return &FileSystemStore{sdkWallet: sdkWallet{wallet: w}, path: path}, nil
}

func (s *FileSystemStore) Type() Type { return TypeFileSystem }

// Path is the directory the wallet reads identities from.
func (s *FileSystemStore) Path() string { return s.path }

// InMemoryStore holds identities supplied programmatically; nothing is
// persisted.
type InMemoryStore struct {
	sdkWallet
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sdkWallet: sdkWallet{wallet: gateway.NewInMemoryWallet()}}
}

func (s *InMemoryStore) Type() Type { return TypeInMemory }

// Put stores id under label, replacing any previous entry.
func (s *InMemoryStore) Put(label string, id gateway.Identity) error {
	return s.wallet.Put(label, id)
}
