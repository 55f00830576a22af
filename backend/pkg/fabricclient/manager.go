package fabricclient

import (
	"strings"
	"sync"

	"github.com/centralbank/fabric-asset-api/backend/pkg/common/apperr"
	"github.com/centralbank/fabric-asset-api/backend/pkg/wallet"
	"github.com/hyperledger/fabric-lib-go/common/flogging"
	"github.com/pkg/errors"
)

var logger = flogging.MustGetLogger("fabricclient")

// Settings is the static network configuration the manager works with.
type Settings struct {
	// ConnectionProfile is either an inline JSON document or the name of a
	// packaged profile resource.
	ConnectionProfile string
	Channel           string
	ContractID        string
}

// IdentityStoreProvider hands out the process identity store.
type IdentityStoreProvider interface {
	IdentityStore() (wallet.Store, error)
}

// Manager caches one gateway per identity label. Connections are created on
// first use and kept for the life of the manager.
type Manager struct {
	settings  Settings
	wallets   IdentityStoreProvider
	resources ResourceReader
	connector Connector
	metrics   *Metrics

	// mu is held across the whole check-then-create sequence in Connection,
	// so at most one gateway is ever built per label.
	mu       sync.Mutex
	gateways map[string]Gateway
}

// NewManager returns a manager with an empty cache. A nil metrics records
// into unregistered collectors.
func NewManager(settings Settings, wallets IdentityStoreProvider, resources ResourceReader, connector Connector, metrics *Metrics) *Manager {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Manager{
		settings:  settings,
		wallets:   wallets,
		resources: resources,
		connector: connector,
		metrics:   metrics,
		gateways:  map[string]Gateway{},
	}
}

// Connection returns the gateway for label, connecting on first use.
func (m *Manager) Connection(label string) (Gateway, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gw, ok := m.gateways[label]; ok {
		m.metrics.CacheHits.Inc()
		return gw, nil
	}

	logger.Infof("Creating a new gateway for identity [%s]", label)
	gw, err := m.connect(label)
	if err != nil {
		m.metrics.ConnectionFailures.WithLabelValues(string(apperr.KindOf(err))).Inc()
		return nil, err
	}

	m.gateways[label] = gw
	m.metrics.ConnectionsCreated.Inc()
	m.metrics.CachedConnections.Set(float64(len(m.gateways)))
	logger.Infof("Gateway for identity [%s] created and cached", label)
	return gw, nil
}

func (m *Manager) connect(label string) (Gateway, error) {
	if strings.TrimSpace(label) == "" {
		return nil, apperr.Errorf(apperr.Identity, "verify identity", label, "identity label is empty")
	}

	store, err := m.wallets.IdentityStore()
	if err != nil {
		return nil, apperr.E(apperr.Identity, "open identity store", label, err)
	}

	if _, err := store.Lookup(label); err != nil {
		if !errors.Is(err, wallet.ErrNotFound) {
			logger.Errorf("Error accessing wallet for identity [%s]: %s", label, err)
		}
		return nil, apperr.E(apperr.Identity, "verify identity", label, err)
	}

	profile, err := LoadProfile(m.settings.ConnectionProfile, m.resources)
	if err != nil {
		return nil, apperr.E(apperr.Connection, "load connection profile", label, err)
	}
	if err := profile.Validate(); err != nil {
		return nil, apperr.E(apperr.Connection, "build gateway", label, err)
	}

	gw, err := m.connector.Connect(store, label, profile)
	if err != nil {
		logger.Errorf("Could not construct gateway for identity [%s]: %s", label, err)
		return nil, apperr.E(apperr.Connection, "connect gateway", label, err)
	}
	return gw, nil
}

// Contract resolves the configured contract on the configured channel using
// the gateway of label. Nothing is retried.
func (m *Manager) Contract(label string) (Contract, error) {
	channel := m.settings.Channel
	contractID := m.settings.ContractID

	gw, err := m.Connection(label)
	if err != nil {
		return nil, err
	}

	network, err := gw.GetNetwork(channel)
	if err != nil {
		logger.Errorf("Error retrieving channel [%s] for identity [%s]: %s", channel, label, err)
		return nil, apperr.E(apperr.Connection, "resolve channel "+channel, label, errors.WithMessage(err, "network unreachable"))
	}
	return network.GetContract(contractID), nil
}

// Close closes every cached gateway. It is meant for process shutdown only.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for label, gw := range m.gateways {
		gw.Close()
		delete(m.gateways, label)
	}
	m.metrics.CachedConnections.Set(0)
}
