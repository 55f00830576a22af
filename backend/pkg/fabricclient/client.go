// Package fabricclient manages authenticated gateway connections to the
// Fabric network, one per caller identity, and resolves contracts on them.
package fabricclient

import (
	"time"

	"github.com/centralbank/fabric-asset-api/backend/pkg/wallet"
	"github.com/hyperledger/fabric-sdk-go/pkg/core/config"
	"github.com/hyperledger/fabric-sdk-go/pkg/gateway"
	"github.com/pkg/errors"
)

// Contract is a deployed chaincode that transactions can be sent to.
type Contract interface {
	EvaluateTransaction(name string, args ...string) ([]byte, error)
	SubmitTransaction(name string, args ...string) ([]byte, error)
}

// Network is a channel reached through a gateway.
type Network interface {
	GetContract(id string) Contract
}

// Gateway is an established, authenticated connection to the network.
type Gateway interface {
	GetNetwork(name string) (Network, error)
	Close()
}

// Connector builds and establishes a gateway for one identity of a store.
type Connector interface {
	Connect(store wallet.Store, label string, profile *Profile) (Gateway, error)
}

// SDKConnector connects through the fabric-sdk-go gateway. Endorsing peers
// are located with service discovery.
type SDKConnector struct {
	// Timeout bounds commit waits of transactions submitted through the
	// gateway. Zero keeps the SDK default.
	Timeout time.Duration
}

func (c *SDKConnector) Connect(store wallet.Store, label string, profile *Profile) (Gateway, error) {
	var opts []gateway.Option
	if c.Timeout > 0 {
		opts = append(opts, gateway.WithTimeout(c.Timeout))
	}

	gw, err := gateway.Connect(
		gateway.WithConfig(config.FromRaw(profile.Raw, profile.Format)),
		gateway.WithIdentity(store.Wallet(), label),
		opts...,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to gateway")
	}
	return &sdkGateway{gw: gw}, nil
}

type sdkGateway struct {
	gw *gateway.Gateway
}

func (g *sdkGateway) GetNetwork(name string) (Network, error) {
	network, err := g.gw.GetNetwork(name)
	if err != nil {
		return nil, err
	}
	return &sdkNetwork{network: network}, nil
}

func (g *sdkGateway) Close() {
	g.gw.Close()
}

type sdkNetwork struct {
	network *gateway.Network
}

func (n *sdkNetwork) GetContract(id string) Contract {
	return n.network.GetContract(id)
}
