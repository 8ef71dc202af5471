package solana

import (
	"context"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"

	"github.com/unikron/intent-relay/connectionmonitor"
)

// rpcEndpoint implements connectionmonitor.Endpoint for the client.
type rpcEndpoint struct {
	chain *Client
}

func (e *rpcEndpoint) CheckConnection(ctx context.Context) error {
	client := e.chain.rpcClient()
	if client == nil {
		return errors.New("client not initialized")
	}

	health, err := client.GetHealth(ctx)
	if err != nil {
		return errors.Wrap(err, "health check failed")
	}
	if health != rpc.HealthOk {
		return errors.Errorf("node reported health %q", health)
	}
	return nil
}

func (e *rpcEndpoint) Reconnect(ctx context.Context) error {
	e.chain.clientMutex.Lock()
	defer e.chain.clientMutex.Unlock()

	e.chain.client = rpc.New(e.chain.config.RPCURL)
	return nil
}

func (c *Client) initMonitor(ctx context.Context) error {
	c.monitorMutex.Lock()
	defer c.monitorMutex.Unlock()

	c.monitor = connectionmonitor.NewEndpointMonitor(&rpcEndpoint{chain: c}, c.logger, c.config.RPCURL)
	return c.monitor.Start(ctx)
}
