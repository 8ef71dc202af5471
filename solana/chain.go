// Package solana submits and inspects commit-reveal swap transactions
// through a Solana RPC endpoint.
package solana

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/unikron/intent-relay/connectionmonitor"
)

// Config holds the chain-facing settings of the client.
type Config struct {
	RPCURL    string
	ProgramID sol.PublicKey
	// Keypair is either a path to a Solana keygen JSON file or a base58
	// encoded private key.
	Keypair string
	// Timeout bounds a single submit-and-confirm round trip. Zero falls back
	// to the default.
	Timeout time.Duration
}

const defaultTimeout = 30 * time.Second

// Client talks to a single Solana RPC endpoint and signs transactions with
// the relayer keypair.
type Client struct {
	config *Config
	logger *logrus.Logger

	// Protected fields with their own mutexes
	clientMutex sync.RWMutex
	client      *rpc.Client

	signerMutex sync.RWMutex
	signer      sol.PrivateKey

	monitorMutex sync.RWMutex
	monitor      connectionmonitor.EndpointMonitor
}

// NewClient creates a client, loads the relayer signer and starts endpoint
// health monitoring.
func NewClient(ctx context.Context, config *Config, logger *logrus.Logger) (*Client, error) {
	if config.RPCURL == "" {
		return nil, errors.New("rpc url must not be empty")
	}

	c := &Client{
		config: config,
		logger: logger,
		client: rpc.New(config.RPCURL),
	}

	if config.Keypair != "" {
		signer, err := loadSigner(config.Keypair)
		if err != nil {
			return nil, errors.Wrap(err, "failed to load relayer keypair")
		}

		c.signerMutex.Lock()
		c.signer = signer
		c.signerMutex.Unlock()
	}

	if err := c.initMonitor(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to init endpoint monitor")
	}

	return c, nil
}

// ProgramID returns the configured swap program address.
func (c *Client) ProgramID() sol.PublicKey {
	return c.config.ProgramID
}

// Relayer returns the public key of the loaded signer.
func (c *Client) Relayer() sol.PublicKey {
	c.signerMutex.RLock()
	defer c.signerMutex.RUnlock()
	return c.signer.PublicKey()
}

// Close should be called when the client is no longer needed.
func (c *Client) Close() {
	c.monitorMutex.Lock()
	if c.monitor != nil {
		c.monitor.Stop()
	}
	c.monitorMutex.Unlock()

	c.clientMutex.Lock()
	c.client = nil
	c.clientMutex.Unlock()
}

// rpcClient returns the current RPC client under the read lock. The monitor
// may swap the client on reconnect, so callers must not cache it.
func (c *Client) rpcClient() *rpc.Client {
	c.clientMutex.RLock()
	defer c.clientMutex.RUnlock()
	return c.client
}

// loadSigner parses a keypair from a keygen file path or a base58 string.
func loadSigner(keypair string) (sol.PrivateKey, error) {
	if _, err := os.Stat(keypair); err == nil {
		key, err := sol.PrivateKeyFromSolanaKeygenFile(keypair)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read keygen file")
		}
		return key, nil
	}

	key, err := sol.PrivateKeyFromBase58(strings.TrimSpace(keypair))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse base58 private key")
	}
	return key, nil
}
