package solana

import (
	"context"
	"encoding/hex"

	bin "github.com/gagliardetto/binary"
	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"
)

// Commitment mirrors the on-chain intent account after the 8-byte Anchor
// discriminator. Field order must match the program's swap_intent struct:
// user, intent_hash, nonce, expiry, timestamp, revealed.
type Commitment struct {
	User       [32]byte
	IntentHash [32]byte
	Nonce      uint64
	Expiry     int64
	Timestamp  int64
	Revealed   bool
}

// Hash returns the committed digest as lowercase hex.
func (c *Commitment) Hash() string {
	return hex.EncodeToString(c.IntentHash[:])
}

// GetCommitment fetches and decodes the intent account for a (user, nonce)
// pair. Returns (nil, nil) when no commitment exists on chain.
func (c *Client) GetCommitment(ctx context.Context, user string, nonce uint64) (*Commitment, error) {
	client := c.rpcClient()
	if client == nil {
		return nil, errors.New("client not initialized")
	}

	userKey, err := sol.PublicKeyFromBase58(user)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse user")
	}

	pda, _, err := DeriveIntentAddress(c.config.ProgramID, userKey, nonce)
	if err != nil {
		return nil, err
	}

	info, err := client.GetAccountInfo(ctx, pda)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to fetch intent account")
	}
	if info == nil || info.Value == nil {
		return nil, nil
	}

	commitment, err := decodeCommitment(info.Value.Data.GetBinary())
	if err != nil {
		return nil, errors.Wrapf(err, "intent account %s", pda)
	}
	return commitment, nil
}

// decodeCommitment parses raw account data, skipping the 8-byte Anchor
// discriminator.
func decodeCommitment(data []byte) (*Commitment, error) {
	if len(data) <= 8 {
		return nil, errors.Errorf("truncated account data (%d bytes)", len(data))
	}

	var commitment Commitment
	if err := bin.NewBorshDecoder(data[8:]).Decode(&commitment); err != nil {
		return nil, errors.Wrap(err, "failed to decode intent account")
	}
	return &commitment, nil
}
