package solana

import (
	"context"
	"math/big"

	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"
)

// associatedTokenAddress derives the SPL associated token account for a
// (mint, owner) pair.
func associatedTokenAddress(mint, owner sol.PublicKey) (sol.PublicKey, error) {
	addr, _, err := sol.FindProgramAddress(
		[][]byte{
			owner.Bytes(),
			sol.TokenProgramID.Bytes(),
			mint.Bytes(),
		},
		sol.SPLAssociatedTokenAccountProgramID,
	)
	if err != nil {
		return sol.PublicKey{}, errors.Wrap(err, "failed to derive associated token address")
	}
	return addr, nil
}

// TokenBalance returns the raw balance of the owner's associated token
// account for the given mint. A missing token account counts as zero.
func (c *Client) TokenBalance(ctx context.Context, owner, mint string) (*big.Int, error) {
	client := c.rpcClient()
	if client == nil {
		return nil, errors.New("client not initialized")
	}

	ownerKey, err := sol.PublicKeyFromBase58(owner)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse owner")
	}
	mintKey, err := sol.PublicKeyFromBase58(mint)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse mint")
	}

	ata, err := associatedTokenAddress(mintKey, ownerKey)
	if err != nil {
		return nil, err
	}

	balance, err := client.GetTokenAccountBalance(ctx, ata, rpc.CommitmentConfirmed)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return big.NewInt(0), nil
		}
		return nil, errors.Wrap(err, "failed to get token balance")
	}

	amount, ok := big.NewInt(0).SetString(balance.Value.Amount, 10)
	if !ok {
		return nil, errors.New("failed to parse token balance")
	}
	return amount, nil
}

// AccountExists reports whether an account is present on chain.
func (c *Client) AccountExists(ctx context.Context, account sol.PublicKey) (bool, error) {
	client := c.rpcClient()
	if client == nil {
		return false, errors.New("client not initialized")
	}

	info, err := client.GetAccountInfo(ctx, account)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return false, nil
		}
		return false, errors.Wrap(err, "failed to get account info")
	}
	return info != nil && info.Value != nil, nil
}
