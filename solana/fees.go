package solana

import (
	"context"

	sol "github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// FeeAccountState pairs the derived fee addresses with their on-chain
// existence.
type FeeAccountState struct {
	Accounts    *FeeAccounts `json:"accounts"`
	Bumps       *FeeBumps    `json:"bumps"`
	Initialized bool         `json:"initialized"`
}

// CheckFeeAccounts derives the per-mint fee accounts and reports whether the
// collection account exists on chain yet.
func (c *Client) CheckFeeAccounts(ctx context.Context, tokenMint string) (*FeeAccountState, error) {
	mint, err := sol.PublicKeyFromBase58(tokenMint)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse token mint")
	}

	accounts, bumps, err := DeriveFeeAccounts(c.config.ProgramID, mint)
	if err != nil {
		return nil, err
	}

	exists, err := c.AccountExists(ctx, accounts.Collection)
	if err != nil {
		return nil, err
	}

	return &FeeAccountState{
		Accounts:    accounts,
		Bumps:       bumps,
		Initialized: exists,
	}, nil
}

// InitializeFeeAccounts creates the five fee pool accounts for a token mint.
// Initializing an already initialized mint fails on chain, so callers should
// check first.
func (c *Client) InitializeFeeAccounts(ctx context.Context, tokenMint string) (string, *FeeAccounts, error) {
	mint, err := sol.PublicKeyFromBase58(tokenMint)
	if err != nil {
		return "", nil, errors.Wrap(err, "failed to parse token mint")
	}

	accounts, _, err := DeriveFeeAccounts(c.config.ProgramID, mint)
	if err != nil {
		return "", nil, err
	}

	ix := newInitializeFeeAccountsInstruction(c.config.ProgramID, accounts, mint, c.Relayer())
	sig, err := c.sendAndConfirm(ctx, []sol.Instruction{ix})
	if err != nil {
		return "", nil, errors.Wrap(err, "failed to submit fee account initialization")
	}

	c.logger.WithFields(logrus.Fields{
		"tokenMint": tokenMint,
		"signature": sig.String(),
	}).Info("Fee accounts initialized on chain")

	return sig.String(), accounts, nil
}

// SettleFees moves feeAmount from the mint's collection account into the
// liquidity staker, treasury and bounty pools.
func (c *Client) SettleFees(ctx context.Context, tokenMint string, feeAmount uint64) (string, error) {
	mint, err := sol.PublicKeyFromBase58(tokenMint)
	if err != nil {
		return "", errors.Wrap(err, "failed to parse token mint")
	}

	accounts, _, err := DeriveFeeAccounts(c.config.ProgramID, mint)
	if err != nil {
		return "", err
	}

	ix := newSettleInstruction(c.config.ProgramID, accounts, mint, c.Relayer(), feeAmount)
	sig, err := c.sendAndConfirm(ctx, []sol.Instruction{ix})
	if err != nil {
		return "", errors.Wrap(err, "failed to submit fee settlement")
	}

	c.logger.WithFields(logrus.Fields{
		"tokenMint": tokenMint,
		"feeAmount": feeAmount,
		"signature": sig.String(),
	}).Info("Fees settled on chain")

	return sig.String(), nil
}
