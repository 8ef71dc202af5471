package solana

import (
	"context"
	"strconv"

	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/unikron/intent-relay/common/types"
	"github.com/unikron/intent-relay/intent"
)

// ExecutionOutcome reports a confirmed reveal transaction.
type ExecutionOutcome struct {
	Signature string `json:"signature"`
	AmountOut uint64 `json:"amountOut"`
}

// RevealIntent discloses the trade terms on chain and executes the swap
// atomically. The transaction pairs the native Ed25519 verify instruction
// with reveal_trade so the program can prove the user authorized the exact
// committed hash.
func (c *Client) RevealIntent(ctx context.Context, ti *types.TradeIntent, intentHash, signature string) (*ExecutionOutcome, error) {
	hash, err := intent.DecodeHash(intentHash)
	if err != nil {
		return nil, err
	}
	sig, err := intent.DecodeSignature(signature)
	if err != nil {
		return nil, err
	}

	userKey, err := sol.PublicKeyFromBase58(ti.User)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse user")
	}
	tokenIn, err := sol.PublicKeyFromBase58(ti.TokenIn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse tokenIn")
	}
	tokenOut, err := sol.PublicKeyFromBase58(ti.TokenOut)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse tokenOut")
	}
	relayerKey, err := sol.PublicKeyFromBase58(ti.Relayer)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse relayer")
	}

	pda, _, err := DeriveIntentAddress(c.config.ProgramID, userKey, ti.Nonce)
	if err != nil {
		return nil, err
	}
	feeAccounts, _, err := DeriveFeeAccounts(c.config.ProgramID, tokenIn)
	if err != nil {
		return nil, err
	}

	accounts := revealAccounts{
		intentPDA:     pda,
		user:          userKey,
		relayer:       relayerKey,
		tokenIn:       tokenIn,
		tokenOut:      tokenOut,
		feeCollection: feeAccounts.Collection,
		feeAuthority:  feeAccounts.Authority,
	}
	if accounts.userTokenIn, err = associatedTokenAddress(tokenIn, userKey); err != nil {
		return nil, err
	}
	if accounts.userTokenOut, err = associatedTokenAddress(tokenOut, userKey); err != nil {
		return nil, err
	}
	if accounts.relayerTokenIn, err = associatedTokenAddress(tokenIn, relayerKey); err != nil {
		return nil, err
	}
	if accounts.relayerTokOut, err = associatedTokenAddress(tokenOut, relayerKey); err != nil {
		return nil, err
	}

	verifyIx := newEd25519VerifyInstruction(userKey, sig, hash[:])
	revealIx, err := newRevealInstruction(c.config.ProgramID, accounts, ti, hash, sig)
	if err != nil {
		return nil, err
	}

	txSig, err := c.sendAndConfirm(ctx, []sol.Instruction{verifyIx, revealIx})
	if err != nil {
		return nil, errors.Wrap(err, "failed to submit reveal transaction")
	}

	amountOut, err := c.realizedOutput(ctx, txSig, userKey, tokenOut)
	if err != nil {
		// The swap is already confirmed at this point. Fall back to the
		// guaranteed minimum rather than failing the whole reveal.
		c.logger.WithFields(logrus.Fields{
			"signature": txSig.String(),
			"error":     err,
		}).Warn("Failed to read realized output from transaction meta, using minOut")
		amountOut = ti.MinOut
	}

	c.logger.WithFields(logrus.Fields{
		"user":      ti.User,
		"nonce":     ti.Nonce,
		"signature": txSig.String(),
		"amountOut": amountOut,
	}).Info("Intent revealed and executed on chain")

	return &ExecutionOutcome{
		Signature: txSig.String(),
		AmountOut: amountOut,
	}, nil
}

// realizedOutput reads the user's tokenOut balance delta from the confirmed
// transaction's meta. The on-chain reported amount is authoritative over any
// quoted estimate.
func (c *Client) realizedOutput(ctx context.Context, sig sol.Signature, user, tokenOut sol.PublicKey) (uint64, error) {
	client := c.rpcClient()
	if client == nil {
		return 0, errors.New("client not initialized")
	}

	maxVersion := uint64(0)
	tx, err := client.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       sol.EncodingBase64,
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err != nil {
		return 0, errors.Wrap(err, "failed to fetch transaction")
	}
	if tx == nil || tx.Meta == nil {
		return 0, errors.New("transaction meta unavailable")
	}

	pre := tokenBalanceFor(tx.Meta.PreTokenBalances, user, tokenOut)
	post := tokenBalanceFor(tx.Meta.PostTokenBalances, user, tokenOut)
	if post < pre {
		return 0, errors.Errorf("user tokenOut balance decreased from %d to %d", pre, post)
	}
	return post - pre, nil
}

func tokenBalanceFor(balances []rpc.TokenBalance, owner, mint sol.PublicKey) uint64 {
	for _, b := range balances {
		if b.Owner == nil || !b.Owner.Equals(owner) || !b.Mint.Equals(mint) {
			continue
		}
		if b.UiTokenAmount == nil {
			continue
		}
		amount, err := strconv.ParseUint(b.UiTokenAmount.Amount, 10, 64)
		if err != nil {
			continue
		}
		return amount
	}
	return 0
}
