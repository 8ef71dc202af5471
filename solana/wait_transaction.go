package solana

import (
	"context"
	"time"

	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const confirmPollInterval = 2 * time.Second

// sendAndConfirm signs the instructions with the relayer keypair, submits the
// transaction and blocks until it reaches confirmed commitment or ctx expires.
func (c *Client) sendAndConfirm(ctx context.Context, instructions []sol.Instruction) (sol.Signature, error) {
	timeout := c.config.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client := c.rpcClient()
	if client == nil {
		return sol.Signature{}, errors.New("client not initialized")
	}

	c.signerMutex.RLock()
	signer := c.signer
	c.signerMutex.RUnlock()
	if signer == nil {
		return sol.Signature{}, errors.New("signer not initialized")
	}

	blockhash, err := client.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return sol.Signature{}, errors.Wrap(err, "failed to get latest blockhash")
	}

	tx, err := sol.NewTransaction(
		instructions,
		blockhash.Value.Blockhash,
		sol.TransactionPayer(signer.PublicKey()),
	)
	if err != nil {
		return sol.Signature{}, errors.Wrap(err, "failed to create transaction")
	}

	if _, err := tx.Sign(func(key sol.PublicKey) *sol.PrivateKey {
		if signer.PublicKey().Equals(key) {
			return &signer
		}
		return nil
	}); err != nil {
		return sol.Signature{}, errors.Wrap(err, "failed to sign transaction")
	}

	sig, err := client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return sol.Signature{}, errors.Wrap(err, "failed to send transaction")
	}

	c.logger.WithField("signature", sig.String()).Debug("Transaction submitted, awaiting confirmation")

	if err := c.waitConfirmation(ctx, sig); err != nil {
		return sig, err
	}
	return sig, nil
}

// waitConfirmation polls signature statuses until the transaction is
// confirmed or finalized. An on-chain error surfaces as a failed transaction
// rather than a timeout.
func (c *Client) waitConfirmation(ctx context.Context, sig sol.Signature) error {
	ticker := time.NewTicker(confirmPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), "confirmation timed out for %s", sig)
		case <-ticker.C:
		}

		client := c.rpcClient()
		if client == nil {
			return errors.New("client not initialized")
		}

		out, err := client.GetSignatureStatuses(ctx, true, sig)
		if err != nil {
			c.logger.WithFields(logrus.Fields{
				"signature": sig.String(),
				"error":     err,
			}).Warn("Failed to fetch signature status, retrying")
			continue
		}
		if len(out.Value) == 0 || out.Value[0] == nil {
			continue
		}

		status := out.Value[0]
		if status.Err != nil {
			return errors.Errorf("transaction %s failed on chain: %v", sig, status.Err)
		}
		if status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
			status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
			return nil
		}
	}
}
