package solana

import (
	"context"

	sol "github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/unikron/intent-relay/intent"
)

// CommitOutcome reports a confirmed commit transaction.
type CommitOutcome struct {
	Signature     string `json:"signature"`
	IntentAccount string `json:"intentAccount"`
	Bump          uint8  `json:"bump"`
}

// ErrIntentAccountExists reports that the derived intent address is already
// occupied on chain, so a commit for this (user, nonce) would be rejected.
var ErrIntentAccountExists = errors.New("intent account already exists on chain")

// CommitIntent anchors an intent hash on chain under the (user, nonce) PDA.
// The relayer pays for and signs the transaction; the user's key only
// participates in the address derivation.
func (c *Client) CommitIntent(ctx context.Context, user string, nonce uint64, expiry int64, intentHash string) (*CommitOutcome, error) {
	userKey, err := sol.PublicKeyFromBase58(user)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse user")
	}
	hash, err := intent.DecodeHash(intentHash)
	if err != nil {
		return nil, err
	}

	pda, bump, err := DeriveIntentAddress(c.config.ProgramID, userKey, nonce)
	if err != nil {
		return nil, err
	}

	exists, err := c.AccountExists(ctx, pda)
	if err != nil {
		return nil, errors.Wrap(err, "failed to check intent account")
	}
	if exists {
		return nil, errors.Wrapf(ErrIntentAccountExists, "account %s", pda)
	}

	ix, err := newCommitInstruction(c.config.ProgramID, pda, c.Relayer(), hash, nonce, expiry)
	if err != nil {
		return nil, err
	}

	sig, err := c.sendAndConfirm(ctx, []sol.Instruction{ix})
	if err != nil {
		return nil, errors.Wrap(err, "failed to submit commit transaction")
	}

	c.logger.WithFields(logrus.Fields{
		"user":      user,
		"nonce":     nonce,
		"intentPda": pda.String(),
		"signature": sig.String(),
	}).Info("Intent committed on chain")

	return &CommitOutcome{
		Signature:     sig.String(),
		IntentAccount: pda.String(),
		Bump:          bump,
	}, nil
}
