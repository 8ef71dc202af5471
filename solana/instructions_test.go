package solana

import (
	"encoding/binary"
	"testing"

	sol "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unikron/intent-relay/common/types"
)

func testIntent() *types.TradeIntent {
	return &types.TradeIntent{
		User:       "11111111111111111111111111111111",
		TokenIn:    "So11111111111111111111111111111111111111112",
		TokenOut:   "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		AmountIn:   100_000_000,
		MinOut:     90_000_000,
		Expiry:     1_700_000_000,
		Nonce:      42,
		RelayerFee: 5000,
		Relayer:    "So11111111111111111111111111111111111111112",
	}
}

func TestNewCommitInstruction_Layout(t *testing.T) {
	pda := sol.MustPublicKeyFromBase58("FGCQK8UVq3GBFrrmVt5VvGe2jdxUEV5MqdPd9LdzCsfK")
	payer := sol.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
	var hash [32]byte
	for i := range hash {
		hash[i] = byte(i)
	}

	ix, err := newCommitInstruction(DefaultProgramID, pda, payer, hash, 42, 1_700_000_000)
	require.NoError(t, err)
	assert.Equal(t, DefaultProgramID, ix.ProgramID())

	data, err := ix.Data()
	require.NoError(t, err)
	require.Len(t, data, 8+32+8+8)
	assert.Equal(t, commitTradeDiscriminator[:], data[:8])
	assert.Equal(t, hash[:], data[8:40])
	assert.Equal(t, uint64(42), binary.LittleEndian.Uint64(data[40:48]))
	assert.Equal(t, uint64(1_700_000_000), binary.LittleEndian.Uint64(data[48:56]))

	accounts := ix.Accounts()
	require.Len(t, accounts, 3)
	assert.Equal(t, pda, accounts[0].PublicKey)
	assert.True(t, accounts[0].IsWritable)
	assert.False(t, accounts[0].IsSigner)
	assert.Equal(t, payer, accounts[1].PublicKey)
	assert.True(t, accounts[1].IsSigner)
	assert.True(t, accounts[1].IsWritable)
	assert.Equal(t, sol.SystemProgramID, accounts[2].PublicKey)
}

func TestNewRevealInstruction_Layout(t *testing.T) {
	ti := testIntent()
	var hash [32]byte
	var sig [64]byte
	for i := range hash {
		hash[i] = 0xaa
	}
	for i := range sig {
		sig[i] = 0xbb
	}

	user := sol.MustPublicKeyFromBase58(ti.User)
	relayer := sol.MustPublicKeyFromBase58(ti.Relayer)
	tokenIn := sol.MustPublicKeyFromBase58(ti.TokenIn)
	tokenOut := sol.MustPublicKeyFromBase58(ti.TokenOut)

	accounts := revealAccounts{
		intentPDA: sol.MustPublicKeyFromBase58("51vXrsXnje6LxPfrCUEzDGSk15c2ZVhofeFArsNnmbJp"),
		user:      user,
		relayer:   relayer,
		tokenIn:   tokenIn,
		tokenOut:  tokenOut,
	}

	ix, err := newRevealInstruction(DefaultProgramID, accounts, ti, hash, sig)
	require.NoError(t, err)

	data, err := ix.Data()
	require.NoError(t, err)
	// discriminator + intent data (32+8+8+32+8+32+32+8+8) + hash + signature
	require.Len(t, data, 8+168+32+64)
	assert.Equal(t, revealTradeDiscriminator[:], data[:8])

	// Intent data groups user/nonce/expiry/relayer before the trade legs.
	assert.Equal(t, user.Bytes(), data[8:40])
	assert.Equal(t, uint64(42), binary.LittleEndian.Uint64(data[40:48]))
	assert.Equal(t, uint64(1_700_000_000), binary.LittleEndian.Uint64(data[48:56]))
	assert.Equal(t, relayer.Bytes(), data[56:88])
	assert.Equal(t, uint64(5000), binary.LittleEndian.Uint64(data[88:96]))
	assert.Equal(t, tokenIn.Bytes(), data[96:128])
	assert.Equal(t, tokenOut.Bytes(), data[128:160])
	assert.Equal(t, uint64(100_000_000), binary.LittleEndian.Uint64(data[160:168]))
	assert.Equal(t, uint64(90_000_000), binary.LittleEndian.Uint64(data[168:176]))

	assert.Equal(t, hash[:], data[176:208])
	assert.Equal(t, sig[:], data[208:272])

	metas := ix.Accounts()
	require.Len(t, metas, 14)
	assert.Equal(t, accounts.intentPDA, metas[0].PublicKey)
	assert.Equal(t, sol.SysVarInstructionsPubkey, metas[2].PublicKey)
	assert.Equal(t, relayer, metas[7].PublicKey)
	assert.True(t, metas[7].IsSigner)
	assert.Equal(t, sol.TokenProgramID, metas[12].PublicKey)
	assert.Equal(t, sol.SystemProgramID, metas[13].PublicKey)
}

func TestNewEd25519VerifyInstruction_Layout(t *testing.T) {
	pubkey := sol.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
	var sig [64]byte
	for i := range sig {
		sig[i] = byte(i)
	}
	message := make([]byte, 32)
	for i := range message {
		message[i] = 0xcc
	}

	ix := newEd25519VerifyInstruction(pubkey, sig, message)
	assert.Equal(t, ed25519ProgramID, ix.ProgramID())
	assert.Empty(t, ix.Accounts())

	data, err := ix.Data()
	require.NoError(t, err)
	require.Len(t, data, 112+len(message))

	assert.Equal(t, byte(1), data[0], "signature count")
	assert.Equal(t, byte(0), data[1], "padding")

	assert.Equal(t, uint16(48), binary.LittleEndian.Uint16(data[2:4]), "signature offset")
	assert.Equal(t, uint16(0xffff), binary.LittleEndian.Uint16(data[4:6]), "signature instruction index")
	assert.Equal(t, uint16(16), binary.LittleEndian.Uint16(data[6:8]), "pubkey offset")
	assert.Equal(t, uint16(0xffff), binary.LittleEndian.Uint16(data[8:10]), "pubkey instruction index")
	assert.Equal(t, uint16(112), binary.LittleEndian.Uint16(data[10:12]), "message offset")
	assert.Equal(t, uint16(32), binary.LittleEndian.Uint16(data[12:14]), "message length")
	assert.Equal(t, uint16(0xffff), binary.LittleEndian.Uint16(data[14:16]), "message instruction index")

	assert.Equal(t, pubkey.Bytes(), data[16:48])
	assert.Equal(t, sig[:], data[48:112])
	assert.Equal(t, message, data[112:])
}

func TestFeeInstructions_Layout(t *testing.T) {
	mint := sol.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	payer := sol.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")

	accounts, _, err := DeriveFeeAccounts(DefaultProgramID, mint)
	require.NoError(t, err)

	initIx := newInitializeFeeAccountsInstruction(DefaultProgramID, accounts, mint, payer)
	data, err := initIx.Data()
	require.NoError(t, err)
	assert.Equal(t, initializeFeeAccountsDiscriminator[:], data)
	metas := initIx.Accounts()
	require.Len(t, metas, 10)
	assert.Equal(t, accounts.Authority, metas[0].PublicKey)
	assert.Equal(t, payer, metas[6].PublicKey)
	assert.True(t, metas[6].IsSigner)
	assert.Equal(t, sol.SysVarRentPubkey, metas[9].PublicKey)

	settleIx := newSettleInstruction(DefaultProgramID, accounts, mint, payer, 1_500_000)
	data, err = settleIx.Data()
	require.NoError(t, err)
	require.Len(t, data, 16)
	assert.Equal(t, settleTradeDiscriminator[:], data[:8])
	assert.Equal(t, uint64(1_500_000), binary.LittleEndian.Uint64(data[8:16]))
	metas = settleIx.Accounts()
	require.Len(t, metas, 8)
	assert.Equal(t, accounts.Collection, metas[1].PublicKey)
	assert.True(t, metas[1].IsWritable)
	assert.False(t, metas[0].IsWritable, "authority is read-only at settlement")
}
