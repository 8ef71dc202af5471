package types

import "time"

// CommitRecord is the persisted record of an on-chain commitment.
type CommitRecord struct {
	Tx        string    `json:"tx"`
	CreatedAt time.Time `json:"timestamp"`
}

// RevealRecord is the persisted record of an execution transaction and its
// settlement outcome. At most one exists per trade intent.
type RevealRecord struct {
	Tx          string    `json:"tx"`
	Successful  bool      `json:"successful"`
	AmountOut   uint64    `json:"amountOut"`
	ProtocolFee uint64    `json:"protocolFee"`
	RelayerFee  uint64    `json:"relayerFee"`
	CreatedAt   time.Time `json:"timestamp"`
}

// FeeSplitRecord is the persisted three-pool split of one executed intent's
// protocol fee.
type FeeSplitRecord struct {
	Liquidity uint64    `json:"liquidity"`
	Protocol  uint64    `json:"protocol"`
	Bounty    uint64    `json:"bounty"`
	CreatedAt time.Time `json:"timestamp"`
}

// IntentRecord is the full store projection of an intent with its commitment,
// reveal and fee split, when present.
type IntentRecord struct {
	ID        int64
	Hash      string
	Status    IntentStatus
	Intent    TradeIntent
	CreatedAt time.Time
	Commit    *CommitRecord
	Reveal    *RevealRecord
	Fees      *FeeSplitRecord
}
