package engine

import (
	"context"

	"github.com/unikron/intent-relay/common/types"
	"github.com/unikron/intent-relay/intent"
)

// CreateIntent validates the trade against its quoted route, derives the
// canonical hash and persists the intent in draft status.
func (e *Engine) CreateIntent(ctx context.Context, route *types.Route, meta *intent.TradeMeta) (*types.IntentRecord, error) {
	ti, hash, err := intent.Build(route, meta, e.now())
	if err != nil {
		return nil, err
	}
	return e.store.CreateIntent(ctx, ti, hash)
}
