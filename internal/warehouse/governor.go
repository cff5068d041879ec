package warehouse

import (
	"context"
	"errors"

	"golang.org/x/time/rate"

	"scoutgw/internal/domain"
)

var _ domain.WarehouseExecutor = (*Governor)(nil)

// Governor is a token-bucket throttle on outbound dispatch, shared across
// all clients. Per-client admission happens earlier in the pipeline; this
// bounds the aggregate load the gateway can place on the warehouse.
type Governor struct {
	inner   domain.WarehouseExecutor
	limiter *rate.Limiter
}

func NewGovernor(inner domain.WarehouseExecutor, rps float64, burst int) *Governor {
	if rps <= 0 {
		rps = 10
	}
	if burst <= 0 {
		burst = int(rps)
	}
	return &Governor{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Execute waits for a dispatch slot, then delegates. Wait fails either
// because the deadline cannot be met or because the caller canceled; only
// the cancel case is a plain failure, the rest count as timeouts.
func (g *Governor) Execute(ctx context.Context, sqlText string) (*domain.QueryResult, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, domain.ErrExecution(domain.ExecWarehouseFailure, "", "dispatch aborted: %v", err)
		}
		return nil, domain.ErrExecution(domain.ExecTimeout, "", "timed out waiting for a dispatch slot")
	}
	return g.inner.Execute(ctx, sqlText)
}
