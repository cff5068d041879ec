package warehouse

import (
	"context"

	"scoutgw/internal/domain"
	"scoutgw/internal/metrics"
)

var _ domain.WarehouseExecutor = (*Metered)(nil)

// Metered records dispatch volume and latency for the scrape page. Only
// successful executions are observed; failures surface through the request
// counters with their rejection kind.
type Metered struct {
	inner   domain.WarehouseExecutor
	backend string
}

func NewMetered(inner domain.WarehouseExecutor, backend string) *Metered {
	return &Metered{inner: inner, backend: backend}
}

func (m *Metered) Execute(ctx context.Context, sqlText string) (*domain.QueryResult, error) {
	result, err := m.inner.Execute(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	metrics.RecordWarehouseQuery(m.backend, result.RowCount, result.Duration)
	return result, nil
}
