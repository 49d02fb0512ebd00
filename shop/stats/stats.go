// Package stats reports operational rollups over the ledger.
//
// Figures are best effort: they come from one statement under READ COMMITTED
// and are not a ledger of record.
package stats

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/m3rciful/coursebot/shop/domain"
)

// Source computes a snapshot, ideally in a single query.
type Source interface {
	Snapshot(ctx context.Context) (domain.Stats, error)
}

// Service exposes the snapshot to the presentation layer.
type Service struct {
	src Source
}

// NewService wires a stats service.
func NewService(src Source) *Service {
	return &Service{src: src}
}

// Report is a snapshot plus derived figures.
type Report struct {
	domain.Stats
	// AveragePaid is revenue per paid order, zero when nothing was sold.
	AveragePaid decimal.Decimal
}

// Snapshot returns the current rollup.
func (s *Service) Snapshot(ctx context.Context) (Report, error) {
	st, err := s.src.Snapshot(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("stats: snapshot: %w", err)
	}
	r := Report{Stats: st}
	if st.PaidOrders > 0 {
		r.AveragePaid = st.Revenue.DivRound(decimal.NewFromInt(st.PaidOrders), 2)
	}
	return r, nil
}
