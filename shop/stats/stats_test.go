package stats

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/coursebot/shop/domain"
)

type fakeSource struct {
	st  domain.Stats
	err error
}

func (f fakeSource) Snapshot(context.Context) (domain.Stats, error) { return f.st, f.err }

func TestSnapshotAverage(t *testing.T) {
	svc := NewService(fakeSource{st: domain.Stats{
		Orders: 5, PaidOrders: 3, Revenue: decimal.RequireFromString("1000.00"),
	}})
	r, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "333.33", r.AveragePaid.StringFixed(2))
	assert.Equal(t, int64(5), r.Orders)
}

func TestSnapshotNoSales(t *testing.T) {
	r, err := NewService(fakeSource{}).Snapshot(context.Background())
	require.NoError(t, err)
	assert.True(t, r.AveragePaid.IsZero())
}

func TestSnapshotError(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewService(fakeSource{err: boom}).Snapshot(context.Background())
	assert.ErrorIs(t, err, boom)
}
