package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/coursebot/shop/domain"
)

func TestForOrder(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("MSK", 3*3600))
	o := domain.Order{
		ID:          5,
		UserID:      9,
		Status:      domain.OrderPaid,
		TotalAmount: decimal.RequireFromString("2500.00"),
		Items:       []domain.OrderItem{{CourseID: 1}, {CourseID: 2}},
	}

	e := ForOrder(OrderPaid, o, at)
	assert.Equal(t, []int64{1, 2}, e.CourseIDs)
	assert.Equal(t, time.UTC, e.OccurredAt.Location())

	raw, err := json.Marshal(e)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "order.paid", body["type"])
	assert.Equal(t, "2500", body["amount"], "decimal amounts travel as strings")
}

func TestTypeForStatus(t *testing.T) {
	typ, ok := TypeForStatus(domain.OrderCancelled)
	assert.True(t, ok)
	assert.Equal(t, OrderCancelled, typ)

	_, ok = TypeForStatus(domain.OrderPending)
	assert.False(t, ok)
}
