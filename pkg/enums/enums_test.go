package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOrderStatus(t *testing.T) {
	status, err := ParseOrderStatus("shipped")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusShipped, status)
	assert.True(t, status.IsValid())

	_, err = ParseOrderStatus("Shipped")
	assert.Error(t, err)
	assert.False(t, OrderStatus("lost").IsValid())
}

func TestParseDiscountType(t *testing.T) {
	kind, err := ParseDiscountType("percentage")
	require.NoError(t, err)
	assert.Equal(t, DiscountTypePercentage, kind)

	_, err = ParseDiscountType("bogo")
	assert.Error(t, err)
}

func TestParseCheckoutSessionStatus(t *testing.T) {
	status, err := ParseCheckoutSessionStatus("expired")
	require.NoError(t, err)
	assert.Equal(t, "expired", status.String())

	_, err = ParseCheckoutSessionStatus("")
	assert.Error(t, err)
}
