package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mprlab/storefront/internal/commerce"
)

func seedTestOrder(t *testing.T, orders *Orders, userID string, intentID string) *commerce.Order {
	t.Helper()
	order := &commerce.Order{
		UserID:          userID,
		TotalCents:      2898,
		Currency:        "USD",
		Status:          commerce.OrderPending,
		PaymentIntentID: intentID,
		Items: []commerce.OrderItem{
			{ProductID: "product-1", Name: "Walnut Desk", PriceCents: 1999, Currency: "USD", Quantity: 1},
			{ProductID: "product-2", Name: "Active Chair", PriceCents: 899, Currency: "USD", Quantity: 1},
		},
	}
	require.NoError(t, orders.Create(context.Background(), order))
	return order
}

func TestOrdersCreateAndFind(t *testing.T) {
	t.Parallel()

	orders := NewOrders(openTestDB(t))
	ctx := context.Background()
	order := seedTestOrder(t, orders, "shopper-1", "pi_123")

	byID, err := orders.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, commerce.OrderPending, byID.Status)
	require.Len(t, byID.Items, 2)

	byIntent, err := orders.FindByPaymentIntent(ctx, "pi_123")
	require.NoError(t, err)
	require.Equal(t, order.ID, byIntent.ID)

	_, err = orders.FindByPaymentIntent(ctx, "")
	require.ErrorIs(t, err, commerce.ErrOrderNotFound)
}

func TestOrdersListByUserScopesToOwner(t *testing.T) {
	t.Parallel()

	orders := NewOrders(openTestDB(t))
	ctx := context.Background()
	seedTestOrder(t, orders, "shopper-1", "pi_1")
	seedTestOrder(t, orders, "shopper-1", "pi_2")
	seedTestOrder(t, orders, "shopper-2", "pi_3")

	own, err := orders.ListByUser(ctx, "shopper-1")
	require.NoError(t, err)
	require.Len(t, own, 2)
	for _, order := range own {
		require.Equal(t, "shopper-1", order.UserID)
	}

	everything, err := orders.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, everything, 3)
}

func TestOrdersSaveUpdatesStatus(t *testing.T) {
	t.Parallel()

	orders := NewOrders(openTestDB(t))
	ctx := context.Background()
	order := seedTestOrder(t, orders, "shopper-1", "")

	order.Status = commerce.OrderPaid
	order.PaymentIntentID = "pi_late_attach"
	require.NoError(t, orders.Save(ctx, order))

	reloaded, err := orders.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, commerce.OrderPaid, reloaded.Status)
	require.Equal(t, "pi_late_attach", reloaded.PaymentIntentID)
}

func TestOrdersSaveMissingOrder(t *testing.T) {
	t.Parallel()

	orders := NewOrders(openTestDB(t))
	ghost := &commerce.Order{ID: "missing", Status: commerce.OrderCancelled}
	require.ErrorIs(t, orders.Save(context.Background(), ghost), commerce.ErrOrderNotFound)
}
