package reconcile

import (
	"context"
	"io"
	"log/slog"
	"testing"

	cstore "github.com/avargas/gestock/internal/customer/store"
	ostore "github.com/avargas/gestock/internal/order/store"
	pstore "github.com/avargas/gestock/internal/product/store"
	"github.com/avargas/gestock/pkg/messaging"
	"github.com/avargas/gestock/pkg/messaging/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/google/uuid"
)

// capturePublisher records every published event.
type capturePublisher struct {
	published []messaging.Event
}

func (p *capturePublisher) Publish(_ context.Context, event messaging.Event) error {
	p.published = append(p.published, event)
	return nil
}

type fixture struct {
	products  pstore.ProductStore
	customers cstore.CustomerStore
	orders    ostore.OrderStore
	publisher *capturePublisher
	engine    *Engine
}

func newFixture() *fixture {
	products := pstore.NewInMemoryStore()
	customers := cstore.NewInMemoryStore()
	orders := ostore.NewInMemoryStore(products)
	publisher := &capturePublisher{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &fixture{
		products:  products,
		customers: customers,
		orders:    orders,
		publisher: publisher,
		engine:    NewEngine(orders, customers, publisher, logger),
	}
}

func (f *fixture) product(t *testing.T, name string, stock int32) *pstore.Product {
	t.Helper()
	p, err := f.products.Create(context.Background(), name, "", 1000, stock)
	require.NoError(t, err)
	return p
}

func (f *fixture) customer(t *testing.T, name string) *cstore.Customer {
	t.Helper()
	c, err := f.customers.Create(context.Background(), name, "555-0100", name+"@example.com")
	require.NoError(t, err)
	return c
}

func (f *fixture) order(t *testing.T, customerID uuid.UUID, items ...ostore.ItemParams) *ostore.Order {
	t.Helper()
	o, err := f.orders.Create(context.Background(), customerID, items)
	require.NoError(t, err)
	return o
}

func (f *fixture) stock(t *testing.T, id uuid.UUID) int32 {
	t.Helper()
	p, err := f.products.FindByID(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func (f *fixture) status(t *testing.T, id uuid.UUID) ostore.Status {
	t.Helper()
	o, err := f.orders.FindByID(context.Background(), id)
	require.NoError(t, err)
	return o.Status
}

func Test_Create_ReservesWhenCovered(t *testing.T) {
	f := newFixture()
	c := f.customer(t, "ana")
	p := f.product(t, "keyboard", 10)

	o := f.order(t, c.ID, ostore.ItemParams{ProductID: p.ID, Quantity: 4})

	assert.Equal(t, ostore.StatusAvailable, o.Status)
	assert.Equal(t, int32(6), f.stock(t, p.ID))
}

func Test_Create_PendingWhenShort(t *testing.T) {
	f := newFixture()
	c := f.customer(t, "ana")
	p := f.product(t, "keyboard", 3)

	o := f.order(t, c.ID, ostore.ItemParams{ProductID: p.ID, Quantity: 4})

	assert.Equal(t, ostore.StatusPending, o.Status)
	assert.Equal(t, int32(3), f.stock(t, p.ID), "stock untouched while pending")
}

func Test_Create_AllOrNothingAcrossItems(t *testing.T) {
	f := newFixture()
	c := f.customer(t, "ana")
	covered := f.product(t, "keyboard", 10)
	short := f.product(t, "mouse", 1)

	o := f.order(t, c.ID,
		ostore.ItemParams{ProductID: covered.ID, Quantity: 2},
		ostore.ItemParams{ProductID: short.ID, Quantity: 3},
	)

	assert.Equal(t, ostore.StatusPending, o.Status)
	assert.Equal(t, int32(10), f.stock(t, covered.ID), "no partial reservation")
	assert.Equal(t, int32(1), f.stock(t, short.ID))
}

func Test_Create_RepeatedProductUsesCombinedQuantity(t *testing.T) {
	f := newFixture()
	c := f.customer(t, "ana")
	p := f.product(t, "keyboard", 4)

	o := f.order(t, c.ID,
		ostore.ItemParams{ProductID: p.ID, Quantity: 3},
		ostore.ItemParams{ProductID: p.ID, Quantity: 3},
	)

	assert.Equal(t, ostore.StatusPending, o.Status, "4 in stock cannot cover 3+3")
	assert.Equal(t, int32(4), f.stock(t, p.ID), "stock untouched while pending")
}

func Test_Create_RepeatedProductReservesCombinedQuantity(t *testing.T) {
	f := newFixture()
	c := f.customer(t, "ana")
	p := f.product(t, "keyboard", 6)

	o := f.order(t, c.ID,
		ostore.ItemParams{ProductID: p.ID, Quantity: 3},
		ostore.ItemParams{ProductID: p.ID, Quantity: 3},
	)

	assert.Equal(t, ostore.StatusAvailable, o.Status)
	assert.Equal(t, int32(0), f.stock(t, p.ID), "both lines reserved exactly once")
}

func Test_Sweep_RepeatedProductNeedsCombinedStock(t *testing.T) {
	f := newFixture()
	c := f.customer(t, "ana")
	p := f.product(t, "keyboard", 0)

	o := f.order(t, c.ID,
		ostore.ItemParams{ProductID: p.ID, Quantity: 3},
		ostore.ItemParams{ProductID: p.ID, Quantity: 3},
	)

	_, err := f.products.UpdateStock(context.Background(), p.ID, 4, 1)
	require.NoError(t, err)

	transitions, err := f.engine.Sweep(context.Background())
	require.NoError(t, err)
	assert.Empty(t, transitions)
	assert.Equal(t, ostore.StatusPending, f.status(t, o.ID))
	assert.Equal(t, int32(4), f.stock(t, p.ID), "a failed allocation reserves nothing")

	_, err = f.products.UpdateStock(context.Background(), p.ID, 6, 2)
	require.NoError(t, err)

	transitions, err = f.engine.Sweep(context.Background())
	require.NoError(t, err)
	require.Len(t, transitions, 1)
	assert.Equal(t, ostore.StatusAvailable, f.status(t, o.ID))
	assert.Equal(t, int32(0), f.stock(t, p.ID))
}

func Test_Sweep_OldestRequestServedFirst(t *testing.T) {
	f := newFixture()
	c := f.customer(t, "ana")
	p := f.product(t, "keyboard", 0)

	first := f.order(t, c.ID, ostore.ItemParams{ProductID: p.ID, Quantity: 3})
	second := f.order(t, c.ID, ostore.ItemParams{ProductID: p.ID, Quantity: 3})

	_, err := f.products.UpdateStock(context.Background(), p.ID, 5, 1)
	require.NoError(t, err)

	transitions, err := f.engine.Sweep(context.Background())
	require.NoError(t, err)

	require.Len(t, transitions, 1)
	assert.Equal(t, first.ID, transitions[0].Order.ID)
	assert.Equal(t, ostore.StatusAvailable, f.status(t, first.ID))
	assert.Equal(t, ostore.StatusPending, f.status(t, second.ID))
	assert.Equal(t, int32(2), f.stock(t, p.ID))
}

func Test_Sweep_EarlierShortfallDoesNotBlockLaterOrder(t *testing.T) {
	f := newFixture()
	c := f.customer(t, "ana")
	p := f.product(t, "keyboard", 0)

	big := f.order(t, c.ID, ostore.ItemParams{ProductID: p.ID, Quantity: 2})
	small := f.order(t, c.ID, ostore.ItemParams{ProductID: p.ID, Quantity: 1})

	_, err := f.products.UpdateStock(context.Background(), p.ID, 1, 1)
	require.NoError(t, err)

	transitions, err := f.engine.Sweep(context.Background())
	require.NoError(t, err)

	require.Len(t, transitions, 1)
	assert.Equal(t, small.ID, transitions[0].Order.ID)
	assert.Equal(t, ostore.StatusPending, f.status(t, big.ID))
	assert.Equal(t, int32(0), f.stock(t, p.ID))
}

func Test_Sweep_SecondRunIsIdempotent(t *testing.T) {
	f := newFixture()
	c := f.customer(t, "ana")
	p := f.product(t, "keyboard", 0)

	f.order(t, c.ID, ostore.ItemParams{ProductID: p.ID, Quantity: 2})

	_, err := f.products.UpdateStock(context.Background(), p.ID, 2, 1)
	require.NoError(t, err)

	transitions, err := f.engine.Sweep(context.Background())
	require.NoError(t, err)
	require.Len(t, transitions, 1)
	assert.Equal(t, int32(0), f.stock(t, p.ID))

	again, err := f.engine.Sweep(context.Background())
	require.NoError(t, err)
	assert.Empty(t, again, "already reserved orders must not reserve twice")
	assert.Equal(t, int32(0), f.stock(t, p.ID))
}

func Test_Sweep_SkipsOrderWithDeletedProduct(t *testing.T) {
	f := newFixture()
	c := f.customer(t, "ana")
	gone := f.product(t, "discontinued", 0)
	p := f.product(t, "keyboard", 0)

	orphan := f.order(t, c.ID, ostore.ItemParams{ProductID: gone.ID, Quantity: 1})
	valid := f.order(t, c.ID, ostore.ItemParams{ProductID: p.ID, Quantity: 1})

	require.NoError(t, f.products.DeleteByID(context.Background(), gone.ID, 1))
	_, err := f.products.UpdateStock(context.Background(), p.ID, 1, 1)
	require.NoError(t, err)

	transitions, err := f.engine.Sweep(context.Background())
	require.NoError(t, err)

	require.Len(t, transitions, 1)
	assert.Equal(t, valid.ID, transitions[0].Order.ID)
	assert.Equal(t, ostore.StatusPending, f.status(t, orphan.ID))
}

func Test_Sweep_MissingCustomerStillAllocates(t *testing.T) {
	f := newFixture()
	p := f.product(t, "keyboard", 0)

	o := f.order(t, uuid.New(), ostore.ItemParams{ProductID: p.ID, Quantity: 1})

	_, err := f.products.UpdateStock(context.Background(), p.ID, 1, 1)
	require.NoError(t, err)

	transitions, err := f.engine.Sweep(context.Background())
	require.NoError(t, err)

	require.Len(t, transitions, 1)
	assert.Equal(t, o.ID, transitions[0].Order.ID)
	assert.Nil(t, transitions[0].Customer)
	assert.Equal(t, ostore.StatusAvailable, f.status(t, o.ID))
}

func Test_Sweep_PublishesAvailableOrders(t *testing.T) {
	f := newFixture()
	c := f.customer(t, "ana")
	p := f.product(t, "keyboard", 0)

	o := f.order(t, c.ID, ostore.ItemParams{ProductID: p.ID, Quantity: 1})

	_, err := f.products.UpdateStock(context.Background(), p.ID, 1, 1)
	require.NoError(t, err)

	_, err = f.engine.Sweep(context.Background())
	require.NoError(t, err)

	require.Len(t, f.publisher.published, 1)
	event, ok := f.publisher.published[0].(events.OrdersAvailableEvent)
	require.True(t, ok)
	require.Len(t, event.Orders, 1)
	assert.Equal(t, o.ID, event.Orders[0].OrderID)
	assert.Equal(t, "ana", event.Orders[0].CustomerName)
}

func Test_Sweep_NoTransitionsNoEvent(t *testing.T) {
	f := newFixture()
	c := f.customer(t, "ana")
	p := f.product(t, "keyboard", 0)
	f.order(t, c.ID, ostore.ItemParams{ProductID: p.ID, Quantity: 5})

	transitions, err := f.engine.Sweep(context.Background())
	require.NoError(t, err)

	assert.Empty(t, transitions)
	assert.Empty(t, f.publisher.published)
}

func Test_SweepProduct_ChecksEveryLineItem(t *testing.T) {
	f := newFixture()
	c := f.customer(t, "ana")
	restocked := f.product(t, "keyboard", 0)
	still := f.product(t, "mouse", 0)

	mixed := f.order(t, c.ID,
		ostore.ItemParams{ProductID: restocked.ID, Quantity: 1},
		ostore.ItemParams{ProductID: still.ID, Quantity: 1},
	)

	_, err := f.products.UpdateStock(context.Background(), restocked.ID, 5, 1)
	require.NoError(t, err)

	transitions, err := f.engine.SweepProduct(context.Background(), restocked.ID)
	require.NoError(t, err)

	assert.Empty(t, transitions, "the other line item is still short")
	assert.Equal(t, ostore.StatusPending, f.status(t, mixed.ID))
	assert.Equal(t, int32(5), f.stock(t, restocked.ID), "no partial reservation")
}

func Test_SweepProduct_IgnoresUnrelatedPendingOrders(t *testing.T) {
	f := newFixture()
	c := f.customer(t, "ana")
	restocked := f.product(t, "keyboard", 0)
	other := f.product(t, "mouse", 0)

	related := f.order(t, c.ID, ostore.ItemParams{ProductID: restocked.ID, Quantity: 1})
	unrelated := f.order(t, c.ID, ostore.ItemParams{ProductID: other.ID, Quantity: 1})

	_, err := f.products.UpdateStock(context.Background(), restocked.ID, 1, 1)
	require.NoError(t, err)

	transitions, err := f.engine.SweepProduct(context.Background(), restocked.ID)
	require.NoError(t, err)

	require.Len(t, transitions, 1)
	assert.Equal(t, related.ID, transitions[0].Order.ID)
	assert.Equal(t, ostore.StatusPending, f.status(t, unrelated.ID))
}

func Test_Deliver_AvailableOrderLeavesStockAlone(t *testing.T) {
	f := newFixture()
	c := f.customer(t, "ana")
	p := f.product(t, "keyboard", 5)

	o := f.order(t, c.ID, ostore.ItemParams{ProductID: p.ID, Quantity: 2})
	require.Equal(t, ostore.StatusAvailable, o.Status)
	require.Equal(t, int32(3), f.stock(t, p.ID))

	delivered, err := f.orders.Deliver(context.Background(), o.ID, o.Version)
	require.NoError(t, err)

	assert.Equal(t, ostore.StatusDelivered, delivered.Status)
	assert.Equal(t, int32(3), f.stock(t, p.ID), "reservation already consumed the stock")
}

func Test_Deliver_PendingOrderFloorsAtZero(t *testing.T) {
	f := newFixture()
	c := f.customer(t, "ana")
	p := f.product(t, "keyboard", 2)

	o := f.order(t, c.ID, ostore.ItemParams{ProductID: p.ID, Quantity: 5})
	require.Equal(t, ostore.StatusPending, o.Status)

	delivered, err := f.orders.Deliver(context.Background(), o.ID, o.Version)
	require.NoError(t, err)

	assert.Equal(t, ostore.StatusDelivered, delivered.Status)
	assert.Equal(t, int32(0), f.stock(t, p.ID), "shortfall is absorbed, never negative")
}
