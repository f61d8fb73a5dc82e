package notifications

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/email"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type fakeSender struct {
	mu      sync.Mutex
	sent    []email.Message
	release chan struct{}
	err     error
}

func (f *fakeSender) Send(ctx context.Context, msg email.Message) error {
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeRecorder struct {
	mu     sync.Mutex
	sent   map[string]int
	failed map[string]int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{sent: map[string]int{}, failed: map[string]int{}}
}

func (r *fakeRecorder) IncNotificationSent(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent[kind]++
}

func (r *fakeRecorder) IncNotificationFailed(kind, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed[kind+"/"+reason]++
}

func (r *fakeRecorder) failures(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failed[key]
}

func testOrder() models.Order {
	code := "SUMMER10"
	return models.Order{
		ID:            7,
		OrderNumber:   "SO-260504-ABCD1234",
		Email:         "buyer@example.com",
		Subtotal:      decimal.RequireFromString("20"),
		DiscountTotal: decimal.RequireFromString("2"),
		ShippingTotal: decimal.RequireFromString("4.5"),
		TaxTotal:      decimal.Zero,
		Total:         decimal.RequireFromString("22.5"),
		DiscountCode:  &code,
		Items: []models.OrderItem{
			{Name: "Tee <M>", Quantity: 2, Price: decimal.RequireFromString("10")},
		},
	}
}

func newTestDispatcher(t *testing.T, sender email.Sender, rec *fakeRecorder, workers, queue int) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(DispatcherParams{
		Sender:      sender,
		Logger:      logger.New(logger.Options{ServiceName: "notifications-test"}),
		Metrics:     rec,
		Workers:     workers,
		QueueSize:   queue,
		SendTimeout: time.Second,
		PublicURL:   "https://shop.example.com/",
	})
	require.NoError(t, err)
	return d
}

func TestDispatcherDeliversAndDrainsOnClose(t *testing.T) {
	sender := &fakeSender{}
	rec := newFakeRecorder()
	d := newTestDispatcher(t, sender, rec, 2, 8)

	d.NotifyOrderConfirmed(context.Background(), testOrder())
	d.NotifyOrderShipped(context.Background(), testOrder())

	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, 2, sender.count())
	assert.Equal(t, 1, rec.sent[string(KindOrderConfirmed)])
	assert.Equal(t, 1, rec.sent[string(KindOrderShipped)])

	assert.False(t, d.Enqueue(context.Background(), KindOrderShipped, 7, email.Message{}))
	assert.Equal(t, 1, rec.failures("order_shipped/closed"))
	require.NoError(t, d.Close(context.Background()))
}

func TestDispatcherDropsWhenQueueFull(t *testing.T) {
	sender := &fakeSender{release: make(chan struct{})}
	rec := newFakeRecorder()
	d := newTestDispatcher(t, sender, rec, 1, 1)
	msg, err := OrderShippedMessage(testOrder(), "")
	require.NoError(t, err)

	// first job occupies the worker, second fills the queue
	require.True(t, d.Enqueue(context.Background(), KindOrderShipped, 1, msg))
	require.Eventually(t, func() bool { return len(d.queue) == 0 }, time.Second, 5*time.Millisecond)
	require.True(t, d.Enqueue(context.Background(), KindOrderShipped, 2, msg))
	assert.False(t, d.Enqueue(context.Background(), KindOrderShipped, 3, msg))
	assert.Equal(t, 1, rec.failures("order_shipped/queue_full"))

	close(sender.release)
	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, 2, sender.count())
}

func TestDispatcherSendFailureIsNotRetried(t *testing.T) {
	sender := &fakeSender{err: errors.New("provider down")}
	rec := newFakeRecorder()
	d := newTestDispatcher(t, sender, rec, 1, 4)

	d.NotifyOrderConfirmed(context.Background(), testOrder())
	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, 1, rec.failures("order_confirmed/send"))
	assert.Zero(t, sender.count())
}

func TestDispatcherEnqueueSurvivesRequestCancel(t *testing.T) {
	sender := &fakeSender{}
	d := newTestDispatcher(t, sender, newFakeRecorder(), 1, 4)

	ctx, cancel := context.WithCancel(context.Background())
	d.NotifyOrderShipped(ctx, testOrder())
	cancel()

	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, 1, sender.count())
}

func TestCloseTimesOutWithPendingWork(t *testing.T) {
	sender := &fakeSender{release: make(chan struct{})}
	d := newTestDispatcher(t, sender, newFakeRecorder(), 1, 4)
	msg, err := OrderShippedMessage(testOrder(), "")
	require.NoError(t, err)
	require.True(t, d.Enqueue(context.Background(), KindOrderShipped, 1, msg))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = d.Close(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(sender.release)
}

func TestNewDispatcherRequiresDeps(t *testing.T) {
	_, err := NewDispatcher(DispatcherParams{Logger: logger.New(logger.Options{})})
	assert.Error(t, err)
	_, err = NewDispatcher(DispatcherParams{Sender: &fakeSender{}})
	assert.Error(t, err)
}
