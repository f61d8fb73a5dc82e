package notifications

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/email"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// Kind labels a notification for logs and metrics.
type Kind string

const (
	KindOrderConfirmed Kind = "order_confirmed"
	KindOrderShipped   Kind = "order_shipped"
)

const (
	defaultWorkers     = 2
	defaultQueueSize   = 256
	defaultSendTimeout = 10 * time.Second
)

type recorder interface {
	IncNotificationSent(kind string)
	IncNotificationFailed(kind, reason string)
}

type job struct {
	ctx     context.Context
	kind    Kind
	orderID int64
	msg     email.Message
}

// DispatcherParams wires the dispatcher.
type DispatcherParams struct {
	Sender      email.Sender
	Logger      *logger.Logger
	Metrics     recorder
	Workers     int
	QueueSize   int
	SendTimeout time.Duration
	PublicURL   string
}

// Dispatcher delivers notifications off the request path. Delivery is
// at-most-once: a full queue drops the message and failed sends are not retried.
type Dispatcher struct {
	sender    email.Sender
	logg      *logger.Logger
	metrics   recorder
	timeout   time.Duration
	publicURL string

	queue chan job
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts the worker pool.
func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	if params.Sender == nil {
		return nil, fmt.Errorf("email sender required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	workers := params.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	size := params.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	timeout := params.SendTimeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	d := &Dispatcher{
		sender:    params.Sender,
		logg:      params.Logger,
		metrics:   params.Metrics,
		timeout:   timeout,
		publicURL: params.PublicURL,
		queue:     make(chan job, size),
	}
	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.work()
	}
	return d, nil
}

// Enqueue hands msg to the worker pool without blocking. It reports whether
// the message was accepted.
func (d *Dispatcher) Enqueue(ctx context.Context, kind Kind, orderID int64, msg email.Message) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	logCtx := d.logg.WithFields(ctx, map[string]any{"op": "notifications.enqueue", "kind": string(kind), "order_id": orderID})
	if d.closed {
		d.failed(kind, "closed")
		d.logg.Warn(logCtx, "notification dropped: dispatcher closed")
		return false
	}
	select {
	case d.queue <- job{ctx: context.WithoutCancel(ctx), kind: kind, orderID: orderID, msg: msg}:
		return true
	default:
		d.failed(kind, "queue_full")
		d.logg.Warn(logCtx, "notification dropped: queue full")
		return false
	}
}

// NotifyOrderConfirmed enqueues the order confirmation email.
func (d *Dispatcher) NotifyOrderConfirmed(ctx context.Context, order models.Order) {
	msg, err := OrderConfirmedMessage(order, d.publicURL)
	if err != nil {
		d.failed(KindOrderConfirmed, "render")
		d.logg.Error(d.logg.WithField(ctx, "order_id", order.ID), "render order confirmation", err)
		return
	}
	d.Enqueue(ctx, KindOrderConfirmed, order.ID, msg)
}

// NotifyOrderShipped enqueues the shipping confirmation email.
func (d *Dispatcher) NotifyOrderShipped(ctx context.Context, order models.Order) {
	msg, err := OrderShippedMessage(order, d.publicURL)
	if err != nil {
		d.failed(KindOrderShipped, "render")
		d.logg.Error(d.logg.WithField(ctx, "order_id", order.ID), "render shipping confirmation", err)
		return
	}
	d.Enqueue(ctx, KindOrderShipped, order.ID, msg)
}

// Close stops accepting work and waits for queued messages to drain or ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		var err error
		if pending := len(d.queue); pending > 0 {
			err = multierr.Append(err, fmt.Errorf("%d notifications still queued", pending))
		}
		return multierr.Append(err, ctx.Err())
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for j := range d.queue {
		d.deliver(j)
	}
}

func (d *Dispatcher) deliver(j job) {
	ctx, cancel := context.WithTimeout(j.ctx, d.timeout)
	defer cancel()
	logCtx := d.logg.WithFields(ctx, map[string]any{"op": "notifications.deliver", "kind": string(j.kind), "order_id": j.orderID})
	if err := d.sender.Send(ctx, j.msg); err != nil {
		d.failed(j.kind, "send")
		d.logg.Error(logCtx, "notification delivery failed", err)
		return
	}
	if d.metrics != nil {
		d.metrics.IncNotificationSent(string(j.kind))
	}
	d.logg.Info(logCtx, "notification sent")
}

func (d *Dispatcher) failed(kind Kind, reason string) {
	if d.metrics != nil {
		d.metrics.IncNotificationFailed(string(kind), reason)
	}
}

func decimalFromInt(v int) decimal.Decimal {
	return decimal.NewFromInt(int64(v))
}
