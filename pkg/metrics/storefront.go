package metrics

import "github.com/prometheus/client_golang/prometheus"

// StorefrontMetrics counts checkout, reservation and notification outcomes.
type StorefrontMetrics struct {
	reservationsSwept *prometheus.CounterVec
	ordersConfirmed   prometheus.Counter
	notificationsSent *prometheus.CounterVec
	notificationsLost *prometheus.CounterVec
}

// NewStorefrontMetrics registers the storefront counters on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewStorefrontMetrics(reg prometheus.Registerer) *StorefrontMetrics {
	if reg == nil {
		return &StorefrontMetrics{}
	}
	swept := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reservations_swept_total",
		Help: "Expired stock reservations deleted by the sweep.",
	}, []string{"source"})
	confirmed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orders_confirmed_total",
		Help: "Checkout sessions confirmed into orders.",
	})
	sent := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_sent_total",
		Help: "Notifications delivered to the email provider.",
	}, []string{"kind"})
	lost := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_failed_total",
		Help: "Notifications dropped or rejected, by reason.",
	}, []string{"kind", "reason"})
	reg.MustRegister(swept, confirmed, sent, lost)
	return &StorefrontMetrics{
		reservationsSwept: swept,
		ordersConfirmed:   confirmed,
		notificationsSent: sent,
		notificationsLost: lost,
	}
}

// AddReservationsSwept records how many reservations one sweep removed.
func (m *StorefrontMetrics) AddReservationsSwept(source string, n int64) {
	if m == nil || m.reservationsSwept == nil || n <= 0 {
		return
	}
	m.reservationsSwept.WithLabelValues(normalizeLabel(source)).Add(float64(n))
}

// IncOrdersConfirmed counts one confirmed checkout.
func (m *StorefrontMetrics) IncOrdersConfirmed() {
	if m == nil || m.ordersConfirmed == nil {
		return
	}
	m.ordersConfirmed.Inc()
}

// IncNotificationSent counts one delivered notification.
func (m *StorefrontMetrics) IncNotificationSent(kind string) {
	if m == nil || m.notificationsSent == nil {
		return
	}
	m.notificationsSent.WithLabelValues(normalizeLabel(kind)).Inc()
}

// IncNotificationFailed counts one notification that never reached the provider.
func (m *StorefrontMetrics) IncNotificationFailed(kind, reason string) {
	if m == nil || m.notificationsLost == nil {
		return
	}
	m.notificationsLost.WithLabelValues(normalizeLabel(kind), normalizeLabel(reason)).Inc()
}
