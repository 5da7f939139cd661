package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	CheckoutOutcomeCreated     = "created"
	CheckoutOutcomeEmptyCart   = "empty_cart"
	CheckoutOutcomeUnavailable = "unavailable"
	CheckoutOutcomeConflict    = "order_number_conflict"
	CheckoutOutcomeError       = "error"
)

// ShopMetrics counts storefront business events.
type ShopMetrics struct {
	checkouts        *prometheus.CounterVec
	numberCollisions prometheus.Counter
	cancellations    *prometheus.CounterVec
}

func NewShopMetrics(reg prometheus.Registerer) *ShopMetrics {
	if reg == nil {
		return &ShopMetrics{}
	}
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_checkouts_total",
		Help: "Checkout attempts by outcome.",
	}, []string{"outcome"})
	collisions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "storefront_order_number_collisions_total",
		Help: "Order number unique violations that forced a retry.",
	})
	cancellations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_order_cancellations_total",
		Help: "Orders cancelled, by origin.",
	}, []string{"origin"})
	reg.MustRegister(checkouts, collisions, cancellations)
	return &ShopMetrics{
		checkouts:        checkouts,
		numberCollisions: collisions,
		cancellations:    cancellations,
	}
}

func (s *ShopMetrics) IncCheckout(outcome string) {
	if s == nil || s.checkouts == nil {
		return
	}
	s.checkouts.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (s *ShopMetrics) IncOrderNumberCollision() {
	if s == nil || s.numberCollisions == nil {
		return
	}
	s.numberCollisions.Inc()
}

// IncCancellation records a cancel; origin is "customer" or "expiry".
func (s *ShopMetrics) IncCancellation(origin string) {
	if s == nil || s.cancellations == nil {
		return
	}
	s.cancellations.WithLabelValues(normalizeLabel(origin)).Inc()
}
