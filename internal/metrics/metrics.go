package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the application counters. Register attaches them to a
// registry; New alone never touches global state so tests can build as
// many instances as they want.
type Metrics struct {
	TripsCreated      prometheus.Counter
	BookingsCreated   prometheus.Counter
	BookingsConfirmed prometheus.Counter
	BookingsCancelled *prometheus.CounterVec
	RatingsCreated    *prometheus.CounterVec
}

// New creates the application metrics
func New() *Metrics {
	return &Metrics{
		TripsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "carpool_trips_created_total",
			Help: "Total number of trips published",
		}),
		BookingsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "carpool_bookings_created_total",
			Help: "Total number of booking requests created",
		}),
		BookingsConfirmed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "carpool_bookings_confirmed_total",
			Help: "Total number of bookings confirmed",
		}),
		BookingsCancelled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "carpool_bookings_cancelled_total",
			Help: "Total number of bookings cancelled, by cancelling party",
		}, []string{"by"}),
		RatingsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "carpool_ratings_created_total",
			Help: "Total number of ratings submitted, by rater role",
		}, []string{"role"}),
	}
}

// Register registers all counters on the given registry
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.TripsCreated,
		m.BookingsCreated,
		m.BookingsConfirmed,
		m.BookingsCancelled,
		m.RatingsCreated,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
