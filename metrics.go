package cookiesession

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	parsed      *prometheus.CounterVec
	committed   prometheus.Counter
	destroyed   prometheus.Counter
	cookieBytes prometheus.Histogram
}

// newMetrics builds the Manager's collectors and registers them on reg when
// reg is not nil.
func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		parsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cookiesession_parse_total",
			Help: "Session cookies parsed, labeled by outcome",
		}, []string{"outcome"}), // outcome = ok, missing, malformed, invalid_signature, expired, revoked, store_error

		committed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cookiesession_commit_total",
			Help: "Session cookies committed",
		}),

		destroyed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cookiesession_destroy_total",
			Help: "Session cookies destroyed",
		}),

		cookieBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cookiesession_cookie_bytes",
			Help:    "Size of committed Set-Cookie values in bytes",
			Buckets: []float64{128, 256, 512, 1024, 2048, 3072, 4096},
		}),
	}

	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.parsed, m.committed, m.destroyed, m.cookieBytes} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}
