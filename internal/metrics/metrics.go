// Package metrics define las métricas Prometheus del dominio. Vive en un
// paquete propio para evitar ciclos de import entre authn/tenantdb y el
// paquete HTTP.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dropDatabas3/schoolcore/internal/authz"
	"github.com/dropDatabas3/schoolcore/internal/tenantdb"
)

var (
	LoginAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "login_attempts_total",
		Help: "Intentos de login por clase de principal y resultado",
	}, []string{"kind", "outcome"}) // outcome: success|invalid_credentials|locked|origin_mismatch

	Lockouts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "login_lockouts_total",
		Help: "Cuentas bloqueadas por intentos fallidos",
	}, []string{"kind"})

	TenantProvisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tenant_provisions_total",
		Help: "Provisioning de stores de tenant por resultado",
	}, []string{"trust", "result"}) // result: applied|skipped|failed

	TenantProvisionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tenant_provision_duration_seconds",
		Help:    "Duración del provisioning de stores de tenant",
		Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
	}, []string{"trust"})

	SessionsRevoked = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sessions_revoked_total",
		Help: "Sesiones destruidas por revocación administrativa",
	})

	RateLimited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rate_limited_total",
		Help: "Requests rechazadas por rate limiting",
	}, []string{"scope"})
)

// Register registra las métricas del dominio en el registry dado (default si
// es nil), ignorando duplicados.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	collectors := []prometheus.Collector{
		LoginAttempts, Lockouts,
		TenantProvisionsTotal, TenantProvisionDuration,
		SessionsRevoked, RateLimited,
	}
	for _, c := range collectors {
		if err := register(reg, c); err != nil {
			return err
		}
	}
	return nil
}

// RegisterCollector registra un collector adicional (el de pools), también
// tolerante a duplicados.
func RegisterCollector(reg prometheus.Registerer, c prometheus.Collector) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return register(reg, c)
}

func register(reg prometheus.Registerer, c prometheus.Collector) error {
	if err := reg.Register(c); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return nil
		}
		return err
	}
	return nil
}

// ObserveLogin es el hook que consume el servicio de autenticación.
func ObserveLogin(kind authz.Kind, outcome string) {
	LoginAttempts.WithLabelValues(string(kind), outcome).Inc()
	if outcome == "locked" {
		Lockouts.WithLabelValues(string(kind)).Inc()
	}
}

// RecordProvision es el hook que consume el manager de stores.
func RecordProvision(trustCode, result string, duration time.Duration) {
	TenantProvisionsTotal.WithLabelValues(trustCode, result).Inc()
	TenantProvisionDuration.WithLabelValues(trustCode).Observe(duration.Seconds())
}

// PoolCollector expone gauges del registry pool y de los pools por tenant.
type PoolCollector struct {
	tenants      *tenantdb.Manager
	registryPool PoolStatFunc

	poolCountDesc    *prometheus.Desc
	tenantAcquired   *prometheus.Desc
	tenantIdle       *prometheus.Desc
	tenantTotal      *prometheus.Desc
	registryAcquired *prometheus.Desc
	registryIdle     *prometheus.Desc
	registryTotal    *prometheus.Desc
}

// PoolStatFunc devuelve un snapshot (acquired, idle, total) del pool global.
type PoolStatFunc func() (acquired, idle, total int32, ok bool)

func NewPoolCollector(tenants *tenantdb.Manager, registryPool PoolStatFunc) *PoolCollector {
	return &PoolCollector{
		tenants:          tenants,
		registryPool:     registryPool,
		poolCountDesc:    prometheus.NewDesc("tenant_pool_count", "Cantidad de pools de tenant activos", nil, nil),
		tenantAcquired:   prometheus.NewDesc("tenant_pgxpool_acquired", "Conexiones adquiridas por trust", []string{"trust"}, nil),
		tenantIdle:       prometheus.NewDesc("tenant_pgxpool_idle", "Conexiones inactivas por trust", []string{"trust"}, nil),
		tenantTotal:      prometheus.NewDesc("tenant_pgxpool_total", "Conexiones totales por trust", []string{"trust"}, nil),
		registryAcquired: prometheus.NewDesc("registry_pgxpool_acquired", "Conexiones adquiridas del registry", nil, nil),
		registryIdle:     prometheus.NewDesc("registry_pgxpool_idle", "Conexiones inactivas del registry", nil, nil),
		registryTotal:    prometheus.NewDesc("registry_pgxpool_total", "Conexiones totales del registry", nil, nil),
	}
}

func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.poolCountDesc
	ch <- c.tenantAcquired
	ch <- c.tenantIdle
	ch <- c.tenantTotal
	ch <- c.registryAcquired
	ch <- c.registryIdle
	ch <- c.registryTotal
}

func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	var stats map[string]tenantdb.PoolStat
	if c.tenants != nil {
		stats = c.tenants.Stats()
	}
	ch <- prometheus.MustNewConstMetric(c.poolCountDesc, prometheus.GaugeValue, float64(len(stats)))
	for trust, st := range stats {
		ch <- prometheus.MustNewConstMetric(c.tenantAcquired, prometheus.GaugeValue, float64(st.Acquired), trust)
		ch <- prometheus.MustNewConstMetric(c.tenantIdle, prometheus.GaugeValue, float64(st.Idle), trust)
		ch <- prometheus.MustNewConstMetric(c.tenantTotal, prometheus.GaugeValue, float64(st.Total), trust)
	}

	if c.registryPool != nil {
		if acquired, idle, total, ok := c.registryPool(); ok {
			ch <- prometheus.MustNewConstMetric(c.registryAcquired, prometheus.GaugeValue, float64(acquired))
			ch <- prometheus.MustNewConstMetric(c.registryIdle, prometheus.GaugeValue, float64(idle))
			ch <- prometheus.MustNewConstMetric(c.registryTotal, prometheus.GaugeValue, float64(total))
		}
	}
}
