package database

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// poolStat reads one value from a pgxpool.Stat snapshot.
type poolStat struct {
	desc      *prometheus.Desc
	valueType prometheus.ValueType
	read      func(s *pgxpool.Stat) float64
}

// PoolStatsCollector implements prometheus.Collector for pgxpool connection metrics.
// Lock contention on stock rows shows up first as acquired connections piling up,
// so these gauges are the primary saturation signal for the engine.
type PoolStatsCollector struct {
	pool    *pgxpool.Pool
	service string
	stats   []poolStat
}

func newPoolStat(name, help string, vt prometheus.ValueType, read func(s *pgxpool.Stat) float64) poolStat {
	return poolStat{
		desc:      prometheus.NewDesc(name, help, []string{"service"}, nil),
		valueType: vt,
		read:      read,
	}
}

// NewPoolStatsCollector creates a collector exporting pgxpool statistics.
func NewPoolStatsCollector(pool *pgxpool.Pool, service string) *PoolStatsCollector {
	gauge, counter := prometheus.GaugeValue, prometheus.CounterValue
	return &PoolStatsCollector{
		pool:    pool,
		service: service,
		stats: []poolStat{
			newPoolStat("db_pool_acquired_connections", "Number of currently acquired connections", gauge,
				func(s *pgxpool.Stat) float64 { return float64(s.AcquiredConns()) }),
			newPoolStat("db_pool_idle_connections", "Number of currently idle connections", gauge,
				func(s *pgxpool.Stat) float64 { return float64(s.IdleConns()) }),
			newPoolStat("db_pool_total_connections", "Total number of connections in the pool", gauge,
				func(s *pgxpool.Stat) float64 { return float64(s.TotalConns()) }),
			newPoolStat("db_pool_max_connections", "Maximum number of connections allowed", gauge,
				func(s *pgxpool.Stat) float64 { return float64(s.MaxConns()) }),
			newPoolStat("db_pool_acquire_count_total", "Total number of connection acquires", counter,
				func(s *pgxpool.Stat) float64 { return float64(s.AcquireCount()) }),
			newPoolStat("db_pool_acquire_duration_seconds_total", "Total time spent acquiring connections in seconds", counter,
				func(s *pgxpool.Stat) float64 { return s.AcquireDuration().Seconds() }),
			newPoolStat("db_pool_canceled_acquire_count_total", "Total number of canceled connection acquires", counter,
				func(s *pgxpool.Stat) float64 { return float64(s.CanceledAcquireCount()) }),
			newPoolStat("db_pool_empty_acquire_count_total", "Total number of acquires that had to wait for a connection", counter,
				func(s *pgxpool.Stat) float64 { return float64(s.EmptyAcquireCount()) }),
		},
	}
}

// Describe sends the descriptors of all metrics to the provided channel.
func (c *PoolStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, s := range c.stats {
		ch <- s.desc
	}
}

// Collect reads current pool statistics and sends them as Prometheus metrics.
func (c *PoolStatsCollector) Collect(ch chan<- prometheus.Metric) {
	stat := c.pool.Stat()
	for _, s := range c.stats {
		ch <- prometheus.MustNewConstMetric(s.desc, s.valueType, s.read(stat), c.service)
	}
}

// RegisterPoolMetrics registers a pool collector with the given registerer.
func RegisterPoolMetrics(reg prometheus.Registerer, pool *pgxpool.Pool, service string) error {
	return reg.Register(NewPoolStatsCollector(pool, service))
}
