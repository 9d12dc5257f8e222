package reusesocketd

import (
	"fmt"
	"log"
	"net"
	"time"

	influxdb "github.com/influxdata/influxdb1-client/v2"
)

// metricsInterval is how often cache occupancy is reported to InfluxDB,
// a much coarser cadence than the event loop itself since this is a
// diagnostic, not a control-plane, signal.
const metricsInterval = 15 * time.Second

// metricsCollector periodically writes cache occupancy to InfluxDB,
// grounded on the teacher's InfluxDbWriter (influx.go): same
// NewHTTPClient/BatchPoints/Write shape, repointed at daemon cache stats
// instead of probe latency summaries.
type metricsCollector struct {
	client   influxdb.Client
	database string
	logger   *log.Logger
	stop     chan struct{}
}

// NewMetricsCollector dials an InfluxDB server at addr ("host:port"). The
// daemon only ever uses this when -influx-addr is set; by default no
// network connection beyond the local endpoint is made, per spec's
// Non-goals.
func NewMetricsCollector(addr string, logger *log.Logger) (*metricsCollector, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("parsing influx address %s: %w", addr, err)
	}
	url := fmt.Sprintf("http://%s:%s", host, port)
	client, err := influxdb.NewHTTPClient(influxdb.HTTPConfig{
		Addr:    url,
		Timeout: 5 * time.Second,
	})
	if err != nil {
		return nil, err
	}
	return &metricsCollector{
		client:   client,
		database: "reusesocketd",
		logger:   logger,
		stop:     make(chan struct{}),
	}, nil
}

// Run reports d's Stats() every metricsInterval until Stop is called.
func (m *metricsCollector) Run(d *Daemon) {
	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			if err := m.report(d.Stats()); err != nil {
				m.logger.Printf("influx write failed: %v", err)
			}
		}
	}
}

// Stop halts the reporting goroutine and closes the client connection.
func (m *metricsCollector) Stop() {
	close(m.stop)
	if err := m.client.Close(); err != nil {
		m.logger.Printf("error closing influx client: %v", err)
	}
}

func (m *metricsCollector) report(stats Stats) error {
	batch, err := influxdb.NewBatchPoints(influxdb.BatchPointsConfig{
		Database:  m.database,
		Precision: "s",
	})
	if err != nil {
		return err
	}
	point, err := influxdb.NewPoint("socket_cache", nil, map[string]interface{}{
		"size":      stats.Size,
		"capacity":  stats.Capacity,
		"keepalive": stats.Keepalive.Seconds(),
	}, time.Now())
	if err != nil {
		return err
	}
	batch.AddPoint(point)
	return m.client.Write(batch)
}
