package reusesocketd

import (
	"errors"
	"testing"
	"time"

	influxdb "github.com/influxdata/influxdb1-client/v2"
)

var errReportWriteFailed = errors.New("influx write failed")

// fakeInfluxClient satisfies influxdb.Client without any network I/O,
// recording the last BatchPoints handed to Write.
type fakeInfluxClient struct {
	written  []influxdb.BatchPoints
	writeErr error
	closed   bool
}

func (f *fakeInfluxClient) Ping(timeout time.Duration) (time.Duration, string, error) {
	return 0, "", nil
}

func (f *fakeInfluxClient) Write(bp influxdb.BatchPoints) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.written = append(f.written, bp)
	return nil
}

func (f *fakeInfluxClient) Query(q influxdb.Query) (*influxdb.Response, error) {
	return nil, nil
}

func (f *fakeInfluxClient) QueryAsChunk(q influxdb.Query) (*influxdb.ChunkedResponse, error) {
	return nil, nil
}

func (f *fakeInfluxClient) Close() error {
	f.closed = true
	return nil
}

func TestMetricsCollectorReport(t *testing.T) {
	fake := &fakeInfluxClient{}
	m := &metricsCollector{
		client:   fake,
		database: "reusesocketd",
		logger:   testLogger(),
		stop:     make(chan struct{}),
	}

	stats := Stats{Size: 3, Capacity: 10, Keepalive: 30 * time.Second}
	if err := m.report(stats); err != nil {
		t.Fatalf("report: %v", err)
	}

	if len(fake.written) != 1 {
		t.Fatalf("got %d writes, want 1", len(fake.written))
	}
	batch := fake.written[0]
	if batch.Database() != "reusesocketd" {
		t.Errorf("database = %q, want %q", batch.Database(), "reusesocketd")
	}
	points := batch.Points()
	if len(points) != 1 {
		t.Fatalf("got %d points, want 1", len(points))
	}
	point := points[0]
	if point.Name() != "socket_cache" {
		t.Errorf("point name = %q, want %q", point.Name(), "socket_cache")
	}
	fields, err := point.Fields()
	if err != nil {
		t.Fatalf("point.Fields: %v", err)
	}
	if got := fields["size"]; got != int64(3) {
		t.Errorf("size field = %v (%T), want 3", got, got)
	}
	if got := fields["capacity"]; got != int64(10) {
		t.Errorf("capacity field = %v (%T), want 10", got, got)
	}
	if got := fields["keepalive"]; got != float64(30) {
		t.Errorf("keepalive field = %v (%T), want 30", got, got)
	}
}

func TestMetricsCollectorReportWriteError(t *testing.T) {
	fake := &fakeInfluxClient{writeErr: errReportWriteFailed}
	m := &metricsCollector{
		client:   fake,
		database: "reusesocketd",
		logger:   testLogger(),
		stop:     make(chan struct{}),
	}

	if err := m.report(Stats{}); err == nil {
		t.Fatal("report: got nil error, want errReportWriteFailed")
	}
}

func TestMetricsCollectorStop(t *testing.T) {
	fake := &fakeInfluxClient{}
	m := &metricsCollector{
		client:   fake,
		database: "reusesocketd",
		logger:   testLogger(),
		stop:     make(chan struct{}),
	}

	m.Stop()
	if !fake.closed {
		t.Error("Stop did not close the influx client")
	}
	select {
	case <-m.stop:
	default:
		t.Error("Stop did not close the stop channel")
	}
}
