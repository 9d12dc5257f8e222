package reusesocketd

import (
	"fmt"
	"log"
	"net"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Daemon bundles the process-wide mutable state the Python original kept as
// module globals (CACHE, RESET, TERMINATED, ...) into one struct passed
// around explicitly, per SPEC_FULL.md's "global mutable state" design note.
// Signal handlers only flip the atomic flags; all work happens at loop
// boundaries (spec §5, §9).
type Daemon struct {
	listener *net.UnixListener
	cache    *socketCache
	resolver *resolver
	logger   *log.Logger
	verbose  bool
	keepalive time.Duration

	terminate int32 // atomic bool
	reset     int32 // atomic bool

	failures int
	backoff  *rate.Limiter

	metrics *metricsCollector
}

// NewDaemon wires a Daemon around an already-bound UnixListener.
func NewDaemon(listener *net.UnixListener, capacity int, keepalive time.Duration, logger *log.Logger, verbose bool) *Daemon {
	return &Daemon{
		listener:  listener,
		cache:     newSocketCache(capacity, logger, verbose),
		resolver:  newResolver(),
		logger:    logger,
		verbose:   verbose,
		keepalive: keepalive,
		// Burst of failureBackoffThreshold mirrors "after 2 consecutive
		// failures, sleep": the first two failures drain the burst for
		// free, and only the third-and-on reservation carries a delay,
		// the same Reserve()/Delay() idiom llama's Reflect used to
		// throttle packet emission.
		backoff: rate.NewLimiter(rate.Every(FailureBackoff), failureBackoffThreshold),
	}
}

// RequestTermination asks the loop to exit at the next iteration boundary.
// Safe to call from a signal handler.
func (d *Daemon) RequestTermination() {
	atomic.StoreInt32(&d.terminate, 1)
}

// RequestReset asks the loop to clear the socket cache at the next iteration
// boundary. Safe to call from a signal handler.
func (d *Daemon) RequestReset() {
	atomic.StoreInt32(&d.reset, 1)
}

func (d *Daemon) terminated() bool {
	return atomic.LoadInt32(&d.terminate) != 0
}

func (d *Daemon) consumeReset() bool {
	return atomic.CompareAndSwapInt32(&d.reset, 1, 0)
}

// Run is the Event Loop (spec §4.6): service a pending reset, run keepalive
// eviction, accept with a bounded wait, handle one request,
// and track consecutive failures for backoff. It returns once termination
// has been requested and the current iteration completes.
func (d *Daemon) Run() {
	for !d.terminated() {
		if d.consumeReset() {
			d.logger.Printf("reset signal received; clearing socket cache")
			d.cache.Reset()
		}

		d.cache.EvictStale(d.keepalive, time.Now())

		if err := d.listener.SetDeadline(time.Now().Add(AcceptTimeout)); err != nil {
			d.recordFailure(err)
			continue
		}
		conn, err := d.listener.AcceptUnix()
		if err != nil {
			if isTimeout(err) {
				continue
			}
			d.recordFailure(err)
			continue
		}

		if err := d.serveOne(conn); err != nil && !isTimeout(err) {
			d.recordFailure(err)
			continue
		}
		d.failures = 0
	}
	d.logger.Printf("termination signal received; shutting down")
}

// serveOne runs the handler for one accepted connection, always closing it
// on return (spec §4.5's "the connection is always closed on exit").
func (d *Daemon) serveOne(conn *net.UnixConn) (err error) {
	defer func() {
		if cerr := conn.Close(); err == nil {
			err = cerr
		}
	}()
	return d.handleConnection(conn)
}

// recordFailure logs an unexpected error and, once the failure streak
// exceeds failureBackoffThreshold, throttles the loop (spec §4.6, §7).
func (d *Daemon) recordFailure(err error) {
	d.failures++
	if d.failures == 1 {
		HandleMinorError(d.logger, err)
	} else {
		HandleMinorError(d.logger, fmt.Errorf("%d consecutive errors: %w", d.failures, err))
	}
	reservation := d.backoff.Reserve()
	delay := reservation.Delay()
	if d.failures <= failureBackoffThreshold {
		if delay > 0 {
			reservation.Cancel()
		}
		return
	}
	if delay > 0 {
		time.Sleep(delay)
	}
}

// Stats is a point-in-time snapshot of cache occupancy, used by the
// optional admin HTTP endpoint and metrics writer.
type Stats struct {
	Size      int
	Capacity  int
	Keepalive time.Duration
}

func (d *Daemon) Stats() Stats {
	return Stats{Size: d.cache.Len(), Capacity: d.cache.Capacity(), Keepalive: d.keepalive}
}
