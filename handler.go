package reusesocketd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"
)

// handleConnection implements the Request Handler (spec §4.5): read one
// request, parse and resolve it, satisfy each resolved key from the cache
// or the socket factory, transfer a descriptor per key, and send the
// terminator. Exactly one request is handled per accepted connection; the
// connection is always closed by the caller on return.
func (d *Daemon) handleConnection(conn *net.UnixConn) error {
	id := newCorrelationID()
	if err := conn.SetDeadline(time.Now().Add(ClientIOTimeout)); err != nil {
		return err
	}

	buf := make([]byte, MaxRequestSize)
	n, err := conn.Read(buf)
	if err != nil {
		if errors.Is(err, io.EOF) || isTimeout(err) {
			return nil
		}
		return err
	}
	if n == 0 {
		return nil
	}

	req, err := parseRequest(string(buf[:n]))
	var keys []resolvedKey
	if err == nil {
		keys, err = d.resolver.Resolve(context.Background(), req)
	}
	if err != nil {
		if d.verbose {
			d.logger.Printf("[%s] parse/resolve failed: %v", id, err)
		}
		return sendFailure(conn)
	}

	for _, rk := range keys {
		file, fresh, ok := d.lookupOrCreate(id, rk)
		if !ok {
			continue
		}
		if err := sendDescriptor(conn, file); err != nil {
			if fresh {
				d.cache.Remove(rk.Key)
			}
			return err
		}
	}

	return sendTerminator(conn)
}

// lookupOrCreate satisfies a single resolved key from the cache, falling
// back to the Socket Factory on a miss. ok is false only when a fresh bind
// failed, in which case the key is silently skipped (spec §4.3, §7).
func (d *Daemon) lookupOrCreate(id string, rk resolvedKey) (file *os.File, fresh bool, ok bool) {
	if f, hit := d.cache.Get(rk.Key); hit {
		return f, false, true
	}
	f, err := createListeningSocket(rk.Key, rk.Sockaddr)
	if err != nil {
		HandleMinorError(d.logger, fmt.Errorf("[%s] bind failed for %s: %w", id, rk.Key, err))
		return nil, false, false
	}
	d.cache.Insert(rk.Key, f)
	return f, true, true
}

func isTimeout(err error) bool {
	netErr, ok := err.(net.Error)
	return ok && netErr.Timeout()
}
