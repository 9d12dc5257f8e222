// Package reusesocketd implements a per-host cache of pre-bound listening
// sockets, handed out to local clients over a UNIX-domain endpoint using
// SCM_RIGHTS ancillary data.
package reusesocketd

import (
	"log"
	"time"

	uuid "github.com/satori/go.uuid"
)

const (
	// DefaultCapacity bounds the LRU socket cache absent -cache-capacity.
	DefaultCapacity = 1000
	// DefaultKeepalive is how long an idle cached socket survives absent -keepalive.
	DefaultKeepalive = 120 * time.Second
	// AcceptTimeout bounds each Accept call so signals and keepalive eviction
	// are observed promptly even with no incoming clients.
	AcceptTimeout = 1 * time.Second
	// ClientIOTimeout bounds how long a single accepted client may take to
	// send its request and receive its response.
	ClientIOTimeout = 500 * time.Millisecond
	// ListenBacklog is the connection backlog passed to listen(2) for every
	// cached socket, matching the Python original's fixed value.
	ListenBacklog = 128
	// MaxRequestSize caps how much of a client's request we read.
	MaxRequestSize = 8192
	// FailureBackoff throttles the event loop once consecutive handler
	// failures exceed failureBackoffThreshold.
	FailureBackoff = 500 * time.Millisecond
	// failureBackoffThreshold is the number of consecutive failed iterations
	// tolerated before the loop starts throttling itself.
	failureBackoffThreshold = 2
)

// newCorrelationID returns the last 10 bytes of a fresh UUID4 as a short
// string, used to tag one client interaction across its log lines.
//
// It is deliberately not a full UUID: callers only need enough entropy to
// tell concurrent (well, consecutive) requests apart in a log stream.
func newCorrelationID() string {
	id := uuid.NewV4()
	last10 := id[len(id)-10:]
	return string(last10)
}

// HandleError is the daemon's general-purpose error disposition helper,
// grounded on the teacher's util.go HandleError/HandleFatalError pair: like
// the teacher, it treats an error reaching it as fatal and exits after
// logging, since every call site threads the daemon's own *log.Logger
// through rather than relying on a package-global log sink.
func HandleError(logger *log.Logger, err error) {
	HandleFatalError(logger, err)
}

// HandleMinorError logs a non-fatal error and returns, the disposition spec
// §7 calls "logged and continue": per-key bind failures and repeated
// unexpected loop exceptions both use this rather than HandleFatalError.
func HandleMinorError(logger *log.Logger, err error) {
	if err != nil {
		logger.Println("ERROR: ", err)
	}
}

// HandleFatalError logs err and exits the process with a non-zero status,
// used only for startup-time failures (e.g. failing to drop privilege, via
// HandleError). A nil err is a no-op.
func HandleFatalError(logger *log.Logger, err error) {
	if err != nil {
		logger.Fatal("ERROR: ", err)
	}
}
