package reusesocketd

import (
	"log"
	"log/syslog"
	"os"
)

// NewLogger picks a log sink the way the Python original's log() helper
// does: stderr when -e/TO_STDERR is set, otherwise syslog under the daemon
// facility. Both paths return a plain *log.Logger so call sites never
// branch on which sink is active.
func NewLogger(toStderr bool) (*log.Logger, error) {
	if toStderr {
		return log.New(os.Stderr, "", log.LstdFlags), nil
	}
	writer, err := syslog.New(syslog.LOG_INFO|syslog.LOG_DAEMON, "reusesocketd")
	if err != nil {
		return nil, err
	}
	return log.New(writer, "", 0), nil
}
