package reusesocketd

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// hasReusePort reports whether the running kernel's unix package exposes
// SO_REUSEPORT. golang.org/x/sys/unix defines the constant on every
// supported platform as of this dependency's vintage, so this is really a
// hook for the "otherwise" branch spec §4.3 describes; kept as a variable
// (rather than a bare constant) so tests can force the no-reuseport path.
var hasReusePort = true

// createListeningSocket implements the Socket Factory (spec §4.3): open,
// set SO_REUSEADDR (and SO_REUSEPORT where supported), bind, and listen.
// Any failure along the way closes whatever was partially created and
// returns an error -- the caller treats this as a miss-without-insert and
// moves on to the next key (spec §4.3, §7).
func createListeningSocket(key cacheKey, sa unix.Sockaddr) (*os.File, error) {
	if !hasReusePort && key.UID != "" {
		return nil, fmt.Errorf("reusesocketd: non-empty uid %q on a platform without SO_REUSEPORT", key.UID)
	}

	fd, err := unix.Socket(key.Family, key.SockType, key.Proto)
	if err != nil {
		return nil, fmt.Errorf("socket: %w", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("setsockopt(SO_REUSEADDR): %w", err)
	}
	if hasReusePort {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("setsockopt(SO_REUSEPORT): %w", err)
		}
	}

	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind: %w", err)
	}
	if err := unix.Listen(fd, ListenBacklog); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("listen: %w", err)
	}

	return os.NewFile(uintptr(fd), key.String()), nil
}
