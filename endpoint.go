package reusesocketd

import (
	"errors"
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// umaskFor maps a UmaskMode to the process umask value to install while the
// endpoint socket is created, per spec §6.
func umaskFor(mode UmaskMode) (value int, apply bool) {
	switch mode {
	case UmaskWorld:
		return 0, true
	case UmaskGroup:
		return 0007, true
	case UmaskUser:
		return 0077, true
	default:
		return 0, false
	}
}

// CreateEndpoint binds a SOCK_STREAM UNIX endpoint at path, applying the
// requested umask mode only while the bind(2) call that creates the path
// happens (spec §6). A pre-existing path is unlinked first; any unlink
// failure other than "does not exist" aborts startup, matching the Python
// original's bind() which returns None on unexpected unlink errors.
func CreateEndpoint(path string, mode UmaskMode) (*net.UnixListener, error) {
	if err := unlinkExisting(path); err != nil {
		return nil, err
	}

	var oldMask int
	if value, apply := umaskFor(mode); apply {
		oldMask = unix.Umask(value)
		defer unix.Umask(oldMask)
	}

	addr, err := net.ResolveUnixAddr("unix", path)
	if err != nil {
		return nil, fmt.Errorf("resolving endpoint address %s: %w", path, err)
	}
	listener, err := net.ListenUnix("unix", addr)
	if err != nil {
		return nil, fmt.Errorf("binding endpoint %s: %w", path, err)
	}
	return listener, nil
}

// unlinkExisting removes a pre-existing node at path. A missing path is not
// an error; any other failure (e.g. permission denied, or the path is a
// directory) is.
func unlinkExisting(path string) error {
	err := os.Remove(path)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("removing existing endpoint %s: %w", path, err)
}

// RemoveEndpoint unlinks the endpoint path. Called on exit except when
// privilege was dropped, mirroring the Python original's conditional
// atexit.register(os.unlink, path) (spec, SPEC_FULL.md item 3): after
// dropping to an unprivileged user the process may no longer be able to
// remove a path it no longer owns.
func RemoveEndpoint(path string) {
	_ = os.Remove(path)
}
