package reusesocketd

import (
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// Wire-level payload bytes, spec §6. Some platforms reject an
// ancillary-data message with a zero-length payload, so every descriptor
// transfer carries at least this one byte (spec §9).
const (
	chunkPayload      = "."
	terminatorPayload = "!"
	failurePayload    = "getaddrinfo failed!"
)

// sendDescriptor transfers a duplicate of file's descriptor to conn using
// SCM_RIGHTS ancillary data, grounded on the same
// unix.UnixRights+WriteMsgUnix idiom used for descriptor handoff elsewhere
// in the example pack (e.g. rootlesskit's port/builtin driver). The kernel
// duplicates the descriptor into the receiver; the daemon keeps and never
// closes its own copy as part of this call.
func sendDescriptor(conn *net.UnixConn, file *os.File) error {
	oob := unix.UnixRights(int(file.Fd()))
	_, _, err := conn.WriteMsgUnix([]byte(chunkPayload), oob, nil)
	return err
}

// sendTerminator sends the final "no more sockets" message, with no
// ancillary data.
func sendTerminator(conn *net.UnixConn) error {
	_, _, err := conn.WriteMsgUnix([]byte(terminatorPayload), nil, nil)
	return err
}

// sendFailure sends the fixed diagnostic message used for parse/resolution
// failures (spec §6, §7). The connection is closed by the caller afterward.
func sendFailure(conn *net.UnixConn) error {
	_, err := conn.Write([]byte(failurePayload))
	return err
}
