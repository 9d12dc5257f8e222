package reusesocketd

import (
	"testing"

	"golang.org/x/sys/unix"
)

func TestCreateListeningSocketTCP(t *testing.T) {
	key := cacheKey{Family: unix.AF_INET, SockType: unix.SOCK_STREAM, Proto: unix.IPPROTO_TCP}
	sa := &unix.SockaddrInet4{Port: 0, Addr: [4]byte{127, 0, 0, 1}}
	f, err := createListeningSocket(key, sa)
	if err != nil {
		t.Fatalf("createListeningSocket returned error: %v", err)
	}
	defer f.Close()
	if f.Fd() == 0 {
		t.Error("expected a non-zero file descriptor")
	}
}

func TestCreateListeningSocketRejectsUIDWithoutReusePort(t *testing.T) {
	old := hasReusePort
	hasReusePort = false
	defer func() { hasReusePort = old }()

	key := cacheKey{UID: "someone", Family: unix.AF_INET, SockType: unix.SOCK_STREAM, Proto: unix.IPPROTO_TCP}
	sa := &unix.SockaddrInet4{Port: 0, Addr: [4]byte{127, 0, 0, 1}}
	if _, err := createListeningSocket(key, sa); err == nil {
		t.Error("expected an error requesting a per-uid socket without SO_REUSEPORT support")
	}
}
