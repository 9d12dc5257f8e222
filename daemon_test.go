package reusesocketd

import (
	"net"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func TestDaemonStats(t *testing.T) {
	d := NewDaemon(nil, 7, 42*time.Second, testLogger(), false)
	stats := d.Stats()
	if stats.Capacity != 7 {
		t.Errorf("Capacity = %d, want 7", stats.Capacity)
	}
	if stats.Keepalive != 42*time.Second {
		t.Errorf("Keepalive = %v, want 42s", stats.Keepalive)
	}
	if stats.Size != 0 {
		t.Errorf("Size = %d, want 0 for a fresh daemon", stats.Size)
	}
}

func TestDaemonTerminateAndResetFlags(t *testing.T) {
	d := NewDaemon(nil, 10, DefaultKeepalive, testLogger(), false)
	if d.terminated() {
		t.Fatal("new daemon should not start terminated")
	}
	d.RequestTermination()
	if !d.terminated() {
		t.Error("expected terminated() to be true after RequestTermination")
	}

	if d.consumeReset() {
		t.Error("consumeReset should be false before RequestReset")
	}
	d.RequestReset()
	if !d.consumeReset() {
		t.Error("expected consumeReset() to be true exactly once after RequestReset")
	}
	if d.consumeReset() {
		t.Error("consumeReset should only fire once per RequestReset")
	}
}

func TestDaemonRunServesOneRequestThenTerminates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reusesocketd.sock")

	listener, err := CreateEndpoint(path, UmaskDefault)
	if err != nil {
		t.Fatalf("CreateEndpoint: %v", err)
	}

	d := NewDaemon(listener, 10, DefaultKeepalive, testLogger(), false)

	done := make(chan struct{})
	go func() {
		d.Run()
		close(done)
	}()

	addr, err := net.ResolveUnixAddr("unix", path)
	if err != nil {
		t.Fatalf("ResolveUnixAddr: %v", err)
	}
	client, err := net.DialUnix("unix", nil, addr)
	if err != nil {
		t.Fatalf("dialing endpoint: %v", err)
	}
	if _, err := client.Write([]byte("uid 127.0.0.1:0")); err != nil {
		t.Fatalf("writing request: %v", err)
	}
	buf := make([]byte, 1)
	oob := make([]byte, unix.CmsgSpace(4))
	if _, _, _, _, err := client.ReadMsgUnix(buf, oob); err != nil {
		t.Fatalf("ReadMsgUnix: %v", err)
	}
	client.Close()

	d.RequestTermination()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not exit after RequestTermination")
	}

	if d.cache.Len() != 1 {
		t.Errorf("cache.Len() = %d, want 1 after one served request", d.cache.Len())
	}
}
