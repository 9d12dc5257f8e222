package reusesocketd

import (
	"encoding/json"
	"log"
	"net/http"
)

// AdminServer exposes /status and /stats over HTTP, grounded on the
// teacher's api.go (http.ServeMux + StatusHandler). It is off by default
// (spec's Non-goals exclude remote access; it exists purely as a local
// diagnostic surface, not a load-balancing or auth mechanism). It listens
// on whatever address it is given; the address is not checked to be a
// loopback address.
type AdminServer struct {
	daemon *Daemon
	server *http.Server
	logger *log.Logger
}

// NewAdminServer builds an AdminServer bound to addr (expected to be a
// loopback address such as "127.0.0.1:9600").
func NewAdminServer(d *Daemon, addr string, logger *log.Logger) *AdminServer {
	mux := http.NewServeMux()
	a := &AdminServer{
		daemon: d,
		server: &http.Server{Addr: addr, Handler: mux},
		logger: logger,
	}
	mux.HandleFunc("/status", a.statusHandler)
	mux.HandleFunc("/stats", a.statsHandler)
	return a
}

// statusHandler acts as a bare healthcheck, matching the teacher's
// StatusHandler.
func (a *AdminServer) statusHandler(rw http.ResponseWriter, _ *http.Request) {
	rw.Write([]byte("ok"))
}

// statsHandler reports a JSON snapshot of cache occupancy.
func (a *AdminServer) statsHandler(rw http.ResponseWriter, _ *http.Request) {
	stats := a.daemon.Stats()
	body, err := json.Marshal(stats)
	if err != nil {
		rw.WriteHeader(http.StatusInternalServerError)
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	rw.Write(body)
}

// Run serves the admin endpoint in a background goroutine, matching the
// teacher API's Run()/RunForever() split.
func (a *AdminServer) Run() {
	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Printf("admin server stopped: %v", err)
		}
	}()
}

// Stop closes the admin server.
func (a *AdminServer) Stop() {
	if err := a.server.Close(); err != nil {
		a.logger.Printf("error stopping admin server: %v", err)
	}
}
