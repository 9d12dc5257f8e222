// Command reusesocketd serves a per-host cache of pre-bound listening
// sockets over a local UNIX-domain endpoint.
//
// Usage:
//
//	reusesocketd [flags] path
//
// Clients connect to path and send a single record
//
//	uid host_port [family [sock_type [proto [flags [limit]]]]]
//
// and receive a series of messages carrying "." plus one descriptor as
// SCM_RIGHTS ancillary data, followed by a final "!" message.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"golang.org/x/sys/unix"

	"github.com/pkhuong/reusesocketd"
)

func main() {
	flag.Parse()

	cfg, err := reusesocketd.ParseConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	}

	if cfg.Drop != "" {
		if _, _, err := reusesocketd.ParseUserGroup(cfg.Drop); err != nil {
			fmt.Fprintf(os.Stderr, "invalid -drop value %q: %v\n", cfg.Drop, err)
			os.Exit(2)
		}
		if unix.Getuid() != 0 {
			fmt.Fprintln(os.Stderr, "-drop requires running as root")
			os.Exit(2)
		}
	}

	logger, err := reusesocketd.NewLogger(cfg.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to initialize logging: %v\n", err)
		os.Exit(1)
	}

	listener, err := reusesocketd.CreateEndpoint(cfg.Path, cfg.Umask)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to bind to %s: %v\n", cfg.Path, err)
		os.Exit(1)
	}

	// Only unlink the endpoint ourselves when we are not about to drop
	// privilege: a process that drops to an unprivileged user may no
	// longer be able to remove a path it doesn't own (SPEC_FULL.md item 3).
	if cfg.Drop == "" {
		defer reusesocketd.RemoveEndpoint(cfg.Path)
	}

	logger.Printf("binding socket server to %s", cfg.Path)

	if err := reusesocketd.DropPrivilege(cfg.Drop); err != nil {
		reusesocketd.HandleError(logger, fmt.Errorf("unable to drop privilege: %w", err))
	}

	daemon := reusesocketd.NewDaemon(listener, cfg.Capacity, time.Duration(cfg.Keepalive*float64(time.Second)), logger, cfg.Verbose)

	var admin *reusesocketd.AdminServer
	if cfg.AdminAddr != "" {
		admin = reusesocketd.NewAdminServer(daemon, cfg.AdminAddr, logger)
		admin.Run()
		defer admin.Stop()
	}

	if cfg.InfluxAddr != "" {
		metrics, err := reusesocketd.NewMetricsCollector(cfg.InfluxAddr, logger)
		if err != nil {
			reusesocketd.HandleMinorError(logger, fmt.Errorf("unable to start influx metrics collector: %w", err))
		} else {
			go metrics.Run(daemon)
			defer metrics.Stop()
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, unix.SIGTERM, unix.SIGINT, unix.SIGHUP)
	go func() {
		for sig := range sigChan {
			switch sig {
			case unix.SIGTERM, unix.SIGINT:
				logger.Printf("received %s, shutting down", sig)
				daemon.RequestTermination()
			case unix.SIGHUP:
				logger.Printf("received %s, resetting socket cache", sig)
				daemon.RequestReset()
			}
		}
	}()

	daemon.Run()
	logger.Printf("shutting down socket server on %s", cfg.Path)
}
