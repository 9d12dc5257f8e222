package reusesocketd

import (
	"flag"
	"fmt"
	"io/ioutil"

	"gopkg.in/yaml.v2"
)

// UmaskMode selects one of the four mutually exclusive endpoint-permission
// modes from spec §6.
type UmaskMode int

const (
	UmaskDefault UmaskMode = iota
	UmaskWorld             // umask 0: world-writable
	UmaskGroup             // umask 0007: group-accessible
	UmaskUser              // umask 0077: user-only
)

// fileConfig is the YAML shape accepted by -config, following the same
// yaml.v2 tagging style as the teacher's CollectorConfig. Every field has a
// CLI-flag equivalent; flags always win (see Config.mergeFile).
type fileConfig struct {
	Path      string `yaml:"path"`
	Capacity  int    `yaml:"capacity"`
	Keepalive float64 `yaml:"keepalive"`
	Drop      string `yaml:"drop"`
	Verbose   bool   `yaml:"verbose"`
	Stderr    bool   `yaml:"stderr"`
	Umask     string `yaml:"umask"` // "world", "group", "user", or "" for default
	AdminAddr string `yaml:"admin_addr"`
	InfluxAddr string `yaml:"influx_addr"`
}

// loadFileConfig parses a YAML config file, mirroring
// NewCollectorConfig/loadConfigFromPath's read-then-unmarshal shape.
func loadFileConfig(path string) (*fileConfig, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg := &fileConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Config is the fully resolved set of daemon options, after merging CLI
// flags over an optional config file (flags take precedence, matching the
// teacher's "flag first, else default" precedence in Collector.LoadConfig).
type Config struct {
	Path       string
	Capacity   int
	Keepalive  float64
	Drop       string
	Verbose    bool
	Stderr     bool
	Umask      UmaskMode
	AdminAddr  string
	InfluxAddr string
}

// CLI flags, named to match spec §6's surface.
var (
	flagConfig    = flag.String("config", "", "Optional YAML config file; CLI flags override its values.")
	flagCapacity  = flag.Int("cache-capacity", DefaultCapacity, "Maximum size for the socket LRU cache.")
	flagKeepalive = flag.Float64("keepalive", DefaultKeepalive.Seconds(), "Keepalive period for cached sockets, in seconds.")
	flagDrop      = flag.String("drop", "", "Set the user:group to drop privilege to.")
	flagStderr    = flag.Bool("e", false, "Log to stderr instead of syslog.")
	flagVerbose   = flag.Bool("v", false, "Enable verbose (per-request) logging.")
	flagWorld     = flag.Bool("w", false, "Set umask to 0 before opening the endpoint socket.")
	flagGroup     = flag.Bool("g", false, "Set umask to 0007 before opening the endpoint socket.")
	flagUser      = flag.Bool("u", false, "Set umask to 0077 before opening the endpoint socket.")
	flagAdminAddr = flag.String("admin-addr", "", "Optional loopback address for the /status and /stats HTTP endpoint.")
	flagInfluxAddr = flag.String("influx-addr", "", "Optional host:port of an InfluxDB server to report cache metrics to.")
)

// ParseConfig parses CLI flags (flag.Parse must be called by the caller
// first so testing can control argument parsing) and an optional -config
// file, returning the merged Config. Its Path is the positional endpoint
// path, or the config file's path when no positional argument is given.
func ParseConfig() (*Config, error) {
	cfg := &Config{
		Capacity:  *flagCapacity,
		Keepalive: *flagKeepalive,
		Drop:      *flagDrop,
		Verbose:   *flagVerbose,
		Stderr:    *flagStderr,
		Umask:     umaskFromFlags(*flagWorld, *flagGroup, *flagUser),
		AdminAddr: *flagAdminAddr,
		InfluxAddr: *flagInfluxAddr,
	}

	if *flagConfig != "" {
		fc, err := loadFileConfig(*flagConfig)
		if err != nil {
			return nil, err
		}
		cfg.mergeFile(fc)
	}

	if flag.NArg() >= 1 {
		cfg.Path = flag.Arg(0)
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("reusesocketd: missing required path argument")
	}

	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.Keepalive <= 0 {
		cfg.Keepalive = DefaultKeepalive.Seconds()
	}
	return cfg, nil
}

// mergeFile fills in any field the CLI left at its flag default from the
// file config. Flags that were explicitly set on the command line always
// win; detecting "explicitly set" precisely would need flag.Visit
// bookkeeping the teacher's config layer doesn't do either, so -- like
// Collector.LoadConfig -- this simply prefers the file only where the CLI
// is at its zero/default value.
func (c *Config) mergeFile(fc *fileConfig) {
	if c.Path == "" && fc.Path != "" {
		c.Path = fc.Path
	}
	if c.Capacity == DefaultCapacity && fc.Capacity > 0 {
		c.Capacity = fc.Capacity
	}
	if c.Keepalive == DefaultKeepalive.Seconds() && fc.Keepalive > 0 {
		c.Keepalive = fc.Keepalive
	}
	if c.Drop == "" && fc.Drop != "" {
		c.Drop = fc.Drop
	}
	if !c.Verbose && fc.Verbose {
		c.Verbose = true
	}
	if !c.Stderr && fc.Stderr {
		c.Stderr = true
	}
	if c.Umask == UmaskDefault && fc.Umask != "" {
		c.Umask = umaskFromName(fc.Umask)
	}
	if c.AdminAddr == "" && fc.AdminAddr != "" {
		c.AdminAddr = fc.AdminAddr
	}
	if c.InfluxAddr == "" && fc.InfluxAddr != "" {
		c.InfluxAddr = fc.InfluxAddr
	}
}

func umaskFromFlags(world, group, user bool) UmaskMode {
	switch {
	case world:
		return UmaskWorld
	case group:
		return UmaskGroup
	case user:
		return UmaskUser
	default:
		return UmaskDefault
	}
}

func umaskFromName(name string) UmaskMode {
	switch name {
	case "world":
		return UmaskWorld
	case "group":
		return UmaskGroup
	case "user":
		return UmaskUser
	default:
		return UmaskDefault
	}
}
