package reusesocketd

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// request is the parsed form of a single client record:
//
//	uid host_port [family [sock_type [proto [flags [limit]]]]]
//
// Fields are separated by exactly one ASCII space; an empty field is two
// consecutive separators. host_port is itself a composite, see
// extractHostPort.
type request struct {
	UID      string
	Host     string // "" means wildcard/unspecified
	Port     string // "" means wildcard/unspecified; numeric or service name
	Family   int
	SockType int
	Proto    int
	Flags    int
	Limit    int
	HasLimit bool
}

// defaultAIFlags stands in for the Python original's fallback chain over
// AI_V4MAPPED/AI_ADDRCONFIG/AI_DEFAULT. No platform probe is made here:
// computeDefaultAIFlags always returns 0, so only AI_CANONNAME|AI_PASSIVE
// are added to a request's flags.
var defaultAIFlags = computeDefaultAIFlags()

func computeDefaultAIFlags() int {
	// golang.org/x/sys/unix only defines AI_* flags this daemon needs
	// (AI_CANONNAME, AI_PASSIVE) portably; the V4MAPPED/ADDRCONFIG/DEFAULT
	// hinting the Python original layered on is libc-specific getaddrinfo(3)
	// behavior with no stable cross-platform constant here. We keep parity
	// with the documented *intent* (let the resolver produce sensible
	// dual-stack results) by leaving this 0: net.Resolver already applies
	// its own AAAA/A preference without needing these hints.
	return 0
}

var hostPortBracketOnly = regexp.MustCompile(`^\[(.*)\]$`)
var hostPortBracketPort = regexp.MustCompile(`^\[(.*)\]:([^][:]*)$`)
var hostPortTrailing = regexp.MustCompile(`^(.*):([^:]*)$`)

// extractHostPort splits a host_port token into host and port substrings,
// following the literal patterns in spec order: "[h]", "[h]:p", "h:p", "h".
func extractHostPort(s string) (host, port string) {
	if m := hostPortBracketOnly.FindStringSubmatch(s); m != nil {
		return m[1], ""
	}
	if m := hostPortBracketPort.FindStringSubmatch(s); m != nil {
		return m[1], m[2]
	}
	if m := hostPortTrailing.FindStringSubmatch(s); m != nil {
		return m[1], m[2]
	}
	return s, ""
}

// wildcard turns "" and "*" into the resolver's wildcard sentinel ("").
func wildcard(s string) string {
	if s == "*" {
		return ""
	}
	return s
}

// parseRequest decodes one client record into a request. Per spec, a record
// with fewer than two tokens (missing host_port) is a parse failure, since
// the source this was distilled from indexes past the token list rather
// than handling it.
func parseRequest(raw string) (*request, error) {
	fields := strings.Split(raw, " ")
	if len(fields) < 2 {
		return nil, fmt.Errorf("reusesocketd: request has fewer than 2 fields")
	}

	req := &request{UID: fields[0]}
	host, port := extractHostPort(fields[1])
	req.Host = wildcard(host)
	req.Port = wildcard(port)

	var err error
	if req.Family, err = intField(fields, 2); err != nil {
		return nil, err
	}
	if req.SockType, err = intField(fields, 3); err != nil {
		return nil, err
	}
	if req.Proto, err = intField(fields, 4); err != nil {
		return nil, err
	}
	if req.Flags, err = intField(fields, 5); err != nil {
		return nil, err
	}
	req.Flags |= unix.AI_CANONNAME | unix.AI_PASSIVE | defaultAIFlags

	if len(fields) > 6 {
		limit, err := strconv.Atoi(fields[6])
		if err != nil {
			return nil, fmt.Errorf("reusesocketd: invalid limit %q: %w", fields[6], err)
		}
		req.Limit = limit
		req.HasLimit = true
	}

	return req, nil
}

// intField decodes fields[i] as a decimal integer, defaulting to 0 if the
// field is absent. An empty-but-present field is also 0, matching the
// Python original's int("") being impossible to reach (it never sends an
// empty numeric field) -- we treat it the same as absent for leniency.
func intField(fields []string, i int) (int, error) {
	if i >= len(fields) || fields[i] == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(fields[i])
	if err != nil {
		return 0, fmt.Errorf("reusesocketd: invalid integer field %q: %w", fields[i], err)
	}
	return v, nil
}
