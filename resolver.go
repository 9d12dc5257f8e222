package reusesocketd

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"strconv"

	"golang.org/x/sys/unix"
)

// resolvedEndpoint is a single tuple yielded by address resolution,
// augmented with the family/sock_type/proto/canonical-name fields that, put
// together with the request's uid, form a cacheKey.
type resolvedEndpoint struct {
	Family    int
	SockType  int
	Proto     int
	CanonName string
	Sockaddr  unix.Sockaddr
	sockaddrK string // pre-rendered for cacheKey.SockaddrKey
}

// resolvedKey pairs a cacheKey with the concrete sockaddr needed to bind a
// fresh socket on a cache miss; unix.Sockaddr values aren't comparable, so
// they can't live inside cacheKey itself.
type resolvedKey struct {
	Key      cacheKey
	Sockaddr unix.Sockaddr
}

// resolver performs the host/service resolution spec §4.2 delegates to the
// "system's standard host/service resolution facility". Go's net.Resolver
// does not expose raw getaddrinfo(3) family/socktype/proto/flags like the
// Python original's socket.getaddrinfo -- there is no portable, non-cgo
// equivalent in the standard library or anywhere in the example pack, so
// this type reimplements just enough of that contract: DNS/literal lookup
// via net.Resolver, with an unspecified sock_type/proto defaulted to
// stream/TCP (see resolveEndpoints).
// This is a documented stdlib fallback -- see DESIGN.md.
type resolver struct {
	lookup *net.Resolver
}

func newResolver() *resolver {
	return &resolver{lookup: net.DefaultResolver}
}

// Resolve turns a parsed request into an ordered list of resolved keys, one
// per resolved endpoint, applying the limit/shuffle rule from spec §4.1.
func (r *resolver) Resolve(ctx context.Context, req *request) ([]resolvedKey, error) {
	endpoints, err := r.resolveEndpoints(ctx, req)
	if err != nil {
		return nil, err
	}

	if req.HasLimit {
		if req.Limit < 0 {
			rand.Shuffle(len(endpoints), func(i, j int) {
				endpoints[i], endpoints[j] = endpoints[j], endpoints[i]
			})
			endpoints = truncate(endpoints, -req.Limit)
		} else {
			endpoints = truncate(endpoints, req.Limit)
		}
	}

	keys := make([]resolvedKey, 0, len(endpoints))
	for _, ep := range endpoints {
		keys = append(keys, resolvedKey{
			Key: cacheKey{
				UID:         req.UID,
				Family:      ep.Family,
				SockType:    ep.SockType,
				Proto:       ep.Proto,
				CanonName:   ep.CanonName,
				SockaddrKey: ep.sockaddrK,
			},
			Sockaddr: ep.Sockaddr,
		})
	}
	return keys, nil
}

func truncate(endpoints []resolvedEndpoint, limit int) []resolvedEndpoint {
	if limit < 0 {
		limit = 0
	}
	if limit > len(endpoints) {
		limit = len(endpoints)
	}
	return endpoints[:limit]
}

// resolveEndpoints performs the actual host/port/family resolution. sock_type
// and proto, when left unspecified (0), default to SOCK_STREAM/IPPROTO_TCP:
// every cached socket is subsequently Listen()'d (spec §4.3), which only
// makes sense for stream sockets, so this daemon narrows the original's
// "whatever getaddrinfo enumerates" behavior to the stream case it actually
// supports. See DESIGN.md's resolver.go entry.
func (r *resolver) resolveEndpoints(ctx context.Context, req *request) ([]resolvedEndpoint, error) {
	sockType := req.SockType
	if sockType == 0 {
		sockType = unix.SOCK_STREAM
	}
	proto := req.Proto
	if proto == 0 {
		switch sockType {
		case unix.SOCK_STREAM:
			proto = unix.IPPROTO_TCP
		case unix.SOCK_DGRAM:
			proto = unix.IPPROTO_UDP
		}
	}

	port, err := r.resolvePort(req.Port)
	if err != nil {
		return nil, fmt.Errorf("getaddrinfo failed: %w", err)
	}

	ips, canonName, err := r.resolveHost(ctx, req.Host)
	if err != nil {
		return nil, fmt.Errorf("getaddrinfo failed: %w", err)
	}

	endpoints := make([]resolvedEndpoint, 0, len(ips))
	for _, ip := range ips {
		family := familyOf(ip)
		if req.Family != 0 && req.Family != family {
			continue
		}
		sa, key := ipSockaddr(ip, port)
		endpoints = append(endpoints, resolvedEndpoint{
			Family:    family,
			SockType:  sockType,
			Proto:     proto,
			CanonName: canonName,
			Sockaddr:  sa,
			sockaddrK: key,
		})
	}
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("getaddrinfo failed: no matching address for host %q", req.Host)
	}
	return endpoints, nil
}

// resolvePort decodes a numeric port or, if not numeric, looks up a service
// name via the resolver's LookupPort. An empty port (wildcard) is 0, letting
// the kernel pick an ephemeral port, matching AI_PASSIVE + NULL service.
func (r *resolver) resolvePort(port string) (int, error) {
	if port == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(port); err == nil {
		return n, nil
	}
	n, err := r.lookup.LookupPort(context.Background(), "tcp", port)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// resolveHost looks up the host's addresses and a canonical name. An empty
// host (wildcard) maps to the IPv4 and IPv6 "any" addresses, matching
// AI_PASSIVE + NULL host.
func (r *resolver) resolveHost(ctx context.Context, host string) ([]net.IP, string, error) {
	if host == "" {
		return []net.IP{net.IPv4zero, net.IPv6unspecified}, "", nil
	}
	addrs, err := r.lookup.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, "", err
	}
	ips := make([]net.IP, 0, len(addrs))
	for _, a := range addrs {
		ips = append(ips, a.IP)
	}
	canonName := host
	if cname, err := r.lookup.LookupCNAME(ctx, host); err == nil && cname != "" {
		canonName = cname
	}
	return ips, canonName, nil
}

func familyOf(ip net.IP) int {
	if ip.To4() != nil {
		return unix.AF_INET
	}
	return unix.AF_INET6
}

// ipSockaddr builds the golang.org/x/sys/unix.Sockaddr bind() needs, along
// with a canonical string rendering used as the cacheKey's sockaddr
// component (Sockaddr values themselves are not comparable/hashable).
func ipSockaddr(ip net.IP, port int) (unix.Sockaddr, string) {
	if v4 := ip.To4(); v4 != nil {
		var addr [4]byte
		copy(addr[:], v4)
		return &unix.SockaddrInet4{Port: port, Addr: addr}, fmt.Sprintf("%s:%d", ip, port)
	}
	var addr [16]byte
	copy(addr[:], ip.To16())
	return &unix.SockaddrInet6{Port: port, Addr: addr}, fmt.Sprintf("[%s]:%d", ip, port)
}
