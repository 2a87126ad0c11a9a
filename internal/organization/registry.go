package organization

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownOrganization is returned when an address or id is not in the registry.
var ErrUnknownOrganization = errors.New("unknown organization")

// Organization identifies a deployment site. Values compare by id.
type Organization string

func (o Organization) String() string {
	return string(o)
}

// IsZero reports whether o is the empty organization.
func (o Organization) IsZero() bool {
	return o == ""
}

// Peer is one static registry entry.
type Peer struct {
	ID       string `mapstructure:"id" yaml:"id"`
	IP       string `mapstructure:"ip" yaml:"ip"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
}

// Registry maps network identity to organization and organization to sync endpoint.
// It is built once and never mutated, so it is safe for concurrent use.
type Registry struct {
	local     Organization
	byIP      map[string]Organization
	endpoints map[Organization]string
}

// NewRegistry builds a registry for the local organization from the given peers.
// The local organization must appear among the peers.
func NewRegistry(local string, peers []Peer) (*Registry, error) {
	r := &Registry{
		local:     Organization(strings.TrimSpace(local)),
		byIP:      make(map[string]Organization, len(peers)),
		endpoints: make(map[Organization]string, len(peers)),
	}

	known := make(map[Organization]bool, len(peers))
	for _, p := range peers {
		id := Organization(strings.TrimSpace(p.ID))
		ip := strings.TrimSpace(p.IP)
		if id.IsZero() {
			return nil, fmt.Errorf("peer with ip %q has no id", p.IP)
		}
		if ip == "" {
			return nil, fmt.Errorf("peer %s has no ip", id)
		}
		if existing, ok := r.byIP[ip]; ok && existing != id {
			return nil, fmt.Errorf("ip %s mapped to both %s and %s", ip, existing, id)
		}
		r.byIP[ip] = id
		known[id] = true
		if ep := strings.TrimRight(strings.TrimSpace(p.Endpoint), "/"); ep != "" {
			r.endpoints[id] = ep
		}
	}

	if r.local.IsZero() {
		return nil, errors.New("current organization is not set")
	}
	if !known[r.local] {
		return nil, fmt.Errorf("%w: current organization %s", ErrUnknownOrganization, r.local)
	}

	return r, nil
}

// Local returns the organization this process runs as.
func (r *Registry) Local() Organization {
	return r.local
}

// Resolve returns the organization that owns ip.
func (r *Registry) Resolve(ip string) (Organization, error) {
	org, ok := r.byIP[strings.TrimSpace(ip)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownOrganization, ip)
	}
	return org, nil
}

// EndpointFor returns the sync base URL of org. The boolean is false when none is
// configured; callers treat that as a hard stop for syncing.
func (r *Registry) EndpointFor(org Organization) (string, bool) {
	ep, ok := r.endpoints[org]
	return ep, ok
}

// Parse validates id against the registry.
func (r *Registry) Parse(id string) (Organization, error) {
	org := Organization(strings.TrimSpace(id))
	for _, known := range r.byIP {
		if known == org {
			return org, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownOrganization, id)
}

// IsLocal reports whether org is the local organization.
func (r *Registry) IsLocal(org Organization) bool {
	return org == r.local
}
