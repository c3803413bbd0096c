// Package uri parses the remote-URI grammar from spec.md §6:
//
//	scheme://[user[:password]@]host[:port][/abs-path]
package uri

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/duotui/duotui/fsops"
)

// Parsed is a remote URI broken into an fsops.Endpoint's fields.
type Parsed struct {
	Kind     fsops.EndpointKind
	Host     string
	Port     int
	User     string
	Password string
	Path     string
}

var defaultPorts = map[fsops.EndpointKind]int{
	fsops.KindSFTP:   22,
	fsops.KindSCP:    22,
	fsops.KindFTP:    21,
	fsops.KindFTPS:   990,
	fsops.KindS3:     443,
	fsops.KindSMB:    445,
	fsops.KindWebDAV: 443,
	fsops.KindKube:   443,
}

// Parse parses raw into a Parsed descriptor.
func Parse(raw string) (Parsed, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Parsed{}, fmt.Errorf("uri: %w", err)
	}
	kind := fsops.EndpointKind(u.Scheme)
	if !validKind(kind) {
		return Parsed{}, fmt.Errorf("uri: unsupported scheme %q", u.Scheme)
	}
	p := Parsed{Kind: kind, Host: u.Hostname(), Path: u.Path}
	if u.User != nil {
		p.User = u.User.Username()
		p.Password, _ = u.User.Password()
	}
	if portStr := u.Port(); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return Parsed{}, fmt.Errorf("uri: bad port %q", portStr)
		}
		p.Port = port
	} else {
		p.Port = defaultPorts[kind]
	}
	return p, nil
}

func validKind(k fsops.EndpointKind) bool {
	switch k {
	case fsops.KindSFTP, fsops.KindSCP, fsops.KindFTP, fsops.KindFTPS,
		fsops.KindS3, fsops.KindSMB, fsops.KindWebDAV, fsops.KindKube:
		return true
	default:
		return false
	}
}

// ToEndpoint builds an *fsops.Endpoint from a Parsed URI.
func (p Parsed) ToEndpoint() *fsops.Endpoint {
	return &fsops.Endpoint{
		Kind:     p.Kind,
		Host:     p.Host,
		Port:     p.Port,
		User:     p.User,
		Path:     p.Path,
		Timeout:  fsops.DefaultTimeout,
		RetryMax: 3,
		Credentials: Credentials{
			User:     p.User,
			Password: p.Password,
		},
	}
}

// Credentials is the opaque per-endpoint secret the core never inspects;
// each backend type-asserts it out of Endpoint.Credentials.
type Credentials struct {
	User     string
	Password string
}
