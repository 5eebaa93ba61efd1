package oren

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// AddressMode selects how Login reaches a server.
type AddressMode int

const (
	// ModeDirect connects straight to a server (dc://host:port or host:port).
	ModeDirect AddressMode = iota
	// ModeDirectory asks a channel manager for the channel's servers first (cm://host:port).
	ModeDirectory
)

func (m AddressMode) String() string {
	if m == ModeDirectory {
		return "directory"
	}
	return "direct"
}

// Address is a parsed login address.
type Address struct {
	Mode AddressMode
	Host string
	Port int
}

// HostPort returns the address in host:port form.
func (a Address) HostPort() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

func (a Address) String() string {
	if a.Mode == ModeDirectory {
		return SCHEME_CHANNEL_MANAGER + "://" + a.HostPort()
	}
	return SCHEME_DIRECT_CONNECT + "://" + a.HostPort()
}

// ParseAddress parses a login address. Accepted forms:
//
//	cm://127.0.0.1:7474   channel manager (directory) address
//	dc://127.0.0.1:9001   direct server address
//	127.0.0.1:9001        direct server address without scheme
//
// The port is mandatory in every form.
func ParseAddress(address string) (Address, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return Address{}, fmt.Errorf("%w: empty address", ErrInvalidAddress)
	}

	mode := ModeDirect
	hostport := address
	if strings.Contains(address, "://") {
		u, err := url.Parse(address)
		if err != nil {
			return Address{}, fmt.Errorf("%w: %q: %v", ErrInvalidAddress, address, err)
		}
		switch strings.ToLower(u.Scheme) {
		case SCHEME_CHANNEL_MANAGER:
			mode = ModeDirectory
		case SCHEME_DIRECT_CONNECT:
			mode = ModeDirect
		default:
			return Address{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidAddress, u.Scheme)
		}
		if u.Path != "" && u.Path != "/" {
			return Address{}, fmt.Errorf("%w: unexpected path in %q", ErrInvalidAddress, address)
		}
		hostport = u.Host
	}

	return parseHostPort(mode, hostport)
}

// parseServerAddress parses a host:port address returned by a directory.
func parseServerAddress(address string) (Address, error) {
	return parseHostPort(ModeDirect, strings.TrimSpace(address))
}

func parseHostPort(mode AddressMode, hostport string) (Address, error) {
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %q: %v", ErrInvalidAddress, hostport, err)
	}
	if host == "" {
		return Address{}, fmt.Errorf("%w: missing host in %q", ErrInvalidAddress, hostport)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 0xffff {
		return Address{}, fmt.Errorf("%w: invalid port %q", ErrInvalidAddress, portStr)
	}
	return Address{Mode: mode, Host: host, Port: port}, nil
}
