// Package locator parses and validates the `proto/addr` strings kelp uses
// to name listen and peer endpoints, e.g. "tcp/127.0.0.1:7447".
package locator

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kelp-mesh/kelp/internal/netutil"
)

var (
	// ErrInvalidLocator is the sentinel every parse failure wraps.
	ErrInvalidLocator = errors.New("invalid locator")

	errMissingSeparator = fmt.Errorf("%w: missing \"/\" separator between protocol and address", ErrInvalidLocator)
	errEmptyProto       = fmt.Errorf("%w: empty protocol", ErrInvalidLocator)
	errEmptyAddress     = fmt.Errorf("%w: empty address", ErrInvalidLocator)
	errMissingPort      = fmt.Errorf("%w: address missing port", ErrInvalidLocator)
	errInvalidPort      = fmt.Errorf("%w: port is not numeric", ErrInvalidLocator)
)

// Locator names an endpoint as a transport protocol plus a host:port
// address, e.g. Locator{Proto: "tcp", Address: "127.0.0.1:7447"}.
type Locator struct {
	Proto   string
	Address string
}

// Parse splits and validates s as "proto/host:port". The host half is
// not resolved (no DNS lookup); only structural validity is checked.
func Parse(s string) (Locator, error) {
	proto, address, ok := strings.Cut(s, "/")
	if !ok {
		return Locator{}, errMissingSeparator
	}
	if proto == "" {
		return Locator{}, errEmptyProto
	}
	if address == "" {
		return Locator{}, errEmptyAddress
	}

	host, port := netutil.SplitHostPort(address)
	if port == "" {
		return Locator{}, errMissingPort
	}
	if _, err := strconv.ParseUint(port, 10, 16); err != nil {
		return Locator{}, fmt.Errorf("%w: %q", errInvalidPort, port)
	}
	_ = host // structural check only; an empty host (":7447") means "all interfaces" and is valid.

	return Locator{Proto: proto, Address: address}, nil
}

// String reconstructs the "proto/host:port" form Parse accepts.
func (l Locator) String() string {
	return l.Proto + "/" + l.Address
}
