package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// MaxBackends caps the number of backends a roster can populate, matching
// the original program's MAX_SERVERS.
const MaxBackends = 10

const (
	maxNameLen    = 19
	maxAddressLen = 15
)

var dottedQuadPattern = regexp.MustCompile(`^(\d{1,3})\.(\d{1,3})\.(\d{1,3})\.(\d{1,3})$`)

// BackendSpec is one parsed roster entry: a backend's identity and dial
// target, before any connection attempt has been made.
type BackendSpec struct {
	Name    string
	Address string
	Port    int
}

// isDottedQuad reports whether address is a syntactically valid IPv4
// dotted-quad string. No DNS resolution is ever attempted — roster
// addresses must be literal IPv4 addresses, matching spec.md's explicit
// "no DNS resolution is performed" edge case.
func isDottedQuad(address string) bool {
	m := dottedQuadPattern.FindStringSubmatch(address)
	if m == nil {
		return false
	}
	for _, octet := range m[1:] {
		v, err := strconv.Atoi(octet)
		if err != nil || v > 255 {
			return false
		}
	}
	return true
}

// ParseRosterLine parses a single "NAME ADDRESS PORT" roster line.
func ParseRosterLine(line string) (BackendSpec, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return BackendSpec{}, fmt.Errorf("expected 3 whitespace-separated fields, got %d", len(fields))
	}

	name, address, portStr := fields[0], fields[1], fields[2]

	if len(name) > maxNameLen {
		return BackendSpec{}, fmt.Errorf("name %q exceeds %d characters", name, maxNameLen)
	}
	if len(address) > maxAddressLen {
		return BackendSpec{}, fmt.Errorf("address %q exceeds %d characters", address, maxAddressLen)
	}
	if !isDottedQuad(address) {
		return BackendSpec{}, fmt.Errorf("address %q is not a valid IPv4 dotted quad", address)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return BackendSpec{}, fmt.Errorf("port %q is not an integer: %w", portStr, err)
	}
	if port < 1 || port > 65535 {
		return BackendSpec{}, fmt.Errorf("port %d out of range [1, 65535]", port)
	}

	return BackendSpec{Name: name, Address: address, Port: port}, nil
}

// LoadRoster reads at most MaxBackends well-formed roster lines from path.
// A malformed line is skipped and its parse error discarded rather than
// aborting the whole load — one bad line in an otherwise-good roster shouldn't sink
// every backend on it.
func LoadRoster(path string) ([]BackendSpec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening roster file: %w", err)
	}
	defer f.Close()

	return parseRoster(f)
}

func parseRoster(r io.Reader) ([]BackendSpec, error) {
	scanner := bufio.NewScanner(r)
	var specs []BackendSpec

	for len(specs) < MaxBackends && scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		spec, err := ParseRosterLine(line)
		if err != nil {
			// Malformed lines are dropped, not fatal — mirrors the original's
			// sscanf-based loader, which simply doesn't advance its count on
			// a line it can't parse.
			continue
		}
		specs = append(specs, spec)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading roster file: %w", err)
	}

	return specs, nil
}
