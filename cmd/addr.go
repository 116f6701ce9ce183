package cmd

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
)

// parseServeAddr resolves the listen address for serve mode. The address may
// be given positionally (ragchat serve :8080) or via -addr/--addr; defaultAddr
// applies when neither is present.
func parseServeAddr(args []string, defaultAddr string) (string, error) {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	addr := fs.String("addr", defaultAddr, "Server address (host:port)")

	// A leading non-flag argument is the positional form.
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		*addr = args[0]
		args = args[1:]
	}

	if err := fs.Parse(args); err != nil {
		return "", fmt.Errorf("parsing serve flags: %w", err)
	}

	if err := validateAddr(*addr); err != nil {
		return "", fmt.Errorf("invalid address %q: %w", *addr, err)
	}
	return *addr, nil
}

// validateAddr checks that addr is host:port with a numeric port in range.
// Port 0 is accepted (the listener auto-assigns). Hostnames pass as long as
// they contain no whitespace; IPs must parse.
func validateAddr(addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("must be in host:port format: %w", err)
	}

	if port == "" {
		return fmt.Errorf("port is required")
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("port must be numeric: %w", err)
	}
	if n < 0 || n > 65535 {
		return fmt.Errorf("port out of range: %d", n)
	}

	if host == "" || host == "localhost" {
		return nil
	}
	if net.ParseIP(host) == nil && strings.ContainsAny(host, " \t\n") {
		return fmt.Errorf("invalid host: %s", host)
	}
	return nil
}
