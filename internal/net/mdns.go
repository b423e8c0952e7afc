package net

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"time"

	"github.com/hashicorp/mdns"

	"LiveBoard/internal/logging"
)

// DefaultService is the mDNS service type boards are published under.
const DefaultService = "_liveboard._tcp"

// Advertise publishes a board listening on port so clients on the local
// network can find it. Shutdown the returned server to withdraw it.
func Advertise(service string, port int) (*mdns.Server, error) {
	host, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("could not get hostname: %w", err)
	}

	zone, err := mdns.NewMDNSService(
		host,
		service,
		"",
		"",
		port,
		nil,
		[]string{"LiveBoard"},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: zone, Logger: quietLogger()})
	if err != nil {
		return nil, fmt.Errorf("failed to start mDNS server: %w", err)
	}
	logging.Info().Str("service", service).Str("host", host).Int("port", port).Msg("advertising board")
	return server, nil
}

// Discover looks for advertised boards and returns the first one found as a
// host:port pair.
func Discover(ctx context.Context, service string, timeout time.Duration) (string, error) {
	entries := make(chan *mdns.ServiceEntry, 8)
	found := make(chan string, 1)

	go func() {
		for e := range entries {
			if e.AddrV4 == nil || e.Port == 0 {
				continue
			}
			select {
			case found <- fmt.Sprintf("%s:%d", e.AddrV4.String(), e.Port):
			default:
			}
		}
	}()

	params := mdns.DefaultParams(service)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true
	params.Logger = quietLogger()

	lookup := make(chan error, 1)
	go func() {
		lookup <- mdns.Query(params)
		close(entries)
	}()

	select {
	case addr := <-found:
		return addr, nil
	case err := <-lookup:
		if err != nil {
			return "", fmt.Errorf("mDNS lookup: %w", err)
		}
		select {
		case addr := <-found:
			return addr, nil
		default:
			return "", fmt.Errorf("no board found for %s", service)
		}
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// firstIPv4 returns the first non-loopback IPv4 address of an interface that is up.
func firstIPv4() net.IP {
	ifaces, _ := net.Interfaces()
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, _ := iface.Addrs()
		for _, a := range addrs {
			if ipnet, ok := a.(*net.IPNet); ok && ipnet.IP.To4() != nil {
				return ipnet.IP.To4()
			}
		}
	}
	return net.IPv4(127, 0, 0, 1)
}

// hashicorp/mdns logs through the standard library logger; keep it quiet
// unless debug logging is on.
func quietLogger() *log.Logger {
	if logging.Logger.GetLevel() <= logging.DebugLevel {
		return log.New(logging.Logger, "mdns: ", 0)
	}
	return log.New(io.Discard, "", 0)
}
