// Package discovery announces and finds blueprints servers on the local
// network over mDNS.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/hashicorp/mdns"

	"github.com/okian/blueprints/pkg/logger"
)

// ServiceType is the mDNS service advertised by the server.
const ServiceType = "_blueprints._tcp"

// ErrInvalidPort is returned for ports outside 1..65535.
var ErrInvalidPort = errors.New("invalid port")

// NewService describes one server instance. An empty instance uses the
// hostname; nil ips lets mdns resolve the host addresses.
func NewService(instance string, port int, ips []net.IP, txt ...string) (*mdns.MDNSService, error) {
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPort, port)
	}
	if instance == "" {
		host, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("could not get hostname: %w", err)
		}
		instance = host
	}
	if len(txt) == 0 {
		txt = []string{"blueprints"}
	}
	svc, err := mdns.NewMDNSService(instance, ServiceType, "", "", port, ips, txt)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS service: %w", err)
	}
	return svc, nil
}

// Advertiser answers mDNS queries for one service until shut down.
type Advertiser struct {
	server  *mdns.Server
	service *mdns.MDNSService
	logger  logger.Logger
}

// Advertise starts answering queries for the server on port.
func Advertise(ctx context.Context, instance string, port int, l logger.Logger) (*Advertiser, error) {
	if l == nil {
		l = logger.Nop()
	}
	svc, err := NewService(instance, port, nil, "path=/ws")
	if err != nil {
		return nil, err
	}
	server, err := mdns.NewServer(&mdns.Config{Zone: svc})
	if err != nil {
		return nil, fmt.Errorf("failed to start mDNS server: %w", err)
	}
	l.Info(ctx, "advertising on mDNS",
		logger.String("instance", svc.Instance),
		logger.String("service", ServiceType),
		logger.Int("port", port),
	)
	return &Advertiser{server: server, service: svc, logger: l}, nil
}

// Shutdown stops answering queries.
func (a *Advertiser) Shutdown(ctx context.Context) error {
	if err := a.server.Shutdown(); err != nil {
		return fmt.Errorf("mDNS shutdown: %w", err)
	}
	a.logger.Info(ctx, "mDNS advertisement stopped", logger.String("instance", a.service.Instance))
	return nil
}

// Browse queries the network for up to timeout and returns the "ip:port" of
// every IPv4 server that answered. It returns early with ctx.Err() when ctx
// is done; the underlying query keeps running in the background until its
// own timeout.
func Browse(ctx context.Context, timeout time.Duration) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries := make(chan *mdns.ServiceEntry, 8)
	queryErr := make(chan error, 1)
	params := mdns.DefaultParams(ServiceType)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true
	go func() {
		queryErr <- mdns.Query(params)
		close(entries)
	}()

	var addrs []string
	for {
		select {
		case <-ctx.Done():
			go func() {
				for range entries {
				}
			}()
			return addrs, ctx.Err()
		case e, ok := <-entries:
			if !ok {
				if err := <-queryErr; err != nil {
					return addrs, fmt.Errorf("mDNS query: %w", err)
				}
				return addrs, nil
			}
			if addr := entryAddr(e); addr != "" {
				addrs = append(addrs, addr)
			}
		}
	}
}

func entryAddr(e *mdns.ServiceEntry) string {
	if e == nil || e.AddrV4 == nil || e.Port == 0 {
		return ""
	}
	return net.JoinHostPort(e.AddrV4.String(), strconv.Itoa(e.Port))
}
