package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/enbility/zeroconf/v3"
)

const (
	ServiceType = "_flichub._tcp"
	Domain      = "local."

	// MaxInstanceNameLen is the DNS label limit for instance names.
	MaxInstanceNameLen = 63
)

// Service is a relay found on the network.
type Service struct {
	Instance  string
	Host      string
	Port      int
	Addresses []string
	Version   string
}

// Addr returns a dialable host:port, preferring the first resolved address.
func (s Service) Addr() string {
	host := strings.TrimSuffix(s.Host, ".")
	if len(s.Addresses) > 0 {
		host = s.Addresses[0]
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return fmt.Sprintf("%s:%d", host, s.Port)
}

// Advertiser publishes the relay's TCP port over mDNS.
type Advertiser struct {
	instance string
	version  string
	logger   *slog.Logger

	mu     sync.Mutex
	server *zeroconf.Server
}

func NewAdvertiser(instance, version string, logger *slog.Logger) *Advertiser {
	if logger == nil {
		logger = slog.Default()
	}
	if len(instance) > MaxInstanceNameLen {
		instance = instance[:MaxInstanceNameLen]
	}
	return &Advertiser{instance: instance, version: version, logger: logger}
}

// Start registers the service on all interfaces. Calling it again re-registers.
func (a *Advertiser) Start(port int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	server, err := zeroconf.Register(
		a.instance,
		ServiceType,
		Domain,
		port,
		EncodeTXT(map[string]string{"version": a.version}),
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register mdns service: %w", err)
	}
	a.server = server
	a.logger.Info("mdns_advertising", "instance", a.instance, "service", ServiceType, "port", port)
	return nil
}

// Stop withdraws the advertisement.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
		a.logger.Info("mdns_stopped", "instance", a.instance)
	}
}

// Browse collects relays until ctx is done. Entries for the same instance
// seen on several interfaces are merged.
func Browse(ctx context.Context) ([]Service, error) {
	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	errCh := make(chan error, 1)
	go func() {
		errCh <- zeroconf.Browse(ctx, ServiceType, Domain, entries, removed)
	}()

	found := make(map[string]*Service)
	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				entries = nil
				continue
			}
			svc := entryToService(entry)
			if existing, dup := found[svc.Instance]; dup {
				existing.Addresses = mergeAddresses(existing.Addresses, svc.Addresses)
				continue
			}
			found[svc.Instance] = &svc
		case entry, ok := <-removed:
			if !ok {
				removed = nil
				continue
			}
			delete(found, entry.Instance)
		case <-ctx.Done():
			return collect(found), nil
		case err := <-errCh:
			if err != nil {
				return nil, fmt.Errorf("mdns browse failed: %w", err)
			}
			// Browse returned early without error; keep waiting for ctx
			errCh = nil
		}
	}
}

func entryToService(entry *zeroconf.ServiceEntry) Service {
	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}
	txt := DecodeTXT(entry.Text)
	return Service{
		Instance:  entry.Instance,
		Host:      entry.HostName,
		Port:      entry.Port,
		Addresses: addrs,
		Version:   txt["version"],
	}
}

func collect(found map[string]*Service) []Service {
	out := make([]Service, 0, len(found))
	for _, s := range found {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Instance < out[j].Instance })
	return out
}

func mergeAddresses(have, more []string) []string {
	for _, a := range more {
		dup := false
		for _, h := range have {
			if h == a {
				dup = true
				break
			}
		}
		if !dup {
			have = append(have, a)
		}
	}
	return have
}

// EncodeTXT renders key=value TXT strings in key order.
func EncodeTXT(records map[string]string) []string {
	keys := make([]string, 0, len(records))
	for k := range records {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+records[k])
	}
	return out
}

// DecodeTXT parses key=value TXT strings; entries without '=' map to "".
func DecodeTXT(txt []string) map[string]string {
	out := make(map[string]string, len(txt))
	for _, s := range txt {
		k, v, _ := strings.Cut(s, "=")
		if k == "" {
			continue
		}
		out[k] = v
	}
	return out
}
