// Package discovery finds Hue bridges on the local network.
package discovery

import (
	"context"
	"fmt"
	stdlog "log"
	"net"
	"strings"
	"time"

	"github.com/amimof/huego"
	"github.com/hashicorp/mdns"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Bridge is a discovered bridge.
type Bridge struct {
	ID      string
	Address string
	Source  string
}

// Locator finds bridges. Implementations return what they found before ctx
// expired; an empty result is not an error.
type Locator interface {
	Locate(ctx context.Context) ([]Bridge, error)
}

// hueService is the DNS-SD service type announced by Hue bridges.
const hueService = "_hue._tcp"

// MDNSLocator queries the LAN for bridges announcing themselves over mDNS.
type MDNSLocator struct {
	Timeout time.Duration
}

// Locate implements Locator.
func (l *MDNSLocator) Locate(ctx context.Context) ([]Bridge, error) {
	timeout := l.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); timeout == 0 || remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return nil, ctx.Err()
	}

	entries := make(chan *mdns.ServiceEntry, 10)
	var queryErr error
	go func() {
		defer close(entries)
		queryErr = mdns.Query(queryParams(timeout, entries))
	}()

	var bridges []Bridge
	for entry := range entries {
		addr := entryAddress(entry)
		if addr == "" {
			continue
		}
		log.Debug().Str("name", entry.Name).Str("address", addr).Msg("mDNS found Hue bridge")
		bridges = append(bridges, Bridge{ID: bridgeIDFromInfo(entry.InfoFields), Address: addr, Source: "mdns"})
	}

	if queryErr != nil {
		return bridges, fmt.Errorf("mdns query: %w", queryErr)
	}
	return bridges, nil
}

// queryParams builds the mDNS query. Library log output is routed through
// the global zerolog logger.
func queryParams(timeout time.Duration, entries chan<- *mdns.ServiceEntry) *mdns.QueryParam {
	return &mdns.QueryParam{
		Service:             hueService,
		Domain:              "local",
		Timeout:             timeout,
		Entries:             entries,
		DisableIPv6:         true,
		WantUnicastResponse: true,
		Logger:              stdlog.New(log.Logger, "", 0),
	}
}

// entryAddress returns the address of a Hue bridge entry. Entries for other
// services heard on the multicast group yield "".
func entryAddress(entry *mdns.ServiceEntry) string {
	if !strings.Contains(entry.Name, "."+hueService+".") {
		return ""
	}
	ip := entry.AddrV4
	if ip == nil || ip.IsUnspecified() {
		return ""
	}
	if entry.Port != 0 && entry.Port != 443 && entry.Port != 80 {
		return net.JoinHostPort(ip.String(), fmt.Sprint(entry.Port))
	}
	return ip.String()
}

// bridgeIDFromInfo extracts the bridgeid TXT field, if announced.
func bridgeIDFromInfo(fields []string) string {
	const prefix = "bridgeid="
	for _, f := range fields {
		if id, ok := strings.CutPrefix(f, prefix); ok && id != "" {
			return id
		}
	}
	return ""
}

// CloudLocator asks the Hue N-UPnP discovery endpoint which bridges share
// this network's public address.
type CloudLocator struct{}

// Locate implements Locator.
func (CloudLocator) Locate(ctx context.Context) ([]Bridge, error) {
	found, err := huego.DiscoverAllContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("cloud discovery: %w", err)
	}

	bridges := make([]Bridge, 0, len(found))
	for _, b := range found {
		if b.Host == "" {
			continue
		}
		log.Debug().Str("id", b.ID).Str("address", b.Host).Msg("N-UPnP found Hue bridge")
		bridges = append(bridges, Bridge{ID: b.ID, Address: b.Host, Source: "cloud"})
	}
	return bridges, nil
}

// Multi runs several locators concurrently under a shared timeout and merges
// their results. Bridges are de-duplicated by address; results keep the
// order of the locators, so earlier locators take priority.
type Multi struct {
	Locators []Locator
	Timeout  time.Duration
}

// NewMulti returns the default LAN-first locator set.
func NewMulti(timeout time.Duration) *Multi {
	return &Multi{
		Locators: []Locator{
			&MDNSLocator{Timeout: timeout},
			CloudLocator{},
		},
		Timeout: timeout,
	}
}

// Locate implements Locator. Errors from individual locators are logged; the
// merged result is returned as long as the parent ctx is alive.
func (m *Multi) Locate(ctx context.Context) ([]Bridge, error) {
	if m.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.Timeout)
		defer cancel()
	}

	results := make([][]Bridge, len(m.Locators))
	var g errgroup.Group
	for i, loc := range m.Locators {
		g.Go(func() error {
			found, err := loc.Locate(ctx)
			if err != nil {
				log.Debug().Err(err).Int("locator", i).Msg("Bridge locator failed")
			}
			results[i] = found
			return nil
		})
	}
	_ = g.Wait()

	seen := make(map[string]bool)
	var bridges []Bridge
	for _, found := range results {
		for _, b := range found {
			if seen[b.Address] {
				continue
			}
			seen[b.Address] = true
			bridges = append(bridges, b)
		}
	}
	return bridges, nil
}
