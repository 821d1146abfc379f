// Package discovery finds relays on the local network over mDNS.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/mdns"
)

const Service = "_canvas-relay._tcp"

var ErrNotFound = errors.New("no relay found")

// Advertise announces a relay listening on port under the given instance name.
// Shut the returned server down to stop announcing.
func Advertise(instance string, port int) (*mdns.Server, error) {
	service, err := mdns.NewMDNSService(instance, Service, "", "", port, nil, []string{"path=/"})
	if err != nil {
		return nil, fmt.Errorf("mdns service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("mdns server: %w", err)
	}

	return server, nil
}

// Browse returns the websocket url of the first relay that answers within
// timeout.
func Browse(ctx context.Context, timeout time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	entries := make(chan *mdns.ServiceEntry, 8)
	found := make(chan string, 1)
	drained := make(chan struct{})

	go func() {
		defer close(drained)
		for e := range entries {
			if e.AddrV4 == nil || e.Port == 0 {
				continue
			}

			select {
			case found <- URL(e):
			default:
			}
		}
	}()

	params := mdns.DefaultParams(Service)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true

	err := mdns.Query(params)
	close(entries)
	<-drained

	if err != nil {
		return "", fmt.Errorf("mdns query: %w", err)
	}

	select {
	case u := <-found:
		return u, nil
	default:
		return "", ErrNotFound
	}
}

func URL(e *mdns.ServiceEntry) string {
	return fmt.Sprintf("ws://%v:%v/", e.AddrV4, e.Port)
}
