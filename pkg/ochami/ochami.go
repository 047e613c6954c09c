// Package ochami implements the backend dispatcher capability set against
// OCHAMI's SMD, BSS and PCS REST services. It is one backend among several a
// program may link; callers should depend on the interfaces in pkg/backend,
// not on this package's concrete type.
package ochami

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"git.cscs.ch/openchami/chamicore-connect/pkg/backend"
	"git.cscs.ch/openchami/chamicore-connect/pkg/client"
	"git.cscs.ch/openchami/chamicore-connect/pkg/hostlist"
)

const (
	smdComponentsPath    = "/hsm/v2/State/Components"
	smdGroupsPath        = "/hsm/v2/groups"
	smdHardwarePath      = "/hsm/v2/Inventory/Hardware"
	smdHardwareQueryPath = "/hsm/v2/Inventory/Hardware/Query"
	smdRedfishPath       = "/hsm/v2/Inventory/RedfishEndpoints"
	smdEthernetPath      = "/hsm/v2/Inventory/EthernetInterfaces"
	bssBootParamsPath    = "/boot/v1/bootparameters"
	pcsTransitionsPath   = "/power-control/v1/transitions"
	pcsPowerStatusPath   = "/power-control/v1/power-status"

	defaultBulkMaxNodes = 20
	defaultMaxInFlight  = 10
)

// Config holds OCHAMI backend configuration. Endpoint options are fixed at
// construction and shared read-only by every dispatch call.
type Config struct {
	// BaseURL is the OCHAMI API gateway root.
	BaseURL string
	// Token is the bearer token for API requests.
	Token string
	// TokenRefresh optionally resolves a token per request when Token is empty.
	TokenRefresh func(ctx context.Context) (string, error)
	// Timeout is the per-request timeout. Defaults to 30s.
	Timeout time.Duration

	// RootCAs is an optional PEM bundle pinning the endpoint certificate.
	RootCAs []byte
	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool
	// ProxyURL routes requests through an http, https or socks5 proxy.
	ProxyURL string

	// BulkMaxNodes caps how many hosts ride in one bulk request before an
	// operation is split into batches. The live API's documented batch
	// limit is not pinned down, so this stays policy rather than constant.
	// Defaults to 20.
	BulkMaxNodes int
	// MaxInFlight bounds concurrent per-host requests within one fanned-out
	// operation. Defaults to 10.
	MaxInFlight int

	// HTTPClient optionally replaces the built transport (tests).
	HTTPClient *http.Client
	// Logger receives debug logging. Nil disables it.
	Logger *zerolog.Logger
}

// Backend is the OCHAMI implementation of backend.Dispatcher.
type Backend struct {
	http         *client.Client
	bulkMaxNodes int
	maxInFlight  int
	logger       zerolog.Logger
}

var _ backend.Dispatcher = (*Backend)(nil)

// New creates an OCHAMI backend for the given endpoint.
func New(cfg Config) (*Backend, error) {
	httpClient, err := client.New(client.Config{
		BaseURL:            cfg.BaseURL,
		Token:              cfg.Token,
		TokenRefresh:       cfg.TokenRefresh,
		Timeout:            cfg.Timeout,
		RootCAs:            cfg.RootCAs,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		ProxyURL:           cfg.ProxyURL,
		HTTPClient:         cfg.HTTPClient,
		Logger:             cfg.Logger,
		UserAgent:          "chamicore-connect",
	})
	if err != nil {
		return nil, err
	}

	bulkMaxNodes := cfg.BulkMaxNodes
	if bulkMaxNodes <= 0 {
		bulkMaxNodes = defaultBulkMaxNodes
	}
	maxInFlight := cfg.MaxInFlight
	if maxInFlight <= 0 {
		maxInFlight = defaultMaxInFlight
	}

	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	return &Backend{
		http:         httpClient,
		bulkMaxNodes: bulkMaxNodes,
		maxInFlight:  maxInFlight,
		logger:       logger,
	}, nil
}

// expandSelector normalizes a host selector: every element may be a plain
// host or a hostlist expression; the result is ordered and deduplicated.
// An empty selector fails before any I/O.
func (b *Backend) expandSelector(op string, hosts []string) ([]string, error) {
	var expanded []string
	seen := make(map[string]struct{})
	for _, element := range hosts {
		element = strings.TrimSpace(element)
		if element == "" {
			continue
		}

		members := []string{element}
		if strings.ContainsAny(element, "[],") {
			var err error
			members, err = hostlist.Expand(element)
			if err != nil {
				var parseErr *hostlist.ParseError
				if errors.As(err, &parseErr) {
					return nil, &backend.Error{Kind: backend.KindParse, Op: op, Detail: parseErr.Error(), Err: err}
				}
				return nil, &backend.Error{Kind: backend.KindParse, Op: op, Detail: err.Error(), Err: err}
			}
		}
		for _, member := range members {
			if _, dup := seen[member]; dup {
				continue
			}
			seen[member] = struct{}{}
			expanded = append(expanded, member)
		}
	}

	if len(expanded) == 0 {
		return nil, &backend.Error{Kind: backend.KindInvalidArgument, Op: op, Detail: "host selector is empty"}
	}

	b.logger.Debug().Str("op", op).Int("hosts", len(expanded)).Msg("expanded host selector")
	return expanded, nil
}

// annotate stamps op and host onto a dispatch error so per-host failures in
// an aggregate stay diagnosable on their own.
func annotate(err error, op, host string) error {
	if err == nil {
		return nil
	}
	var dispatchErr *backend.Error
	if errors.As(err, &dispatchErr) {
		return dispatchErr.WithOp(op).WithHost(host)
	}
	return &backend.Error{Kind: backend.KindTransport, Op: op, Host: host, Detail: err.Error(), Err: err}
}

func chunk(hosts []string, size int) [][]string {
	if size <= 0 {
		size = 1
	}
	var batches [][]string
	for start := 0; start < len(hosts); start += size {
		end := start + size
		if end > len(hosts) {
			end = len(hosts)
		}
		batches = append(batches, hosts[start:end])
	}
	return batches
}
