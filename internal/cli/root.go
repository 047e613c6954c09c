// Package cli implements the chamicore-connect command tree. Commands talk
// to the cluster exclusively through backend.Dispatcher so that another
// backend can be swapped in behind the same commands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"git.cscs.ch/openchami/chamicore-connect/internal/auth"
	"git.cscs.ch/openchami/chamicore-connect/internal/config"
	"git.cscs.ch/openchami/chamicore-connect/pkg/backend"
	"git.cscs.ch/openchami/chamicore-connect/pkg/ochami"
	"git.cscs.ch/openchami/chamicore-connect/pkg/retry"
)

// app carries the resolved configuration and backend shared by all commands.
type app struct {
	cfg     config.Config
	logger  zerolog.Logger
	backend backend.Dispatcher
	retry   retry.Policy
}

// rootFlags are CLI overrides applied on top of the environment config.
type rootFlags struct {
	baseURL  string
	logLevel string
	timeout  time.Duration
	proxyURL string
	rootCA   string
	insecure bool
}

// NewRootCommand builds the chamicore-connect command tree.
func NewRootCommand(version string, logger zerolog.Logger) *cobra.Command {
	a := &app{logger: logger}
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "chamicore-connect",
		Short:         "Dispatch cluster-management operations to OCHAMI services",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initialize(cmd, flags)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.baseURL, "base-url", "", "OCHAMI API gateway URL (default $CHAMICORE_CONNECT_BASE_URL)")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: trace|debug|info|warn|error")
	pf.DurationVar(&flags.timeout, "timeout", 0, "per-request timeout")
	pf.StringVar(&flags.proxyURL, "proxy", "", "http, https or socks5 proxy URL")
	pf.StringVar(&flags.rootCA, "root-ca", "", "PEM bundle pinning the gateway certificate")
	pf.BoolVar(&flags.insecure, "insecure", false, "skip TLS certificate verification")

	root.AddCommand(
		newComponentsCommand(a),
		newGroupsCommand(a),
		newPowerCommand(a),
		newBootCommand(a),
		newInventoryCommand(a),
		newHostlistCommand(),
	)
	return root
}

func (a *app) initialize(cmd *cobra.Command, flags *rootFlags) error {
	// hostlist subcommands are offline and need no endpoint
	if cmd.Parent() != nil && cmd.Parent().Name() == "hostlist" {
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if flags.baseURL != "" {
		cfg.BaseURL = flags.baseURL
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	if flags.timeout > 0 {
		cfg.Timeout = flags.timeout
	}
	if flags.proxyURL != "" {
		cfg.ProxyURL = flags.proxyURL
	}
	if flags.rootCA != "" {
		cfg.RootCAPath = flags.rootCA
	}
	if flags.insecure {
		cfg.Insecure = true
	}

	if level, parseErr := zerolog.ParseLevel(cfg.LogLevel); parseErr == nil {
		a.logger = a.logger.Level(level)
	}

	if cfg.BaseURL == "" {
		return fmt.Errorf("no API endpoint: set CHAMICORE_CONNECT_BASE_URL or pass --base-url")
	}

	resolved, err := auth.ResolveToken(auth.TokenSourceOptions{
		AllowCLIConfigToken: cfg.AllowCLIConfigToken,
		CLIConfigPath:       cfg.CLIConfigPath,
	})
	if err != nil {
		return err
	}
	if resolved.Token == "" {
		a.logger.Warn().Msg("no access token resolved; requests go out unauthenticated")
	} else {
		a.logger.Debug().Str("token_source", string(resolved.Source)).Msg("resolved access token")
		if remaining, expErr := auth.CheckExpiry(resolved.Token, time.Now()); expErr != nil {
			a.logger.Warn().Err(expErr).Msg("access token looks expired")
		} else if remaining > 0 {
			a.logger.Debug().Dur("remaining", remaining).Msg("access token validity")
		}
	}

	backendCfg, err := cfg.BackendConfig(resolved.Token)
	if err != nil {
		return err
	}
	backendCfg.Logger = &a.logger

	dispatcher, err := ochami.New(backendCfg)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.backend = dispatcher
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printHostResults renders a per-host outcome table as JSON and returns an
// error when any host failed, so the process exit code reflects partial
// failure.
func printHostResults[T any](w io.Writer, results backend.HostResults[T]) error {
	type row struct {
		Host  string `json:"host"`
		OK    bool   `json:"ok"`
		Value any    `json:"value,omitempty"`
		Error string `json:"error,omitempty"`
	}

	rows := make([]row, 0, len(results))
	failed := 0
	for _, r := range results {
		entry := row{Host: r.Host, OK: r.OK()}
		if r.Err != nil {
			entry.Error = r.Err.Error()
			failed++
		} else {
			entry.Value = r.Value
		}
		rows = append(rows, entry)
	}

	if err := printJSON(w, rows); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d hosts failed", failed, len(results))
	}
	return nil
}
