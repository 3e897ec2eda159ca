// Command pfs-metaserver runs the metadata service: the file catalog
// and the byte-range token engine.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jacobsa/syncutil"
	"github.com/pfs-io/pfs/cfg"
	"github.com/pfs-io/pfs/internal/clock"
	"github.com/pfs-io/pfs/internal/logger"
	"github.com/pfs-io/pfs/internal/metadata"
	"github.com/pfs-io/pfs/internal/metaserver"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	v := viper.New()
	root := &cobra.Command{
		Use:   "pfs-metaserver",
		Short: "runs the pfs metadata service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(v)
		},
	}

	if err := cfg.BindFlags(root, v); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(v *viper.Viper) error {
	c, err := cfg.Unmarshal(v)
	if err != nil {
		return err
	}
	if err := cfg.Validate(c); err != nil {
		return err
	}

	configureLogging(c)

	if c.Debug.ExitOnInvariantViolation {
		syncutil.EnableInvariantChecking()
	}

	catalog := metadata.NewCatalog(clock.RealClock{}, c.StripeWidthDefault)
	server := metaserver.NewServer(catalog)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	errc := make(chan error, 2)
	go func() { errc <- server.ServeStreams(ctx, c.Metaserver.ListenAddr) }()
	go func() { errc <- metaserver.ServeRPC(c.Metaserver.RPCListenAddr, server) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		logger.Infof("metadata service shutting down")
		return nil
	}
}

func configureLogging(c *cfg.Config) {
	if c.Logging.Path != "" {
		logger.SetOutputFile(c.Logging.Path, 100, 5, 30)
	}
	switch c.Logging.Format {
	case "json":
		logger.SetLogFormat(logger.FormatJSON)
	default:
		logger.SetLogFormat(logger.FormatText)
	}
	switch c.Logging.Level {
	case "debug":
		logger.SetLogLevel(logger.LevelDebug)
	case "warn":
		logger.SetLogLevel(logger.LevelWarn)
	case "error":
		logger.SetLogLevel(logger.LevelError)
	default:
		logger.SetLogLevel(logger.LevelInfo)
	}
}
