// Command pfs-bench is a small load-generating client: it drives the
// full client API in a loop and prints execstat counters. It exercises
// the whole stack end to end but sits outside the coherence core.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pfs-io/pfs/cfg"
	"github.com/pfs-io/pfs/internal/agent"
	"github.com/pfs-io/pfs/internal/logger"
	"github.com/pfs-io/pfs/pkg/pfsclient"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	v := viper.New()
	var iterations int
	var fileName string

	root := &cobra.Command{
		Use:   "pfs-bench",
		Short: "drives the pfs client API in a loop and prints execstat counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(v, iterations, fileName)
		},
	}
	root.Flags().IntVar(&iterations, "iterations", 1000, "number of write+read cycles to run")
	root.Flags().StringVar(&fileName, "file", "bench-file", "file name to hammer")

	if err := cfg.BindFlags(root, v); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(v *viper.Viper, iterations int, fileName string) error {
	c, err := cfg.Unmarshal(v)
	if err != nil {
		return err
	}
	if err := cfg.Validate(c); err != nil {
		return err
	}

	if c.BootstrapFile != "" {
		bootstrap, err := cfg.ParseBootstrapFile(c.BootstrapFile)
		if err != nil {
			return err
		}
		c.Client.MetaserverAddr = bootstrap.MetaserverAddr
		c.Client.StorageAddrs = bootstrap.StorageAddrs
	}

	ctx := context.Background()
	client, err := pfsclient.Init(ctx, pfsclient.Config{
		MetaserverAddr:    c.Client.MetaserverAddr,
		MetaserverRPCAddr: c.Client.MetaserverRPCAddr,
		StorageAddrs:      c.Client.StorageAddrs,
		BlockSizeBytes:    c.BlockSizeBytes,
		CacheBlockCount:   c.Cache.BlockCount,
	})
	if err != nil {
		return err
	}
	defer client.Finish(ctx)

	if err := client.Create(fileName, len(c.Client.StorageAddrs)); err != nil {
		logger.Warnf("create %s: %v (continuing, file may already exist)", fileName, err)
	}

	fd, err := client.Open(fileName, agent.OpenModeRW)
	if err != nil {
		return err
	}

	payload := []byte("benchmark payload bytes")
	start := time.Now()
	for i := 0; i < iterations; i++ {
		offset := int64(i) * int64(len(payload))
		if err := client.Write(ctx, fd, offset, payload); err != nil {
			return err
		}
		// known_size only advances on Open/Fstat; refresh it here so the
		// read back of what was just written isn't clamped to the fd's
		// stale pre-write size.
		if _, _, err := client.Fstat(fd); err != nil {
			return err
		}
		if _, err := client.Read(ctx, fd, offset, len(payload)); err != nil {
			return err
		}
	}
	elapsed := time.Since(start)

	if err := client.Close(ctx, fd); err != nil {
		return err
	}

	stats := client.Execstat()
	fmt.Printf("completed %d write+read cycles in %s\n", iterations, elapsed)
	fmt.Printf("execstat: %+v\n", stats)
	return nil
}
