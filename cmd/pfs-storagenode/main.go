// Command pfs-storagenode runs one reference storage node: a bare
// ReadBlock/WriteBlock/DeleteFile server that the coherence protocol
// treats as an opaque external collaborator.
package main

import (
	"fmt"
	"os"

	"github.com/pfs-io/pfs/cfg"
	"github.com/pfs-io/pfs/internal/logger"
	"github.com/pfs-io/pfs/internal/storagenode"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	v := viper.New()
	root := &cobra.Command{
		Use:   "pfs-storagenode",
		Short: "runs a pfs reference storage node",
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

	if c.Logging.Path != "" {
		logger.SetOutputFile(c.Logging.Path, 100, 5, 30)
	}

	logger.Infof("storage node %d starting on %s", c.Storagenode.NodeIndex, c.Storagenode.ListenAddr)
	store := storagenode.NewStore()
	return storagenode.Serve(c.Storagenode.ListenAddr, store)
}
