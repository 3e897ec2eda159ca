package cfg

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// BindFlags registers every Config field as a persistent flag on cmd
// and binds it into v, so a flag set on the command line overrides the
// default; environment variables are not bound. viper.Unmarshal is the
// final step the caller performs after cobra parses args.
func BindFlags(cmd *cobra.Command, v *viper.Viper) error {
	SetDefaults(v)

	flags := cmd.PersistentFlags()
	flags.String("metaserver.listen-addr", v.GetString("metaserver.listen-addr"), "address the metadata service listens on for the token stream")
	flags.String("metaserver.rpc-listen-addr", v.GetString("metaserver.rpc-listen-addr"), "address the metadata service listens on for unary catalog RPCs")
	flags.String("storagenode.listen-addr", v.GetString("storagenode.listen-addr"), "address a storage node listens on")
	flags.Int("storagenode.node-index", v.GetInt("storagenode.node-index"), "this storage node's fixed index in the stripe")

	flags.String("client.metaserver-addr", v.GetString("client.metaserver-addr"), "metadata service token stream address to connect to")
	flags.String("client.metaserver-rpc-addr", v.GetString("client.metaserver-rpc-addr"), "metadata service unary RPC address to connect to")
	flags.StringSlice("client.storage-addrs", v.GetStringSlice("client.storage-addrs"), "storage node addresses, in stripe order")

	flags.String("bootstrap-file", v.GetString("bootstrap-file"), "path to a bootstrap file listing the metadata service and storage node addresses")

	flags.Int64("block-size-bytes", v.GetInt64("block-size-bytes"), "block size BS used for cache admission and storage striping")
	flags.Int("stripe-width-default", v.GetInt("stripe-width-default"), "default stripe width for newly created files")
	flags.Int("cache.block-count", v.GetInt("cache.block-count"), "client block cache capacity K, in blocks")

	flags.String("logging.path", v.GetString("logging.path"), "log file path; empty logs to stderr")
	flags.String("logging.level", v.GetString("logging.level"), "debug|info|warn|error")
	flags.String("logging.format", v.GetString("logging.format"), "text|json")

	flags.Bool("debug.exit-on-invariant-violation", v.GetBool("debug.exit-on-invariant-violation"), "panic the process when a token-table invariant check fails")

	if err := v.BindPFlags(flags); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}
	return nil
}

// Unmarshal decodes v's current state into a Config.
func Unmarshal(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &c, nil
}
