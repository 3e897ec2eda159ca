package cfg

import "github.com/spf13/viper"

// SetDefaults installs every flag's default value on v before flags are
// layered on top.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("metaserver.listen-addr", "127.0.0.1:7090")
	v.SetDefault("metaserver.rpc-listen-addr", "127.0.0.1:7091")
	v.SetDefault("storagenode.listen-addr", "127.0.0.1:7100")
	v.SetDefault("storagenode.node-index", 0)

	v.SetDefault("client.metaserver-addr", "127.0.0.1:7090")
	v.SetDefault("client.metaserver-rpc-addr", "127.0.0.1:7091")
	v.SetDefault("client.storage-addrs", []string{})

	v.SetDefault("bootstrap-file", "")

	v.SetDefault("block-size-bytes", int64(4096))
	v.SetDefault("stripe-width-default", 1)
	v.SetDefault("cache.block-count", 256)

	v.SetDefault("logging.path", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("debug.exit-on-invariant-violation", true)
}
