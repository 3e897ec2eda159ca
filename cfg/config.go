// Package cfg is the single configuration surface for every pfs
// binary, bound with spf13/viper and spf13/pflag: cobra flags on top
// of layered defaults, unmarshaled into a typed struct.
package cfg

// Config is the fully resolved configuration for any pfs process. Not
// every field is relevant to every binary; a given cmd/ entrypoint only
// reads the fields it needs.
type Config struct {
	Metaserver struct {
		ListenAddr    string `mapstructure:"listen-addr"`
		RPCListenAddr string `mapstructure:"rpc-listen-addr"`
	} `mapstructure:"metaserver"`

	Storagenode struct {
		ListenAddr string `mapstructure:"listen-addr"`
		NodeIndex  int    `mapstructure:"node-index"`
	} `mapstructure:"storagenode"`

	Client struct {
		MetaserverAddr    string   `mapstructure:"metaserver-addr"`
		MetaserverRPCAddr string   `mapstructure:"metaserver-rpc-addr"`
		StorageAddrs      []string `mapstructure:"storage-addrs"`
	} `mapstructure:"client"`

	BootstrapFile string `mapstructure:"bootstrap-file"`

	BlockSizeBytes     int64 `mapstructure:"block-size-bytes"`
	StripeWidthDefault int   `mapstructure:"stripe-width-default"`

	Cache struct {
		BlockCount int `mapstructure:"block-count"`
	} `mapstructure:"cache"`

	Logging struct {
		Path   string `mapstructure:"path"`
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"logging"`

	Debug struct {
		ExitOnInvariantViolation bool `mapstructure:"exit-on-invariant-violation"`
	} `mapstructure:"debug"`
}
