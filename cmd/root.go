package cmd

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/AzielCF/az-tgclean/core/config"
)

var cfg *config.Config

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tgclean",
	Short: "Browse Telegram chats and bulk-delete your own messages",
	Long: `tgclean lists your Telegram chats with avatars and message counts,
and deletes the messages you sent in the chats and time window you pick.`,
	SilenceUsage: true,
}

func init() {
	// A missing .env is fine; real environment variables always win.
	_ = godotenv.Load()

	time.Local = time.UTC
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	initFlags()
	cobra.OnInitialize(initEnvConfig)
}

func initFlags() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("port", "p", "", "change port number with --port <number> | example: --port=8080")
	flags.BoolP("debug", "d", false, "displaying debug logs with --debug <true/false> | example: --debug=true")
	flags.StringSliceP("basic-auth", "b", nil, "basic auth credential | -b=yourUsername:yourPassword")
	flags.String("base-path", "", `base path for subpath deployment --base-path <string> | example: --base-path="/tgclean"`)
	flags.String("storage", "", "key-value backend: memory, valkey, gorm or sql | example: --storage=valkey")
	flags.String("db-driver", "", "database driver for the gorm and sql backends: sqlite or postgres")
	flags.String("db-name", "", "sqlite file or postgres database name")
	flags.String("valkey-address", "", "valkey address for the valkey backend | example: --valkey-address=localhost:6379")
	flags.String("gateway", "", "telegram gateway: http or mtproto")
	flags.String("api-base-url", "", "base URL of the HTTP gateway functions")
	flags.Int("hydration-batch-size", 0, "chats enriched per hydration batch (default 15)")

	for _, name := range []string{
		"port", "debug", "basic-auth", "base-path", "storage", "db-driver", "db-name",
		"valkey-address", "gateway", "api-base-url", "hydration-batch-size",
	} {
		_ = viper.BindPFlag(strings.ReplaceAll(name, "-", "_"), flags.Lookup(name))
	}
}

// initEnvConfig loads the environment config and applies explicit flags on top.
func initEnvConfig() {
	var err error
	cfg, err = config.LoadConfig()
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	applyOverrides(cfg, viper.GetViper())

	if cfg.App.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logrus.Debugf("[CONFIG] %v", config.GetAllSettings())
}

func applyOverrides(c *config.Config, v *viper.Viper) {
	if v.IsSet("port") && v.GetString("port") != "" {
		c.App.Port = v.GetString("port")
	}
	if v.GetBool("debug") {
		c.App.Debug = true
	}
	if auth := v.GetStringSlice("basic_auth"); len(auth) > 0 {
		c.App.BasicAuth = auth
	}
	if s := v.GetString("base_path"); s != "" {
		c.App.BasePath = s
	}
	if s := v.GetString("storage"); s != "" {
		c.Database.Backend = s
	}
	if s := v.GetString("db_driver"); s != "" {
		c.Database.Driver = s
	}
	if s := v.GetString("db_name"); s != "" {
		c.Database.Name = s
	}
	if s := v.GetString("valkey_address"); s != "" {
		c.Database.ValkeyAddress = s
	}
	if s := v.GetString("gateway"); s != "" {
		c.Telegram.Gateway = s
	}
	if s := v.GetString("api_base_url"); s != "" {
		c.Telegram.APIBaseURL = s
	}
	if n := v.GetInt("hydration_batch_size"); n > 0 {
		c.Hydration.BatchSize = n
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
