package cmd

import (
	"fmt"
	"os"

	"github.com/lukman83/autopost/config"
	"github.com/lukman83/autopost/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "autopost",
	Short: "autopost - Coupang affiliate blog publisher",
	Long: "Discovers Coupang products for keywords or trends, composes affiliate banner posts " +
		"and publishes them to Blogger or Tistory. Also serves MCP and a REST API.",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// flagKeys maps persistent flags to the environment keys they override.
var flagKeys = map[string]string{
	"platform":       "PLATFORM",
	"account":        "ACCOUNT",
	"delay-profile":  "DELAY_PROFILE",
	"respect-robots": "RESPECT_ROBOTS",
	"proxy-file":     "PROXY_FILE",
	"log-level":      "LOG_LEVEL",
	"headless":       "BROWSER_HEADLESS",
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("platform", "", "Publishing platform: blogger, tistory (default $PLATFORM)")
	pf.String("account", "", "Account id used to key saved sessions (default $ACCOUNT)")
	pf.String("delay-profile", "", "Delay profile for scraped sources: cautious, normal, aggressive")
	pf.Bool("respect-robots", true, "Respect robots.txt rules for scraped sources")
	pf.String("proxy-file", "", "Path to proxy list file")
	pf.String("log-level", "", "Log level: debug, info, warn, error")
	pf.Bool("headless", false, "Run the browser headless")
	pf.String("config", "", "Path to the env config file (default $CONFIG_FILE or .env)")
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		os.Setenv("CONFIG_FILE", path)
	}

	overrides := map[string]any{}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if key, ok := flagKeys[f.Name]; ok {
			overrides[key] = f.Value.String()
		}
	})

	c, err := config.Load(overrides)
	if err != nil {
		return err
	}
	cfg = c
	logging.Setup(cfg.App.LogLevel, cfg.App.LogFormat)
	return nil
}
