package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/TEENet-io/bridge-verifier/cmd"
	"github.com/TEENet-io/bridge-verifier/config"
	"github.com/TEENet-io/bridge-verifier/keystore"
	"github.com/TEENet-io/bridge-verifier/logconfig"
	"github.com/TEENet-io/bridge-verifier/rpcserver"
)

const (
	ENV_CONFIG_FILE_PATH = "BRIDGE_CONFIG"
)

// set by -ldflags "-X main.Version=..."
var Version = "dev"

var (
	configFile string
	serverUrl  string
	outFile    string
	password   string
)

var rootCmd = &cobra.Command{
	Use:   "sigserver",
	Short: "Verifier and co-signer of force bridge transactions",
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the signature server",
	RunE: func(c *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := logconfig.ConfigProductionLogger(cfg.Common.Log.File, cfg.Common.Log.Level); err != nil {
			return fmt.Errorf("configure logger: %w", err)
		}
		fmt.Println("Starting signature server... press Ctrl+C to stop the server")
		return cmd.StartSigServerAndWait(cfg)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query the status of a running signature server",
	RunE: func(c *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		resp, err := rpcserver.NewClient(serverUrl).ServerStatus(ctx)
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

var keystoreCmd = &cobra.Command{
	Use:   "keystore",
	Short: "Seal the multisign keys of the config into an encrypted keystore file",
	RunE: func(c *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		entries := append(cfg.Ckb.MultiSignKeys, cfg.Eth.MultiSignKeys...)
		if len(entries) == 0 {
			return fmt.Errorf("no multiSignKeys in %s", configFile)
		}
		data, err := keystore.Encrypt(entries, password, 0)
		if err != nil {
			return err
		}
		if err := os.WriteFile(outFile, data, 0o600); err != nil {
			return err
		}
		fmt.Printf("%d key(s) written to %s\n", len(entries), outFile)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(c *cobra.Command, args []string) {
		fmt.Println(Version)
	},
}

func loadConfig() (*config.Config, error) {
	if configFile == "" {
		configFile = viper.GetString(ENV_CONFIG_FILE_PATH)
	}
	if configFile == "" {
		return nil, fmt.Errorf("no config file, use --config or %s", ENV_CONFIG_FILE_PATH)
	}
	fmt.Printf("Signature server configuration file = %s\n", configFile)
	return config.Load(configFile)
}

func init() {
	// Tool to read environment variables
	viper.AutomaticEnv()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default $"+ENV_CONFIG_FILE_PATH+")")
	statusCmd.Flags().StringVar(&serverUrl, "url", "http://127.0.0.1:8090", "url of the signature server")
	keystoreCmd.Flags().StringVar(&outFile, "out", "keystore.json", "keystore file to write")
	keystoreCmd.Flags().StringVar(&password, "password", "", "keystore password")
	_ = keystoreCmd.MarkFlagRequired("password")

	rootCmd.AddCommand(startCmd, statusCmd, keystoreCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
