package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/longkey1/chatassist/internal/chatassist/config"
	"github.com/spf13/cobra"
)

var forceInit bool

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the configuration file",
	Long: `Initialize the configuration file with default settings.
The config file will be created at $HOME/.config/chatassist/config.toml by default.
You can specify a different location using the --config option.

The defaults call Gemini directly with the key in $GEMINI_API_KEY. Set
use_backend = true to route through a proxy started with 'chatassist serve'.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		configFile, err := initConfigPath()
		if err != nil {
			return err
		}

		if err := os.MkdirAll(filepath.Dir(configFile), 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %v", err)
		}
		if _, err := os.Stat(configFile); err == nil && !forceInit {
			return fmt.Errorf("config file already exists at: %s (use --force to overwrite)", configFile)
		}

		f, err := os.OpenFile(configFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create config file: %v", err)
		}
		defer f.Close()

		if err := toml.NewEncoder(f).Encode(config.NewDefaultConfig()); err != nil {
			return fmt.Errorf("failed to encode config: %v", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Configuration file created at: %s\n", configFile)
		fmt.Fprintln(out, "Next steps:")
		fmt.Fprintln(out, "  export GEMINI_API_KEY=...   # direct mode")
		fmt.Fprintln(out, "  chatassist start")
		return nil
	},
}

// initConfigPath returns --config or the default user config location
func initConfigPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %v", err)
	}
	return filepath.Join(home, ".config", "chatassist", "config.toml"), nil
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite an existing config file")
}
