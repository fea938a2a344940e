package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type config struct {
	serverURL  string
	socketURL  string
	stateDir   string
	playerName string
	spectator  bool
	verbose    bool
	configFile string
}

// fileConfig mirrors the optional yaml config file.
type fileConfig struct {
	ServerURL  string `yaml:"server_url"`
	SocketURL  string `yaml:"socket_url"`
	StateDir   string `yaml:"state_dir"`
	PlayerName string `yaml:"player_name"`
}

func (c *config) validate() error {
	if c.serverURL == "" {
		return errors.New("--server is required")
	}
	u, err := url.Parse(c.serverURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid server url: %s", c.serverURL)
	}
	return nil
}

// apiBase is the REST root derived from the server url.
func (c *config) apiBase() string {
	return strings.TrimRight(c.serverURL, "/") + "/api"
}

// wsEndpoint is the realtime endpoint, derived from the server url unless
// overridden.
func (c *config) wsEndpoint() string {
	if c.socketURL != "" {
		return c.socketURL
	}
	ws := strings.Replace(c.serverURL, "https://", "wss://", 1)
	ws = strings.Replace(ws, "http://", "ws://", 1)
	return strings.TrimRight(ws, "/") + "/ws"
}

func (c *config) statePath() string {
	return filepath.Join(c.stateDir, "state.json")
}

// loadFile overlays values from the yaml config file onto unset flags.
func (c *config) loadFile() error {
	if c.configFile == "" {
		return nil
	}
	data, err := os.ReadFile(c.configFile)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	if c.serverURL == "" {
		c.serverURL = fc.ServerURL
	}
	if c.socketURL == "" {
		c.socketURL = fc.SocketURL
	}
	if fc.StateDir != "" {
		c.stateDir = fc.StateDir
	}
	if c.playerName == "" {
		c.playerName = fc.PlayerName
	}
	return nil
}

func defaultStateDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "quizrally")
	}
	return ".quizrally"
}

func newRootCmd(cfg *config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("QUIZRALLY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "quizrally",
		Short:         "Terminal client for quizrally trivia rooms.",
		SilenceErrors: true,
		Version:       releaseVersion,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			bindEnv(cmd.Flags(), v)
			if err := cfg.loadFile(); err != nil {
				return err
			}
			if cfg.verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			} else {
				zerolog.SetGlobalLevel(zerolog.InfoLevel)
			}
			return cfg.validate()
		},
	}

	fs := cmd.PersistentFlags()
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
	fs.StringVarP(&cfg.serverURL, "server", "s", "http://localhost:8080", "backend base url (env: QUIZRALLY_SERVER)")
	fs.StringVar(&cfg.socketURL, "socket", "", "realtime endpoint override (env: QUIZRALLY_SOCKET)")
	fs.StringVar(&cfg.stateDir, "state-dir", defaultStateDir(), "directory for persisted client state (env: QUIZRALLY_STATE_DIR)")
	fs.StringVarP(&cfg.playerName, "name", "n", "", "display name for guest login (env: QUIZRALLY_NAME)")
	fs.BoolVar(&cfg.spectator, "spectator", false, "join as a spectator (env: QUIZRALLY_SPECTATOR)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display debug output (env: QUIZRALLY_VERBOSE)")
	fs.StringVarP(&cfg.configFile, "config", "c", "", "path to yaml config file")

	cmd.AddCommand(newWatchCmd(cfg))
	cmd.AddCommand(newRoomsCmd(cfg))
	cmd.AddCommand(newQRCmd(cfg))

	return cmd
}

// bindEnv fills unset flags from matching QUIZRALLY_* variables.
func bindEnv(fs *pflag.FlagSet, v *viper.Viper) {
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			return
		}
		if v.IsSet(f.Name) {
			_ = fs.Set(f.Name, v.GetString(f.Name))
		}
	})
}
