package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefaultCookieName matches the server's session cookie
const DefaultCookieName = "ultratic_session"

// Config holds CLI configuration
type Config struct {
	ServerURL  string
	CookieFile string
	CookieName string
	Output     string
	Verbose    bool
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		ServerURL:  "http://localhost:8080",
		CookieFile: defaultCookieFile(),
		CookieName: DefaultCookieName,
		Output:     "text",
	}
}

func (c *Config) validate() error {
	switch c.Output {
	case "text", "json":
	default:
		return fmt.Errorf("invalid output format %q: must be text or json", c.Output)
	}
	if c.ServerURL == "" {
		return errors.New("--server must not be empty")
	}
	return nil
}

// LoadCookie returns the saved session cookie value, or "" if there is none
func (c *Config) LoadCookie() (string, error) {
	data, err := os.ReadFile(c.CookieFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// SaveCookie persists the session cookie value
func (c *Config) SaveCookie(value string) error {
	dir := filepath.Dir(c.CookieFile)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	return os.WriteFile(c.CookieFile, []byte(value), 0600)
}

// ClearCookie removes the saved session cookie
func (c *Config) ClearCookie() error {
	if err := os.Remove(c.CookieFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// bindEnv lets TICTL_* variables fill any flag not given on the command line
func bindEnv(fs *pflag.FlagSet) {
	v := viper.New()
	v.SetEnvPrefix("TICTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}

func normalizeFlags(fs *pflag.FlagSet) {
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
}

// persistentFlags registers the global flags on cmd
func persistentFlags(cmd *cobra.Command, c *Config) {
	fs := cmd.PersistentFlags()
	normalizeFlags(fs)

	fs.StringVar(&c.ServerURL, "server", c.ServerURL, "Server URL (env: TICTL_SERVER)")
	fs.StringVar(&c.CookieFile, "cookie-file", c.CookieFile, "Session cookie file (env: TICTL_COOKIE_FILE)")
	fs.StringVar(&c.CookieName, "cookie-name", c.CookieName, "Session cookie name (env: TICTL_COOKIE_NAME)")
	fs.StringVarP(&c.Output, "output", "o", c.Output, "Output format: text, json (env: TICTL_OUTPUT)")
	fs.BoolVarP(&c.Verbose, "verbose", "v", c.Verbose, "Verbose output (env: TICTL_VERBOSE)")
}

func defaultCookieFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".ultratic", "session")
	}
	return filepath.Join(home, ".ultratic", "session")
}
