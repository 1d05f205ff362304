package cfg

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/creativeprojects/mailstate/folder"
	"github.com/creativeprojects/mailstate/mailbox"
	"gopkg.in/yaml.v3"
)

type AccountType string

const (
	Memory AccountType = "mem"
	Local  AccountType = "local"
	Remote AccountType = "remote"
)

type Config struct {
	Accounts  map[string]Account  `yaml:"accounts"`
	Reserved  map[string][]string `yaml:"reserved"`
	Templates Templates           `yaml:"templates"`
	Server    Server              `yaml:"server"`
}

type Account struct {
	Type AccountType `yaml:"type"`
	// File is the bbolt database of a local account
	File      string        `yaml:"file"`
	ServerURL string        `yaml:"serverURL"`
	Username  string        `yaml:"username"`
	Secret    string        `yaml:"secret"`
	Timeout   time.Duration `yaml:"timeout"`
	// RateLimit is the maximum number of requests per second, 0 meaning no limit
	RateLimit float64 `yaml:"rateLimit"`
	Burst     int     `yaml:"burst"`
	// DateFormat is the Go layout of the message dates
	DateFormat string `yaml:"dateFormat"`
}

type Templates struct {
	Dir       string `yaml:"dir"`
	Extension string `yaml:"extension"`
}

type Server struct {
	Listen  string `yaml:"listen"`
	Secret  string `yaml:"secret"`
	Account string `yaml:"account"`
}

func newConfig() *Config {
	return &Config{
		Accounts: make(map[string]Account),
		Templates: Templates{
			Dir:       "templates",
			Extension: ".html",
		},
		Server: Server{
			Listen: "localhost:8025",
		},
	}
}

// Default is the configuration used when there's no configuration file
func Default() *Config {
	return newConfig()
}

// LoadFromFile loads the configuration from the file
func LoadFromFile(fileName string) (*Config, error) {
	file, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	return Load(file)
}

// Load reads the configuration and closes the reader
func Load(reader io.ReadCloser) (*Config, error) {
	defer reader.Close()
	decoder := yaml.NewDecoder(reader)
	decoder.KnownFields(true)
	config := newConfig()
	err := decoder.Decode(config)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	err = validateConfiguration(config)
	if err != nil {
		return nil, err
	}
	return config, nil
}

// Account returns the named account
func (c *Config) Account(name string) (Account, error) {
	account, ok := c.Accounts[name]
	if !ok {
		return Account{}, fmt.Errorf("account not found: %s", name)
	}
	return account, nil
}

// AccountNames returns the names of the accounts, sorted
func (c *Config) AccountNames() []string {
	names := make([]string, 0, len(c.Accounts))
	for name := range c.Accounts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ReservedNames returns the default reserved names, replaced by the configured ones per context
func (c *Config) ReservedNames() folder.Reserved {
	reserved := folder.DefaultReserved()
	for name, names := range c.Reserved {
		reserved[mailbox.Context(name)] = names
	}
	return reserved
}

func validateConfiguration(config *Config) error {
	for name := range config.Reserved {
		if _, err := mailbox.ParseContext(name); err != nil {
			return fmt.Errorf("reserved names: %w", err)
		}
	}
	for name, account := range config.Accounts {
		switch account.Type {
		case Memory:
		case Local:
			if account.File == "" {
				return fmt.Errorf("account %q: missing database file", name)
			}
		case Remote:
			if account.ServerURL == "" {
				return fmt.Errorf("account %q: missing server URL", name)
			}
		default:
			return fmt.Errorf("account %q: unknown type %q", name, account.Type)
		}
		if account.Timeout < 0 || account.RateLimit < 0 || account.Burst < 0 {
			return fmt.Errorf("account %q: negative timeout or rate limit", name)
		}
	}
	if config.Server.Account != "" {
		account, ok := config.Accounts[config.Server.Account]
		if !ok {
			return fmt.Errorf("server: account not found: %s", config.Server.Account)
		}
		if account.Type == Remote {
			return fmt.Errorf("server: account %q cannot be a remote account", config.Server.Account)
		}
	}
	return nil
}
