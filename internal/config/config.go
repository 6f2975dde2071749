package config

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. POOL_PG_DSN.
const EnvPrefix = "POOL"

// DefaultLedgerFile is used when neither pg-dsn nor ledger-file is set.
const DefaultLedgerFile = "./data/ledger.json"

// Config holds the pool identity and the ledger it settles against.
// Every command embeds it.
type Config struct {
	BaseToken  string
	QuoteToken string
	MinLocked  uint64
	PGDSN      string
	LedgerFile string
	Journal    string
	LogLevel   string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v, err := newViper(cfgFile, flags, nil)
	if err != nil {
		return Config{}, err
	}
	return poolConfig(v), nil
}

// Validate checks the token pair and that exactly one ledger backend is set.
func (c Config) Validate() error {
	if !common.IsHexAddress(c.BaseToken) {
		return fmt.Errorf("invalid base token: %q", c.BaseToken)
	}
	if !common.IsHexAddress(c.QuoteToken) {
		return fmt.Errorf("invalid quote token: %q", c.QuoteToken)
	}
	if c.PGDSN != "" && c.LedgerFile != "" {
		return fmt.Errorf("pg-dsn and ledger-file are mutually exclusive")
	}
	return nil
}

func poolConfig(v *viper.Viper) Config {
	return Config{
		BaseToken:  v.GetString("base-token"),
		QuoteToken: v.GetString("quote-token"),
		MinLocked:  v.GetUint64("min-locked"),
		PGDSN:      v.GetString("pg-dsn"),
		LedgerFile: v.GetString("ledger-file"),
		Journal:    v.GetString("journal"),
		LogLevel:   v.GetString("log-level"),
	}
}

func newViper(cfgFile string, flags *pflag.FlagSet, defaults map[string]interface{}) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("min-locked", uint64(1000))
	v.SetDefault("journal", "./data/journal.jsonl")
	v.SetDefault("log-level", "info")
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	// the file ledger is the fallback backend, never a default next to a DSN
	if v.GetString("pg-dsn") == "" && v.GetString("ledger-file") == "" {
		v.Set("ledger-file", DefaultLedgerFile)
	}

	return v, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
