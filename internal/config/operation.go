package config

import (
	"github.com/spf13/pflag"
)

// OperationConfig holds configuration for the single-operation commands
// (seed, add, remove, swap, quote).
type OperationConfig struct {
	Config
	Caller   string
	Amount   string
	Limit    string
	From     string
	SlackBps uint64
	InMin    string
	InMax    string
	OutMin   string
	OutMax   string
	RPCURL   string
	Mirror   string
	Block    uint64
}

// LoadOperation merges config file, environment variables, and flags into OperationConfig.
func LoadOperation(cfgFile string, flags *pflag.FlagSet) (OperationConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"from":      "base",
		"slack-bps": uint64(50),
	})
	if err != nil {
		return OperationConfig{}, err
	}

	return OperationConfig{
		Config:   poolConfig(v),
		Caller:   v.GetString("caller"),
		Amount:   v.GetString("amount"),
		Limit:    v.GetString("limit"),
		From:     v.GetString("from"),
		SlackBps: v.GetUint64("slack-bps"),
		InMin:    v.GetString("in-min"),
		InMax:    v.GetString("in-max"),
		OutMin:   v.GetString("out-min"),
		OutMax:   v.GetString("out-max"),
		RPCURL:   v.GetString("rpc"),
		Mirror:   v.GetString("mirror"),
		Block:    v.GetUint64("block"),
	}, nil
}

// FundConfig holds configuration for the fund command.
type FundConfig struct {
	Config
	Accounts []string
	Token    string
	Amount   string
}

// LoadFund merges config file, environment variables, and flags into FundConfig.
func LoadFund(cfgFile string, flags *pflag.FlagSet) (FundConfig, error) {
	v, err := newViper(cfgFile, flags, nil)
	if err != nil {
		return FundConfig{}, err
	}

	return FundConfig{
		Config:   poolConfig(v),
		Accounts: getStringSlice(v, "account"),
		Token:    v.GetString("token"),
		Amount:   v.GetString("amount"),
	}, nil
}
