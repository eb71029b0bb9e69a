// Package config reads the worker configuration from the environment.
// Unknown variables are ignored; invalid values for known variables are
// configuration errors and abort startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/go-multierror"
)

// Environment variables recognized by the worker.
const (
	EnvContractAddress  = "CONTRACT_ADDRESS"
	EnvHostSocketPath   = "HOST_SOCKET_PATH"
	EnvPollInterval     = "POLL_INTERVAL_SECONDS"
	EnvMaxParallel      = "MAX_PARALLEL"
	EnvRetryMax         = "RETRY_MAX"
	EnvRetryBackoffBase = "RETRY_BACKOFF_BASE_MS"
	EnvRequestDeadline  = "REQUEST_DEADLINE_SECONDS"
	EnvHostCallMethod   = "HOST_CALL_METHOD"
	EnvHostSubmitMethod = "HOST_SUBMIT_METHOD"
	EnvHostGasLimit     = "HOST_GAS_LIMIT"
	EnvHostStripHex     = "HOST_STRIP_HEX_PREFIX"
	EnvAPIListenAddr    = "API_LISTEN_ADDR"
	EnvEnableTips       = "ENABLE_TIPS"
	EnvEnableAnalyze    = "ENABLE_MANUAL_ANALYZE"
	EnvLogLevel         = "LOG_LEVEL"
)

const DefaultHostSocketPath = "/run/rofl-appd.sock"

// Config is the full worker configuration.
type Config struct {
	ContractAddress common.Address
	HostSocketPath  string

	PollInterval     time.Duration
	MaxParallel      int
	RetryMax         int
	RetryBackoffBase time.Duration
	RequestDeadline  time.Duration
	CallTimeout      time.Duration
	ShutdownGrace    time.Duration

	// The host's method naming is not publicly fixed; both operations are
	// configurable so equivalent hosts can be targeted without a rebuild.
	HostCallMethod     string
	HostSubmitMethod   string
	HostGasLimit       uint64
	HostStripHexPrefix bool

	APIListenAddr       string
	EnableTips          bool
	EnableManualAnalyze bool
	LogLevel            string
}

func DefaultConfig() Config {
	return Config{
		HostSocketPath:   DefaultHostSocketPath,
		PollInterval:     30 * time.Second,
		MaxParallel:      2,
		RetryMax:         3,
		RetryBackoffBase: time.Second,
		RequestDeadline:  2 * time.Minute,
		CallTimeout:      30 * time.Second,
		ShutdownGrace:    time.Minute,
		HostCallMethod:   "eth_call",
		HostSubmitMethod: "tx.sign-submit",
		HostGasLimit:     1_000_000,
		APIListenAddr:    "127.0.0.1:8080",
		LogLevel:         "info",
	}
}

// FromEnv builds the configuration from defaults overridden by the
// environment. All invalid values are reported together.
func FromEnv() (Config, error) {
	cfg := DefaultConfig()
	var errs *multierror.Error

	if addr, ok := os.LookupEnv(EnvContractAddress); ok {
		if !common.IsHexAddress(addr) {
			errs = multierror.Append(errs, fmt.Errorf("%s: %q is not a hex address", EnvContractAddress, addr))
		} else {
			cfg.ContractAddress = common.HexToAddress(addr)
		}
	}
	if path, ok := os.LookupEnv(EnvHostSocketPath); ok {
		cfg.HostSocketPath = path
	}

	errs = multierror.Append(errs,
		envSeconds(EnvPollInterval, &cfg.PollInterval),
		envInt(EnvMaxParallel, &cfg.MaxParallel),
		envInt(EnvRetryMax, &cfg.RetryMax),
		envMillis(EnvRetryBackoffBase, &cfg.RetryBackoffBase),
		envSeconds(EnvRequestDeadline, &cfg.RequestDeadline),
		envUint64(EnvHostGasLimit, &cfg.HostGasLimit),
		envBool(EnvHostStripHex, &cfg.HostStripHexPrefix),
		envBool(EnvEnableTips, &cfg.EnableTips),
		envBool(EnvEnableAnalyze, &cfg.EnableManualAnalyze),
	)

	if method, ok := os.LookupEnv(EnvHostCallMethod); ok {
		cfg.HostCallMethod = method
	}
	if method, ok := os.LookupEnv(EnvHostSubmitMethod); ok {
		cfg.HostSubmitMethod = method
	}
	if addr, ok := os.LookupEnv(EnvAPIListenAddr); ok {
		cfg.APIListenAddr = addr
	}
	if level, ok := os.LookupEnv(EnvLogLevel); ok {
		cfg.LogLevel = level
	}

	if err := errs.ErrorOrNil(); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Validate checks the invariants every constructed configuration must hold.
func (c Config) Validate() error {
	var errs *multierror.Error
	if c.ContractAddress == (common.Address{}) {
		errs = multierror.Append(errs, fmt.Errorf("%s is required", EnvContractAddress))
	}
	if c.HostSocketPath == "" {
		errs = multierror.Append(errs, fmt.Errorf("%s must not be empty", EnvHostSocketPath))
	}
	if c.PollInterval <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("%s must be positive", EnvPollInterval))
	}
	if c.MaxParallel < 1 {
		errs = multierror.Append(errs, fmt.Errorf("%s must be at least 1", EnvMaxParallel))
	}
	if c.RetryMax < 0 {
		errs = multierror.Append(errs, fmt.Errorf("%s must not be negative", EnvRetryMax))
	}
	if c.RetryBackoffBase <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("%s must be positive", EnvRetryBackoffBase))
	}
	if c.RequestDeadline <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("%s must be positive", EnvRequestDeadline))
	}
	return errs.ErrorOrNil()
}

func envSeconds(name string, out *time.Duration) error {
	raw, ok := os.LookupEnv(name)
	if !ok {
		return nil
	}
	seconds, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return fmt.Errorf("%s: %q is not a number of seconds", name, raw)
	}
	*out = time.Duration(seconds) * time.Second
	return nil
}

func envMillis(name string, out *time.Duration) error {
	raw, ok := os.LookupEnv(name)
	if !ok {
		return nil
	}
	millis, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return fmt.Errorf("%s: %q is not a number of milliseconds", name, raw)
	}
	*out = time.Duration(millis) * time.Millisecond
	return nil
}

func envInt(name string, out *int) error {
	raw, ok := os.LookupEnv(name)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("%s: %q is not an integer", name, raw)
	}
	*out = value
	return nil
}

func envUint64(name string, out *uint64) error {
	raw, ok := os.LookupEnv(name)
	if !ok {
		return nil
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("%s: %q is not an unsigned integer", name, raw)
	}
	*out = value
	return nil
}

func envBool(name string, out *bool) error {
	raw, ok := os.LookupEnv(name)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fmt.Errorf("%s: %q is not a boolean", name, raw)
	}
	*out = value
	return nil
}
