package config

import (
	"path/filepath"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
)

const (
	logFilename = "radpayd.log"

	defaultLogDir     = "logs"
	defaultHTTPListen = "0.0.0.0:8080"
	defaultDebugLevel = "info"
)

// Network names accepted by the --network flag and BITCOIN_NETWORK.
const (
	NetworkMainnet = "mainnet"
	NetworkTestnet = "testnet"
)

// Required confirmation depth before a payment is considered final. Testnet
// is set higher intentionally because test blocks are cheap.
const (
	mainnetRequiredConfirmations = 3
	testnetRequiredConfirmations = 6
)

// Config defines the configuration options for the payment daemon.
type Config struct {
	HTTPListen     string `long:"listen" description:"HTTP address to listen on" env:"RAD_LISTEN"`
	DBAddress      string `long:"dbaddress" description:"Database DSN (MySQL)" env:"RAD_DB_ADDRESS"`
	MigrationsPath string `long:"migrations-path" description:"Path to the database migration files" env:"RAD_MIGRATIONS_PATH"`
	LogDir         string `long:"logdir" description:"Directory to log output" env:"RAD_LOG_DIR"`
	DebugLevel     string `long:"debuglevel" short:"d" description:"Logging level {trace, debug, info, warn, error, critical}" env:"RAD_DEBUG_LEVEL"`
	Network        string `long:"network" description:"Bitcoin network to operate on" choice:"mainnet" choice:"testnet" env:"BITCOIN_NETWORK"`
	MasterZprv     string `long:"master-zprv" description:"BIP84 extended private key for mainnet receive addresses" env:"BITCOIN_MASTER_ZPRV"`
	MasterVprv     string `long:"master-vprv" description:"BIP84 extended private key for testnet receive addresses" env:"BITCOIN_MASTER_VPRV"`
	SiteURL        string `long:"site-url" description:"Public URL of the site, used by the hosted checkout adapters" env:"SITE_URL"`

	// NetParams is resolved from Network during Parse.
	NetParams *chaincfg.Params `no-flag:"true"`
}

// Parse parses the CLI arguments and environment and returns a config struct.
func Parse() (*Config, error) {
	cfg := &Config{
		HTTPListen: defaultHTTPListen,
		LogDir:     defaultLogDir,
		DebugLevel: defaultDebugLevel,
		Network:    NetworkMainnet,
	}
	parser := flags.NewParser(cfg, flags.PrintErrors|flags.HelpFlag)
	_, err := parser.Parse()
	if err != nil {
		return nil, err
	}

	err = cfg.resolveNetwork()
	if err != nil {
		return nil, err
	}

	if cfg.DBAddress == "" {
		return nil, errors.New("--dbaddress is required")
	}

	return cfg, nil
}

func (cfg *Config) resolveNetwork() error {
	switch cfg.Network {
	case NetworkMainnet:
		cfg.NetParams = &chaincfg.MainNetParams
		if cfg.MasterZprv == "" {
			return errors.New("BITCOIN_MASTER_ZPRV is required on mainnet")
		}
	case NetworkTestnet:
		cfg.NetParams = &chaincfg.TestNet3Params
		if cfg.MasterVprv == "" {
			return errors.New("BITCOIN_MASTER_VPRV is required on testnet")
		}
	default:
		return errors.Errorf("unknown network %s", cfg.Network)
	}
	return nil
}

// MasterKey returns the extended private key for the configured network. The
// key must never be logged.
func (cfg *Config) MasterKey() string {
	if cfg.Testnet() {
		return cfg.MasterVprv
	}
	return cfg.MasterZprv
}

// Testnet returns true when the configured network is testnet.
func (cfg *Config) Testnet() bool {
	return cfg.Network == NetworkTestnet
}

// RequiredConfirmations returns the confirmation depth required before a
// payment to an address of the configured network is considered final.
func (cfg *Config) RequiredConfirmations() uint64 {
	if cfg.Testnet() {
		return testnetRequiredConfirmations
	}
	return mainnetRequiredConfirmations
}

// LogFile returns the path of the rotated log file.
func (cfg *Config) LogFile() string {
	return filepath.Join(cfg.LogDir, logFilename)
}
