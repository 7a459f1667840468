// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/jessevdk/go-flags"
	"github.com/kaspanet/chaincore/domain/consensus/processes/blockfetcher"
	"github.com/kaspanet/chaincore/infrastructure/logger"
	"github.com/kaspanet/chaincore/version"
	"github.com/lightningnetwork/lnd/ticker"
	"github.com/pkg/errors"
)

const (
	defaultConfigFilename  = "chaincore.conf"
	defaultDataDirname     = "data"
	defaultLogLevel        = "info"
	defaultLogDirname      = "logs"
	defaultLogFilename     = "chaincore.log"
	defaultErrLogFilename  = "chaincore_err.log"
	defaultHeaderCacheSize = 10000
)

var (
	// DefaultHomeDir is the default home directory for chaincore.
	DefaultHomeDir = btcutil.AppDataDir("chaincore", false)

	defaultConfigFile = filepath.Join(DefaultHomeDir, defaultConfigFilename)
	defaultDataDir    = filepath.Join(DefaultHomeDir, defaultDataDirname)
	defaultLogDir     = filepath.Join(DefaultHomeDir, defaultLogDirname)
)

// Flags defines the configuration options for chaincore.
//
// See LoadConfig for details on the configuration load process.
type Flags struct {
	ConfigFile  string `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir     string `short:"b" long:"datadir" description:"Directory to store data"`
	LogDir      string `long:"logdir" description:"Directory to log output."`
	ShowVersion bool   `short:"V" long:"version" description:"Display version information and exit"`
	DebugLevel  string `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`

	MaxBlocksInFlight    int           `long:"maxblocksinflight" description:"Maximum number of blocks requested from all peers at once"`
	ScoreRefreshInterval time.Duration `long:"scorerefreshinterval" description:"How often fetcher scores are recomputed"`
	StallCheckInterval   time.Duration `long:"stallcheckinterval" description:"How often block downloads are checked for stalls"`
	StallTimeoutBase     float64       `long:"stalltimeoutbase" description:"Stall timeout of a block download, in target block spacings"`
	StallTimeoutPerPeer  float64       `long:"stalltimeoutperpeer" description:"Stall timeout added for every additional peer with blocks in flight, in target block spacings"`

	MinimumChainWork string `long:"minimumchainwork" description:"Minimum chain work, in hex, the best header must carry before the node considers itself synced"`
	NoHeaderDB       bool   `long:"noheaderdb" description:"Keep headers in memory instead of the header database"`
	HeaderCacheSize  int    `long:"headercachesize" description:"Number of headers cached in front of the header database"`

	Profile string `long:"profile" description:"Enable HTTP profiling and metrics on given port -- NOTE port must be between 1024 and 65536"`

	NetworkFlags
}

// Config defines the configuration options for chaincore after they were
// parsed and validated.
type Config struct {
	*Flags
}

// LogFile returns the path of the main log file
func (cfg *Config) LogFile() string {
	return filepath.Join(cfg.LogDir, defaultLogFilename)
}

// ErrLogFile returns the path of the error log file
func (cfg *Config) ErrLogFile() string {
	return filepath.Join(cfg.LogDir, defaultErrLogFilename)
}

// HeaderDBPath returns the path of the header database
func (cfg *Config) HeaderDBPath() string {
	return filepath.Join(cfg.DataDir, "headers")
}

// BlockFetcherConfig returns the block fetcher configuration described by
// the flags, with real tickers and the wall clock.
func (cfg *Config) BlockFetcherConfig() *blockfetcher.Config {
	fetcherConfig := blockfetcher.DefaultConfig(cfg.NetParams().PowTargetSpacing)
	fetcherConfig.MaxBlocksInFlight = cfg.MaxBlocksInFlight
	fetcherConfig.StallTimeoutBase = cfg.StallTimeoutBase
	fetcherConfig.StallTimeoutPerPeer = cfg.StallTimeoutPerPeer
	fetcherConfig.ScoreRefreshTicker = ticker.New(cfg.ScoreRefreshInterval)
	fetcherConfig.StallCheckTicker = ticker.New(cfg.StallCheckInterval)
	return fetcherConfig
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		homeDir := filepath.Dir(DefaultHomeDir)
		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but they variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}

func defaultFlags() *Flags {
	return &Flags{
		ConfigFile:           defaultConfigFile,
		DataDir:              defaultDataDir,
		LogDir:               defaultLogDir,
		DebugLevel:           defaultLogLevel,
		MaxBlocksInFlight:    blockfetcher.DefaultMaxBlocksInFlight,
		ScoreRefreshInterval: blockfetcher.DefaultScoreRefreshInterval,
		StallCheckInterval:   blockfetcher.DefaultStallCheckInterval,
		StallTimeoutBase:     blockfetcher.DefaultStallTimeoutBase,
		StallTimeoutPerPeer:  blockfetcher.DefaultStallTimeoutPerPeer,
		HeaderCacheSize:      defaultHeaderCacheSize,
	}
}

// LoadConfig initializes and parses the config using a config file and
// the given command line arguments.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
//
// Command line options always take precedence.
func LoadConfig(args []string) (*Config, error) {
	cfgFlags := defaultFlags()

	// Pre-parse the command line options to see if an alternative config
	// file was specified. Any errors aside from the help message error can
	// be ignored here since they will be caught by the final parse below.
	preCfg := *cfgFlags
	preParser := flags.NewParser(&preCfg, flags.HelpFlag)
	_, err := preParser.ParseArgs(args)
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stderr, err)
			return nil, err
		}
	}

	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))

	// Show the version and exit if the version flag was specified.
	if preCfg.ShowVersion {
		fmt.Println(appName, "version", version.Version())
		os.Exit(0)
	}

	usageMessage := fmt.Sprintf("Use %s -h to show usage", appName)

	// Load additional config from file.
	parser := flags.NewParser(cfgFlags, flags.Default)
	err = flags.NewIniParser(parser).ParseFile(preCfg.ConfigFile)
	if err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			fmt.Fprintf(os.Stderr, "Error parsing config file: %s\n", err)
			fmt.Fprintln(os.Stderr, usageMessage)
			return nil, err
		}
		if preCfg.ConfigFile != defaultConfigFile {
			return nil, errors.Wrapf(err, "could not read config file %s", preCfg.ConfigFile)
		}
	}

	// Parse command line options again to ensure they take precedence.
	_, err = parser.ParseArgs(args)
	if err != nil {
		var flagsErr *flags.Error
		if !errors.As(err, &flagsErr) || flagsErr.Type != flags.ErrHelp {
			fmt.Fprintln(os.Stderr, usageMessage)
		}
		return nil, err
	}

	cfg := &Config{Flags: cfgFlags}
	err = cfg.ResolveNetwork(parser)
	if err != nil {
		return nil, err
	}

	funcName := "LoadConfig"
	err = cfg.validate()
	if err != nil {
		err := errors.Errorf("%s: %s", funcName, err)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, err
	}

	if cfg.MinimumChainWork != "" {
		cfg.ActiveNetParams, err = cfg.ActiveNetParams.WithMinimumChainWork(cfg.MinimumChainWork)
		if err != nil {
			return nil, errors.Wrapf(err, "%s", funcName)
		}
	}

	// Namespace the data and log directories per network.
	cfg.DataDir = filepath.Join(cleanAndExpandPath(cfg.DataDir), cfg.NetParams().Name)
	cfg.LogDir = filepath.Join(cleanAndExpandPath(cfg.LogDir), cfg.NetParams().Name)

	// Special show command to list supported subsystems and exit.
	if cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems", logger.SupportedSubsystems())
		os.Exit(0)
	}

	// Parse, validate, and set debug log level(s).
	err = logger.ParseAndSetLogLevels(cfg.DebugLevel)
	if err != nil {
		err := errors.Errorf("%s: %s", funcName, err)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, err
	}

	log.Debugf("Loaded the configuration of %s", cfg.NetParams().Name)
	return cfg, nil
}

func (cfg *Config) validate() error {
	if cfg.MaxBlocksInFlight <= 0 {
		return errors.Errorf("maxblocksinflight must be positive, got %d", cfg.MaxBlocksInFlight)
	}
	if cfg.ScoreRefreshInterval <= 0 || cfg.StallCheckInterval <= 0 {
		return errors.New("scorerefreshinterval and stallcheckinterval must be positive")
	}
	if cfg.StallTimeoutBase <= 0 {
		return errors.Errorf("stalltimeoutbase must be positive, got %f", cfg.StallTimeoutBase)
	}
	if cfg.StallTimeoutPerPeer < 0 {
		return errors.Errorf("stalltimeoutperpeer cannot be negative, got %f", cfg.StallTimeoutPerPeer)
	}
	if !cfg.NoHeaderDB && cfg.HeaderCacheSize <= 0 {
		return errors.Errorf("headercachesize must be positive, got %d", cfg.HeaderCacheSize)
	}
	if cfg.Profile != "" {
		profilePort, err := strconv.Atoi(cfg.Profile)
		if err != nil || profilePort < 1024 || profilePort > 65535 {
			return errors.Errorf("the profile port must be between 1024 and 65535, got %s", cfg.Profile)
		}
	}
	return nil
}
