package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kaspanet/chaincore/domain/chainparams"
	"github.com/kaspanet/chaincore/domain/consensus/processes/blockfetcher"
	"github.com/kaspanet/chaincore/domain/consensus/utils/target"
)

func baseArgs(t *testing.T) ([]string, string) {
	dir := t.TempDir()
	return []string{
		"--configfile", filepath.Join(dir, "missing.conf"),
		"--datadir", filepath.Join(dir, "data"),
		"--logdir", filepath.Join(dir, "logs"),
	}, dir
}

func TestLoadConfigDefaults(t *testing.T) {
	args, dir := baseArgs(t)
	_, err := LoadConfig(args)
	if err == nil {
		t.Fatalf("TestLoadConfigDefaults: expected an error for a missing explicit config file")
	}

	args = args[2:]
	cfg, err := LoadConfig(args)
	if err != nil {
		t.Fatalf("TestLoadConfigDefaults: LoadConfig: %s", err)
	}
	if cfg.NetParams().Name != chainparams.MainNetParams.Name {
		t.Fatalf("TestLoadConfigDefaults: expected mainnet, got %s", cfg.NetParams().Name)
	}
	if cfg.NetParams() == chainparams.MainNetParams {
		t.Fatalf("TestLoadConfigDefaults: the active parameters must be a copy of the preset")
	}
	if cfg.DataDir != filepath.Join(dir, "data", "mainnet") {
		t.Fatalf("TestLoadConfigDefaults: unexpected data dir %s", cfg.DataDir)
	}
	if cfg.MaxBlocksInFlight != blockfetcher.DefaultMaxBlocksInFlight ||
		cfg.ScoreRefreshInterval != time.Minute || cfg.StallCheckInterval != time.Minute ||
		cfg.StallTimeoutBase != 1.0 || cfg.StallTimeoutPerPeer != 0.5 {

		t.Fatalf("TestLoadConfigDefaults: unexpected defaults %+v", cfg.Flags)
	}

	fetcherConfig := cfg.BlockFetcherConfig()
	if fetcherConfig.TargetSpacing != 10*time.Minute || fetcherConfig.MaxBlocksInFlight != 200 {
		t.Fatalf("TestLoadConfigDefaults: unexpected block fetcher config %+v", fetcherConfig)
	}
}

func TestLoadConfigNetworks(t *testing.T) {
	tests := []struct {
		flag     string
		expected *chainparams.Params
	}{
		{flag: "--testnet", expected: chainparams.TestNet3Params},
		{flag: "--regtest", expected: chainparams.RegressionNetParams},
		{flag: "--simnet", expected: chainparams.SimNetParams},
	}
	for _, test := range tests {
		args, _ := baseArgs(t)
		cfg, err := LoadConfig(append(args[2:], test.flag))
		if err != nil {
			t.Fatalf("TestLoadConfigNetworks: %s: %s", test.flag, err)
		}
		if cfg.NetParams().Name != test.expected.Name {
			t.Fatalf("TestLoadConfigNetworks: %s: expected %s, got %s", test.flag, test.expected.Name,
				cfg.NetParams().Name)
		}
	}

	args, _ := baseArgs(t)
	_, err := LoadConfig(append(args[2:], "--testnet", "--simnet"))
	if err == nil {
		t.Fatalf("TestLoadConfigNetworks: expected an error selecting two networks")
	}
}

func TestLoadConfigFile(t *testing.T) {
	args, dir := baseArgs(t)
	configFile := filepath.Join(dir, "chaincore.conf")
	content := "[Application Options]\n" +
		"maxblocksinflight=50\n" +
		"stalltimeoutbase=2.5\n" +
		"regtest=1\n"
	err := os.WriteFile(configFile, []byte(content), 0600)
	if err != nil {
		t.Fatalf("TestLoadConfigFile: WriteFile: %s", err)
	}

	args[1] = configFile
	cfg, err := LoadConfig(append(args, "--maxblocksinflight=70"))
	if err != nil {
		t.Fatalf("TestLoadConfigFile: LoadConfig: %s", err)
	}
	if cfg.MaxBlocksInFlight != 70 {
		t.Fatalf("TestLoadConfigFile: the command line must take precedence, got %d", cfg.MaxBlocksInFlight)
	}
	if cfg.StallTimeoutBase != 2.5 {
		t.Fatalf("TestLoadConfigFile: expected the config file value, got %f", cfg.StallTimeoutBase)
	}
	if cfg.NetParams().Name != chainparams.RegressionNetParams.Name {
		t.Fatalf("TestLoadConfigFile: expected regtest, got %s", cfg.NetParams().Name)
	}
}

func TestLoadConfigMinimumChainWork(t *testing.T) {
	args, _ := baseArgs(t)
	cfg, err := LoadConfig(append(args[2:], "--regtest", "--minimumchainwork=0x100"))
	if err != nil {
		t.Fatalf("TestLoadConfigMinimumChainWork: LoadConfig: %s", err)
	}
	if !cfg.NetParams().MinimumChainWork.Equal(target.FromUint64(0x100)) {
		t.Fatalf("TestLoadConfigMinimumChainWork: unexpected minimum chain work %s", cfg.NetParams().MinimumChainWork)
	}
	if !chainparams.RegressionNetParams.MinimumChainWork.IsZero() {
		t.Fatalf("TestLoadConfigMinimumChainWork: the preset was modified")
	}

	_, err = LoadConfig(append(args[2:], "--minimumchainwork=xyz"))
	if err == nil {
		t.Fatalf("TestLoadConfigMinimumChainWork: expected an error for invalid hex")
	}
}

func TestLoadConfigValidation(t *testing.T) {
	invalidArgs := [][]string{
		{"--maxblocksinflight=0"},
		{"--stalltimeoutbase=0"},
		{"--stalltimeoutperpeer=-1"},
		{"--scorerefreshinterval=0s"},
		{"--headercachesize=0"},
		{"--debuglevel=verbose"},
		{"--profile=80"},
		{"--profile=http"},
	}
	for _, extraArgs := range invalidArgs {
		args, _ := baseArgs(t)
		_, err := LoadConfig(append(args[2:], extraArgs...))
		if err == nil {
			t.Fatalf("TestLoadConfigValidation: expected an error for %v", extraArgs)
		}
	}

	args, _ := baseArgs(t)
	_, err := LoadConfig(append(args[2:], "--noheaderdb", "--headercachesize=0"))
	if err != nil {
		t.Fatalf("TestLoadConfigValidation: the cache size is unused without the header database: %s", err)
	}

	args, _ = baseArgs(t)
	_, err = LoadConfig(append(args[2:], "--profile=6060"))
	if err != nil {
		t.Fatalf("TestLoadConfigValidation: unexpected error for a valid profile port: %s", err)
	}
}
