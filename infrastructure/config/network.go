package config

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/kaspanet/chaincore/domain/chainparams"
	"github.com/pkg/errors"
)

// NetworkFlags holds the network configuration, that is which network is selected.
type NetworkFlags struct {
	TestNet        bool `long:"testnet" description:"Use the test network"`
	RegressionTest bool `long:"regtest" description:"Use the regression test network"`
	SimNet         bool `long:"simnet" description:"Use the simulation test network"`

	ActiveNetParams *chainparams.Params
}

// ResolveNetwork parses the network command line argument and sets ActiveNetParams accordingly.
// It returns error if more than one network was selected, nil otherwise.
func (networkFlags *NetworkFlags) ResolveNetwork(parser *flags.Parser) error {
	//ActiveNetParams holds the selected network parameters. Default value is main-net.
	activeNetParams := chainparams.MainNetParams
	// Multiple networks can't be selected simultaneously.
	numNets := 0
	if networkFlags.TestNet {
		numNets++
		activeNetParams = chainparams.TestNet3Params
	}
	if networkFlags.RegressionTest {
		numNets++
		activeNetParams = chainparams.RegressionNetParams
	}
	if networkFlags.SimNet {
		numNets++
		activeNetParams = chainparams.SimNetParams
	}
	if numNets > 1 {
		message := "Multiple networks parameters (testnet, regtest, simnet) cannot be used " +
			"together. Please choose only one network"
		err := errors.New(message)
		fmt.Fprintln(os.Stderr, err)
		parser.WriteHelp(os.Stderr)
		return err
	}

	// The presets are shared, the active network gets its own copy.
	params := *activeNetParams
	networkFlags.ActiveNetParams = &params
	return nil
}

// NetParams returns the ActiveNetParams
func (networkFlags *NetworkFlags) NetParams() *chainparams.Params {
	return networkFlags.ActiveNetParams
}
