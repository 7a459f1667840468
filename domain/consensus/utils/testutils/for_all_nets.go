package testutils

import (
	"testing"

	"github.com/kaspanet/chaincore/domain/chainparams"
)

// ForAllNets runs the passed testFunc with all available networks. Each run
// receives its own copy of the parameters, so tests may modify them.
func ForAllNets(t *testing.T, testFunc func(*testing.T, *chainparams.Params)) {
	allParams := []*chainparams.Params{
		chainparams.MainNetParams,
		chainparams.TestNet3Params,
		chainparams.RegressionNetParams,
		chainparams.SimNetParams,
	}

	for _, params := range allParams {
		paramsCopy := *params
		t.Run(paramsCopy.Name, func(t *testing.T) {
			t.Parallel()
			t.Logf("Running test for %s", paramsCopy.Name)
			testFunc(t, &paramsCopy)
		})
	}
}
