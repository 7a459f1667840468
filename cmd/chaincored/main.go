// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/kaspanet/chaincore/app"
	"github.com/kaspanet/chaincore/infrastructure/config"
	"github.com/kaspanet/chaincore/infrastructure/os/signal"
	"github.com/kaspanet/chaincore/util/panics"
	"github.com/kaspanet/chaincore/util/profiling"
	"github.com/kaspanet/chaincore/version"
)

func main() {
	if err := startChaincore(); err != nil {
		os.Exit(1)
	}
}

// startChaincore runs chaincore until an interrupt signal is received.
func startChaincore() error {
	defer panics.HandlePanic(log, nil)
	interrupt := signal.InterruptListener()

	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		return err
	}
	err = app.InitLog(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing the logger: %s\n", err)
		return err
	}
	defer log.Backend().Close()

	// Show version at startup.
	log.Infof("Version %s", version.Version())

	componentManager, err := app.NewComponentManager(cfg)
	if err != nil {
		log.Errorf("Unable to start chaincore: %+v", err)
		return err
	}

	// Enable http profiling server if requested.
	if cfg.Profile != "" {
		profiling.Start(cfg.Profile, componentManager.MetricsGatherer(), log)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	componentManager.Start(ctx)

	<-interrupt
	cancel()
	componentManager.Stop()

	log.Infof("Chaincore shutdown complete")
	return nil
}
