package config

import "github.com/kaspanet/chaincore/infrastructure/logger"

var log = logger.RegisterSubSystem("CNFG")
