package difficultymanager

import "github.com/kaspanet/chaincore/infrastructure/logger"

var log = logger.RegisterSubSystem("DIFF")
