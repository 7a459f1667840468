package consensus

import "github.com/kaspanet/chaincore/infrastructure/logger"

var log = logger.RegisterSubSystem("CNSS")
