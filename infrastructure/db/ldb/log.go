package ldb

import "github.com/kaspanet/chaincore/infrastructure/logger"

var log = logger.RegisterSubSystem("LVDB")
