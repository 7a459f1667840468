package app

import (
	"github.com/kaspanet/chaincore/infrastructure/config"
	"github.com/kaspanet/chaincore/infrastructure/logger"
	"github.com/kaspanet/chaincore/util/panics"
)

var log = logger.RegisterSubSystem("COMP")
var spawn = panics.GoroutineWrapperFunc(log)

// InitLog starts writing the logs of all subsystems to the log files of cfg
func InitLog(cfg *config.Config) error {
	return logger.InitLog(cfg.LogFile(), cfg.ErrLogFile())
}
