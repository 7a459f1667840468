package blockfetcher

import (
	"github.com/kaspanet/chaincore/infrastructure/logger"
	"github.com/kaspanet/chaincore/util/panics"
)

var log = logger.RegisterSubSystem("BFTC")
var spawn = panics.GoroutineWrapperFunc(log)
