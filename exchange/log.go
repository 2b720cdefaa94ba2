package exchange

import (
	"github.com/JasonDocton/rad-crowdfunding/logger"
	"github.com/JasonDocton/rad-crowdfunding/util/panics"
)

var log, _ = logger.Get(logger.SubsystemTags.XCHG)
var spawn = panics.GoroutineWrapperFunc(log)
