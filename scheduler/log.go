package scheduler

import (
	"github.com/JasonDocton/rad-crowdfunding/logger"
	"github.com/JasonDocton/rad-crowdfunding/util/panics"
)

var log, _ = logger.Get(logger.SubsystemTags.SCHD)
var spawn = panics.GoroutineWrapperFunc(log)
var afterFunc = panics.AfterFuncWrapperFunc(log)
