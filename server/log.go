package server

import (
	"github.com/JasonDocton/rad-crowdfunding/logger"
	"github.com/JasonDocton/rad-crowdfunding/util/panics"
)

var log, _ = logger.Get(logger.SubsystemTags.SRVR)
var spawn = panics.GoroutineWrapperFunc(log)
