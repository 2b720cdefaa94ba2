package main

import (
	"github.com/JasonDocton/rad-crowdfunding/logger"
)

var log, _ = logger.Get(logger.SubsystemTags.RADP)
