package main

import (
	"github.com/pkg/errors"

	"github.com/JasonDocton/rad-crowdfunding/bip84"
	"github.com/JasonDocton/rad-crowdfunding/config"
	"github.com/JasonDocton/rad-crowdfunding/controllers"
	"github.com/JasonDocton/rad-crowdfunding/database"
	"github.com/JasonDocton/rad-crowdfunding/exchange"
	"github.com/JasonDocton/rad-crowdfunding/explorer"
	"github.com/JasonDocton/rad-crowdfunding/logger"
	"github.com/JasonDocton/rad-crowdfunding/payments"
	"github.com/JasonDocton/rad-crowdfunding/scheduler"
	"github.com/JasonDocton/rad-crowdfunding/server"
	"github.com/JasonDocton/rad-crowdfunding/signal"
	"github.com/JasonDocton/rad-crowdfunding/util/panics"
)

func main() {
	defer panics.HandlePanic(log, nil)

	cfg, err := config.Parse()
	if err != nil {
		logger.PrintErrorAndExit(err)
	}

	err = logger.InitLogRotator(cfg.LogFile())
	if err != nil {
		logger.PrintErrorAndExit(errors.Wrap(err, "couldn't initialize the log rotator"))
	}
	defer logger.Close()

	err = logger.SetLogLevels(cfg.DebugLevel)
	if err != nil {
		logger.PrintErrorAndExit(err)
	}

	log.Infof("Starting radpayd on %s", cfg.Network)

	// Fail fast on an unusable master key instead of at the first donation.
	_, err = bip84.Derive(cfg.MasterKey(), 0, cfg.NetParams)
	if err != nil {
		panic(errors.Wrap(err, "the configured master key is unusable"))
	}

	db, err := database.Connect(cfg)
	if err != nil {
		panic(errors.Wrap(err, "couldn't connect to the database"))
	}
	defer func() {
		err := database.Close()
		if err != nil {
			log.Errorf("Error closing the database: %s", err)
		}
	}()

	sched := scheduler.New()
	defer sched.Stop()

	oracle := exchange.NewOracle(exchange.DefaultSources())
	probe := explorer.NewClient(cfg.NetParams)
	manager := payments.NewManager(cfg, db, oracle, probe, sched)

	err = manager.ResumeMonitors()
	if err != nil {
		panic(errors.Wrap(err, "couldn't resume payment monitors"))
	}
	manager.StartHourlyCleanup()

	shutdownServer := server.Start(cfg.HTTPListen, &controllers.Context{
		DB:      db,
		Manager: manager,
		Oracle:  oracle,
	})
	defer shutdownServer()

	interrupt := signal.InterruptListener()
	<-interrupt
}
