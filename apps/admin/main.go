package main

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/trezcool/examhall/apps/container"
	"github.com/trezcool/examhall/core"
	logsvc "github.com/trezcool/examhall/services/logger"
	"github.com/trezcool/examhall/storage/database"
)

func main() {
	os.Exit(run())
}

func run() int {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger("ADMIN", os.Stdout, conf)
	logger.Enable(false)
	defer logger.Close()

	db, err := database.Open(conf)
	if err != nil {
		logger.Error(fmt.Sprintf("opening database: %v", err), err)
		return 1
	}
	defer func() { _ = db.Close() }()

	app, err := container.New(conf, db, logger, prometheus.NewRegistry())
	if err != nil {
		logger.Error(fmt.Sprintf("building dependencies: %v", err), err)
		return 1
	}

	cli := commandLine{
		db:             db,
		out:            os.Stdout,
		graderSvc:      app.GraderSvc,
		participantSvc: app.ParticipantSvc,
	}
	if err = cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %v", err), err)
		}
		return 1
	}
	return 0
}
