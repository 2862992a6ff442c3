package main

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	echoapi "github.com/trezcool/examhall/apps/api/echo"
	"github.com/trezcool/examhall/apps/container"
	"github.com/trezcool/examhall/core"
	logsvc "github.com/trezcool/examhall/services/logger"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger("API", os.Stdout, conf)
	logger.Enable(!conf.Debug)
	defer logger.Close()

	dbLogger := logsvc.NewRollbarLogger("DB", os.Stdout, conf)

	db, err := container.SetUpDB(conf)
	if err != nil {
		dbLogger.Error(fmt.Sprintf("setting up database: %v", err), err)
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			dbLogger.Error("closing database", err)
		}
	}()

	app, err := container.New(conf, db, logger, prometheus.DefaultRegisterer)
	if err != nil {
		logger.Error(fmt.Sprintf("building dependencies: %v", err), err)
		return err
	}

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.
	// /metrics - Prometheus metrics.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	http.Handle("/metrics", promhttp.Handler())

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	server := echoapi.NewServer(&echoapi.Options{
		Address:        conf.Server.Addr,
		DisableReqLogs: !conf.Debug,
		SignalShutdown: func() { shutdown <- syscall.SIGTERM },

		Conf:       conf,
		Logger:     logger,
		Translator: app.Translator,
		Files:      app.Files,
		Texts:      app.Texts,

		ParticipantSvc: app.ParticipantSvc,
		SubmissionSvc:  app.SubmissionSvc,
		GradingSvc:     app.GradingSvc,
		ExamSvc:        app.ExamSvc,
		GraderSvc:      app.GraderSvc,
	})

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info(fmt.Sprintf("API listening on %s", conf.Server.Addr))
		server.Start()
		serverErrors <- nil
	}()

	// =========================================================================
	// Shutdown

	select {
	case <-serverErrors:
		return nil

	case sig := <-shutdown:
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		if err = server.Stop(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
			return err
		}
	}
	return nil
}
