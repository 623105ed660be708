package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/robfig/cron/v3"

	echoapi "github.com/pcphq/pcp/apps/api/echo"
	"github.com/pcphq/pcp/core"
	"github.com/pcphq/pcp/core/notification"
	"github.com/pcphq/pcp/core/project"
	"github.com/pcphq/pcp/core/task"
	"github.com/pcphq/pcp/core/user"
	logsvc "github.com/pcphq/pcp/services/logger"
	"github.com/pcphq/pcp/storage/database"
	sqlxrepos "github.com/pcphq/pcp/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			logger.Error("failed to close DB", err)
		}
	}()

	// set up repositories
	usrRepo := sqlxrepos.NewUserRepository(db)
	prjRepo := sqlxrepos.NewProjectRepository(db)
	tskRepo := sqlxrepos.NewTaskRepository(db)
	ntfRepo := sqlxrepos.NewNotificationRepository(db)
	ledger := sqlxrepos.NewLedger(db)

	// set up the notification engine and services
	clock := core.NewClock()
	engine := notification.NewEngine(notification.EngineDeps{
		Conf:       conf.Notification,
		Clock:      clock,
		Projects:   prjRepo,
		Tasks:      tskRepo,
		Ledger:     ledger,
		Resolver:   notification.NewResolver(prjRepo, tskRepo),
		Dispatcher: notification.NewDispatcher(ntfRepo, clock, logger),
		Logger:     logger,
	})

	usrSvc := user.NewService(usrRepo)
	prjSvc := project.NewService(prjRepo, engine, logger)
	tskSvc := task.NewService(tskRepo, prjSvc, engine, logger)
	ntfSvc := notification.NewService(ntfRepo)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	project.InitValidators(validate, translator)
	task.InitValidators(validate, translator)

	// =========================================================================
	// Start Deadline Sweep

	sched := cron.New()
	if _, err = sched.AddFunc(conf.Notification.SweepSchedule, func() {
		rep := engine.RunSweep(context.Background())
		logger.Info(fmt.Sprintf(
			"sweep done: %d projects, %d tasks, %d dispatched, %d suppressed, %d errors",
			rep.ProjectsSeen, rep.TasksSeen, rep.Dispatched, rep.Suppressed, len(rep.Errors),
		))
		for _, swErr := range rep.Errors {
			logger.Error("sweep error", swErr)
		}
	}); err != nil {
		logger.Fatal(fmt.Sprintf("scheduling sweep: %v", err), err)
	}
	sched.Start()
	defer sched.Stop()

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:       conf,
		Logger:     logger,
		UserSvc:    usrSvc,
		ProjectSvc: prjSvc,
		TaskSvc:    tskSvc,
		NotifSvc:   ntfSvc,
		Validate:   validate,
		Translator: translator,
	})

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db.DB); err != nil {
		return nil, err
	}
	return db, nil
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
