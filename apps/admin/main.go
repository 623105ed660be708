package main

import (
	"log"
	"os"

	"github.com/pcphq/pcp/core"
	"github.com/pcphq/pcp/core/notification"
	logsvc "github.com/pcphq/pcp/services/logger"
	"github.com/pcphq/pcp/storage/database"
	sqlxrepos "github.com/pcphq/pcp/storage/database/sqlx"
)

func main() {
	defer os.Exit(0)

	conf := core.NewConfig()
	std := log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(std, conf)
	logger.Enable(!conf.Debug)

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		std.Fatal(err)
	}
	defer func() { _ = db.Close() }()
	if err = db.Ping(); err != nil {
		std.Fatal(err)
	}

	prjRepo := sqlxrepos.NewProjectRepository(db)
	tskRepo := sqlxrepos.NewTaskRepository(db)
	clock := core.NewClock()

	// start CLI
	cli := commandLine{
		db:      db,
		usrRepo: sqlxrepos.NewUserRepository(db),
		engine: notification.NewEngine(notification.EngineDeps{
			Conf:       conf.Notification,
			Clock:      clock,
			Projects:   prjRepo,
			Tasks:      tskRepo,
			Ledger:     sqlxrepos.NewLedger(db),
			Resolver:   notification.NewResolver(prjRepo, tskRepo),
			Dispatcher: notification.NewDispatcher(sqlxrepos.NewNotificationRepository(db), clock, logger),
			Logger:     logger,
		}),
		out: os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			std.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
