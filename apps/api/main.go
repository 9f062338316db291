package main

import (
	"context"
	"expvar"
	"flag"
	"fmt"
	"log"
	"os"

	echoapi "github.com/trezcool/masomo-console/apps/api/echo"
	"github.com/trezcool/masomo-console/core"
	"github.com/trezcool/masomo-console/core/promotion"
	logsvc "github.com/trezcool/masomo-console/services/logger"
	inmemdb "github.com/trezcool/masomo-console/storage/inmem"
)

// Development backend: serves a seeded in-memory school over the /v1 API the console talks to.
func main() {
	configFile := flag.String("config", "", "optional config file merged over the defaults")
	flag.Parse()

	// =========================================================================
	// Set up Dependencies

	conf, err := core.NewConfig(*configFile)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	reg := inmemdb.NewRegistry(inmemdb.WithLogger(dbLogger))
	if err = inmemdb.Seed(reg); err != nil {
		logger.Fatal(fmt.Sprintf("seeding registry: %v", err), err)
	}

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate, translator := core.NewValidator()
	promotion.InitValidators(validate, translator)

	// Expose important info under /debug/vars (debug mode only).
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:       conf,
			Logger:     logger,
			Store:      reg,
			Validate:   validate,
			Translator: translator,
		},
	)

	go func() {
		server.Start()
	}()

	if conf.Debug {
		token, tErr := echoapi.GenerateToken(echoapi.NewClaims(conf, "dev-admin", true), conf.Server.SecretKey)
		if tErr != nil {
			logger.Fatal(fmt.Sprintf("generating dev token: %v", tErr), tErr)
		}
		logger.Info("development admin token: " + token)
	}

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
