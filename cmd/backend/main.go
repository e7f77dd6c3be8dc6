package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/oklog/run"
	"github.com/rs/zerolog/log"

	server "luxury_villas/internal/adapters/http_server"
	"luxury_villas/internal/adapters/observability"
	"luxury_villas/internal/app"
	"luxury_villas/internal/shared"
	mysqlrepo "luxury_villas/internal/storage/mysql"
)

// backend serves the sheet endpoint protocol on top of MySQL, so the site can
// run against a real remote tier without a spreadsheet.
func main() {
	cfg := shared.Load()
	log.Logger = observability.NewLogger(cfg.AppEnv, "backend")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	reg := observability.InitRegistry()

	srv := server.New(15 * time.Second)
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountEndpoint(app.NewEndpoint(mysqlrepo.New(db), cfg.BcryptCost))
	httpSrv := &http.Server{Addr: cfg.BackendAddr, Handler: srv.Mux(), ReadHeaderTimeout: 5 * time.Second}

	g := &run.Group{}
	g.Add(func() error {
		log.Info().Str("addr", cfg.BackendAddr).Msg("sheet endpoint listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}, func(error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(ctx)
	})
	g.Add(run.SignalHandler(context.Background(), syscall.SIGINT, syscall.SIGTERM))

	if err := g.Run(); err != nil {
		var sig run.SignalError
		if errors.As(err, &sig) {
			log.Info().Str("signal", sig.Signal.String()).Msg("shutting down")
			return
		}
		log.Fatal().Err(err).Msg("backend stopped")
	}
}
