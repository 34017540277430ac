// Command redis-server wires internal/config, internal/command,
// internal/eventloop, internal/replication, internal/scheduler, and
// internal/admin into a running RESP server, the same way
// cmd/zmux-server/main.go wires its channel service, repositories, and
// Gin router together — except the several long-running loops here (RESP
// accept loop, sweep ticker, admin HTTP server, optional replication
// client) are supervised by one errgroup instead of the teacher's ad hoc
// `go func(){ ... }()` launches, and shutdown is graceful on SIGINT/SIGTERM
// where the teacher's ListenAndServe runs forever uninterrupted.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/nullbyte-labs/redisgo/internal/admin"
	"github.com/nullbyte-labs/redisgo/internal/blocking"
	"github.com/nullbyte-labs/redisgo/internal/bufpool"
	"github.com/nullbyte-labs/redisgo/internal/command"
	"github.com/nullbyte-labs/redisgo/internal/config"
	"github.com/nullbyte-labs/redisgo/internal/eventloop"
	"github.com/nullbyte-labs/redisgo/internal/keyspace"
	"github.com/nullbyte-labs/redisgo/internal/metrics"
	"github.com/nullbyte-labs/redisgo/internal/pubsub"
	"github.com/nullbyte-labs/redisgo/internal/replication"
	"github.com/nullbyte-labs/redisgo/internal/scheduler"
)

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := newLogger()
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", zap.Error(err))
		os.Exit(1)
	}
}

// newLogger builds a zap.Logger the way cmd/zmux-server/main.go does:
// development config, colored levels, no timestamp/caller/stacktrace
// clutter for an operator watching the foreground process.
func newLogger() *zap.Logger {
	logConfig := zap.NewDevelopmentConfig()
	logConfig.EncoderConfig.TimeKey = ""
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logConfig.DisableStacktrace = true
	logConfig.DisableCaller = true
	log := zap.Must(logConfig.Build())
	return log.Named("main")
}

func run(cfg config.Config, log *zap.Logger) error {
	ks := keyspace.New(log)
	blockingReg := blocking.New()
	pubsubMgr := pubsub.New()
	metricsReg := metrics.New()
	master := replication.NewMaster(log)

	dispatcher := command.NewDispatcher(command.Deps{
		Keyspace:    ks,
		Blocking:    blockingReg,
		PubSub:      pubsubMgr,
		Replication: master,
		Metrics:     metricsReg,
		Log:         log,
	})

	respAddr := net.JoinHostPort(cfg.Bind, fmt.Sprintf("%d", cfg.Port))
	listener, err := net.Listen("tcp", respAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", respAddr, err)
	}

	bufPool := bufpool.New(4096, 4096)
	srv := eventloop.New(listener, dispatcher, bufPool, log)

	ticker := scheduler.New(log, scheduler.DefaultInterval,
		func(now time.Time) { ks.SweepExpired(now) },
		func(now time.Time) { srv.DeliverAll(dispatcher.SweepExpired(now)) },
		func(now time.Time) { srv.DeliverAll(master.SweepExpired(now)) },
	)

	adminAddr := net.JoinHostPort(cfg.Bind, fmt.Sprintf("%d", cfg.AdminPort))
	adminRouter := admin.NewRouter(log, ks, metricsReg, master, os.Getenv("ENV") == "dev")
	adminSrv := &http.Server{
		Addr:           adminAddr,
		Handler:        adminRouter,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 15,
		ErrorLog:       zap.NewStdLog(log.Named("admin-http").WithOptions(zap.AddCallerSkip(1))),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("accepting RESP connections", zap.String("addr", respAddr))
		return srv.Run(gctx)
	})

	g.Go(func() error {
		return ticker.Run(gctx)
	})

	g.Go(func() error {
		log.Info("accepting admin HTTP connections", zap.String("addr", adminAddr))
		errCh := make(chan error, 1)
		go func() { errCh <- adminSrv.ListenAndServe() }()
		select {
		case <-gctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return adminSrv.Shutdown(shutdownCtx)
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		}
	})

	if cfg.ReplicaOf != nil {
		masterAddr := net.JoinHostPort(cfg.ReplicaOf.Host, fmt.Sprintf("%d", cfg.ReplicaOf.Port))
		client := replication.NewClient(log, dispatcher, masterAddr)
		client.OnWake = func(w command.Wake) { srv.DeliverAll([]command.Wake{w}) }
		g.Go(func() error {
			log.Info("replicating from master", zap.String("addr", masterAddr))
			client.Start()
			<-gctx.Done()
			client.Stop()
			return nil
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("shutdown complete")
	return nil
}
