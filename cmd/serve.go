package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BetterCallFirewall/pscan/internal/analyzer"
	"github.com/BetterCallFirewall/pscan/internal/broker"
	"github.com/BetterCallFirewall/pscan/internal/cert"
	"github.com/BetterCallFirewall/pscan/internal/models"
	"github.com/BetterCallFirewall/pscan/internal/proxy"
	"github.com/BetterCallFirewall/pscan/internal/pscan"
	"github.com/BetterCallFirewall/pscan/internal/storage"
	"github.com/BetterCallFirewall/pscan/internal/web"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the intercepting proxy, passive scanner and web API",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(opts)
			if err != nil {
				return err
			}
			defer e.logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx, e)
		},
	}
}

func serve(ctx context.Context, e *env) error {
	certMgr, err := cert.NewCertManager(e.cfg.Cert, e.logger.Named("cert"))
	if err != nil {
		return err
	}

	store := storage.NewMemoryStorage(e.cfg.Scanner.MaxMessages)
	alerts := broker.New[models.Alert](256)
	passive := analyzer.NewPassiveAnalyzer(store, e.registry, alerts, e.logger, pscan.Options{
		Workers:   e.cfg.Scanner.Workers,
		QueueSize: e.cfg.Scanner.QueueSize,
	})

	proxySrv := proxy.NewServer(e.cfg.Proxy, passive, certMgr, e.logger.Named("proxy"), proxy.Options{})
	webSrv, err := web.NewServer(
		e.cfg.Web, store, passive, e.registry,
		alerts.Subscribe(analyzer.AlertsTopic), e.logger.Named("web"),
	)
	if err != nil {
		return err
	}

	passive.Start(ctx)

	e.logger.Info("CA certificate for HTTPS interception", zap.String("file", certMgr.GetCAPath()))

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error { return ignoreClosed(proxySrv.Start()) })
	g.Go(func() error { return ignoreClosed(webSrv.Start()) })
	g.Go(func() error {
		<-gCtx.Done()
		e.logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		return errors.Join(
			proxySrv.Stop(shutdownCtx),
			webSrv.Stop(shutdownCtx),
			passive.Close(),
		)
	})

	return g.Wait()
}

func ignoreClosed(err error) error {
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
