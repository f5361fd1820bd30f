package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tollgate/cmd/server/config"
	"tollgate/internal/checkout"
	checkoutdb "tollgate/internal/db/checkout"
	"tollgate/internal/gateway"
	"tollgate/internal/httpapi"
	"tollgate/internal/observability"
	"tollgate/internal/orderapi"
	"tollgate/internal/realtime"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("dotenv: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func run(ctx context.Context) error {
	metrics := observability.NewMetrics()

	history, journal, cleanupStores, err := buildStores(ctx)
	if err != nil {
		return err
	}
	defer cleanupStores()

	orderCfg, err := config.LoadOrderAPI()
	if err != nil {
		return err
	}
	orders := orderapi.NewClient(orderCfg.BaseURL, &http.Client{
		Timeout:   orderCfg.Timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	})

	hub := realtime.NewHub()
	go hub.Run()

	loader := gateway.NewLoader(nil)
	bridge := gateway.NewBridge(loader, realtime.NewWidgetCommander(hub))

	checkoutCfg, err := config.LoadCheckout()
	if err != nil {
		return err
	}

	stepSink := realtime.NewStepSink(hub)
	outcomeSink := observability.NewOutcomeSink(metrics)
	manager := httpapi.NewManager(func() *checkout.Orchestrator {
		orch := checkout.NewOrchestrator(orders, bridge, history, checkout.Config{
			PollInterval: checkoutCfg.PollInterval,
			PollDeadline: checkoutCfg.PollDeadline,
			CloseGrace:   checkoutCfg.CloseGrace,
		})
		orch.AddSink(stepSink)
		orch.AddSink(outcomeSink)
		if journal != nil {
			orch.AddSink(checkoutdb.NewSink(journal, log.Printf))
		}
		return orch
	})

	httpCfg, err := config.LoadHTTP()
	if err != nil {
		return err
	}
	api := httpapi.NewServer(manager, bridge, orders, hub, metrics)
	router := api.Router(httpapi.Config{
		RateLimitInterval: httpCfg.RateLimitInterval,
		RateLimitBurst:    httpCfg.RateLimitBurst,
	})

	srv := &http.Server{
		Addr:    httpCfg.Addr,
		Handler: otelhttp.NewHandler(router, "tollgate.http"),
	}

	obsSrv, err := startObservabilityServer(metrics)
	if err != nil {
		return err
	}

	log.Printf("checkout server running on %s", httpCfg.Addr)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		metrics.MarkShutdown(0)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("http shutdown: %v", err)
		}
		if obsSrv != nil {
			obsCtx, cancelObs := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancelObs()
			_ = obsSrv.Shutdown(obsCtx)
		}
		return nil
	case err := <-errCh:
		return err
	}
}

func startObservabilityServer(metrics *observability.Metrics) (*http.Server, error) {
	cfg, err := config.LoadObservability()
	if err != nil {
		return nil, err
	}
	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: observability.Mux(metrics),
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("observability server error: %v", err)
		}
	}()

	return srv, nil
}
