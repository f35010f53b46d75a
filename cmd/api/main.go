package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"paradise.network/internal/account"
	"paradise.network/internal/audit"
	"paradise.network/internal/auth"
	"paradise.network/internal/commission"
	"paradise.network/internal/httpapi"
	"paradise.network/internal/ledger"
	"paradise.network/internal/network"
	"paradise.network/internal/obs"
	"paradise.network/internal/registration"
	"paradise.network/internal/store/pg"
	"paradise.network/internal/stream"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	var (
		accounts account.Store
		entries  ledger.Store
		trail    audit.Trail
		rules    []commission.Rule
		pgStore  *pg.Store
	)
	if dsn := os.Getenv("PARADISE_PG_DSN"); dsn != "" {
		var err error
		pgStore, err = pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		accounts = pgStore.Accounts()
		entries = pgStore.Ledger()
		trail = pgStore.Trail()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		rules, err = pgStore.LoadRules(ctx)
		cancel()
		if err != nil {
			log.Fatalf("load commission rules: %v", err)
		}
	} else {
		accounts = account.NewInMemory()
		entries = ledger.NewInMemory()
		trail = audit.NewInMemory()
	}
	if len(rules) == 0 {
		rules = commission.SeedRules()
	}

	resolver, err := commission.NewResolver(rules)
	if err != nil {
		log.Fatalf("commission rules: %v", err)
	}

	graph := network.New(accounts)
	workflow := registration.NewWorkflow(accounts, graph)
	authsvc := auth.NewService(accounts)
	ledgersvc := ledger.NewService(accounts, graph, resolver, entries)
	events := stream.New()

	var (
		probe     httpapi.ReadyProbe
		ruleStore httpapi.RuleStore
	)
	if pgStore != nil {
		probe.DB = pgStore.DB()
		ruleStore = pgStore
	}
	api := httpapi.New(probe, version, httpapi.Deps{
		Accounts:     accounts,
		Graph:        graph,
		Registration: workflow,
		Auth:         authsvc,
		Ledger:       ledgersvc,
		Rules:        resolver,
		RuleStore:    ruleStore,
		Trail:        trail,
		Stream:       events,
	})

	addr := os.Getenv("PARADISE_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Expired registration sessions are reaped on a timer rather than on
	// each request, so the hot path never scans the session map.
	reaperDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				workflow.PurgeExpired(time.Now())
			case <-reaperDone:
				return
			}
		}
	}()

	log.Printf("Starting paradise-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	close(reaperDone)
	_ = srv.Shutdown(ctx)
	if pgStore != nil {
		_ = pgStore.Close()
	}
	log.Println("Stopped")
}
