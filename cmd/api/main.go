package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/radiopv/assistantpv-sub000/internal/audit"
	"github.com/radiopv/assistantpv-sub000/internal/authz"
	"github.com/radiopv/assistantpv-sub000/internal/httpapi"
	"github.com/radiopv/assistantpv-sub000/internal/obs"
	"github.com/radiopv/assistantpv-sub000/internal/sponsorship"
	"github.com/radiopv/assistantpv-sub000/internal/store/pg"
	"github.com/radiopv/assistantpv-sub000/internal/stream"
)

var version = "0.4.1"

func main() {
	// Observability first: metric registration and the JSON logger.
	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("SPONSOR_BUILD_COMMIT"))

	// Postgres when a DSN is configured, in-memory stores otherwise.
	// The in-memory mode covers local development and demos.
	var (
		db           *sql.DB
		authzStore   authz.Store
		sponsorStore sponsorship.Store
		auditStore   audit.Store
	)
	if dsn := os.Getenv("SPONSOR_PG_DSN"); dsn != "" {
		store, err := pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db = store.DB()
		authzStore = store
		sponsorStore = store
		auditStore = store
	} else {
		authzStore = authz.NewInMemory()
		sponsorStore = sponsorship.NewInMemory()
		auditStore = audit.NewInMemory()
		log.Print("SPONSOR_PG_DSN not set, running with in-memory stores")
	}

	recorder, err := audit.NewRecorder(auditStore)
	if err != nil {
		log.Fatalf("audit recorder: %v", err)
	}
	authzSvc, err := authz.NewService(authzStore)
	if err != nil {
		log.Fatalf("authz service: %v", err)
	}
	events := stream.New()
	sponsorSvc, err := sponsorship.NewService(sponsorStore, recorder,
		sponsorship.WithStream(events))
	if err != nil {
		log.Fatalf("sponsorship service: %v", err)
	}

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, authzSvc, sponsorSvc, events)

	addr := os.Getenv("SPONSOR_HTTP_ADDR")
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

	log.Printf("Starting sponsor-api %s on %s", version, srv.Addr)

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

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
