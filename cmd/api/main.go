package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"boekie.app/internal/access"
	"boekie.app/internal/finance"
	"boekie.app/internal/httpapi"
	"boekie.app/internal/obs"
	"boekie.app/internal/session"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	var (
		db           *sql.DB
		accessStore  access.Store
		sessionStore session.Store
		financeStore finance.Store
	)
	if dsn := os.Getenv("BOEKIE_PG_DSN"); dsn != "" {
		var err error
		db, err = sql.Open("pgx", dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
		accessStore = access.NewPGStore(db)
		sessionStore = session.NewPGStore(db)
		financeStore = finance.NewPGStore(db)
	} else {
		log.Println("BOEKIE_PG_DSN not set, using in-memory stores")
		accessStore = access.NewMemStore()
		sessionStore = session.NewMemStore()
		financeStore = finance.NewMemStore()
	}

	accessSvc, err := access.NewService(accessStore)
	if err != nil {
		log.Fatalf("access service: %v", err)
	}
	financeSvc, err := finance.NewService(financeStore)
	if err != nil {
		log.Fatalf("finance service: %v", err)
	}

	sessions, err := session.NewManager(sessionStore, accessSvc, sessionKey())
	if err != nil {
		log.Fatalf("session manager: %v", err)
	}

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, sessions, accessSvc, financeSvc)

	addr := os.Getenv("BOEKIE_ADDR")
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

	log.Printf("Starting boekie-api %s on %s", version, srv.Addr)

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

// sessionKey reads the cookie signing key from the environment. Without
// one, a random key is generated, which invalidates sessions on restart.
func sessionKey() []byte {
	if key := os.Getenv("BOEKIE_SESSION_KEY"); key != "" {
		if len(key) < 32 {
			log.Fatal("BOEKIE_SESSION_KEY must be at least 32 bytes")
		}
		return []byte(key)
	}
	log.Println("BOEKIE_SESSION_KEY not set, generating an ephemeral key")
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		log.Fatalf("generate session key: %v", err)
	}
	return key
}
