package main

import (
	"context"
	"database/sql"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"lekha.org/internal/auth"
	"lekha.org/internal/blob"
	"lekha.org/internal/config"
	"lekha.org/internal/httpapi"
	"lekha.org/internal/infer"
	"lekha.org/internal/obs"
	"lekha.org/internal/registry"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)

	var db *sql.DB
	if cfg.PostgresDSN != "" {
		db, err = sql.Open("pgx", cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	var users auth.UserStore
	var artifacts registry.Store
	if db != nil {
		users = auth.NewPGUserStore(db)
		artifacts = registry.NewPGStore(db)
	} else {
		log.Printf("LEKHA_PG_DSN not set, using in-memory stores")
		users = auth.NewInMemoryUsers()
		artifacts = registry.NewInMemory()
	}

	blobs, err := blob.NewFS(cfg.BlobDir)
	if err != nil {
		log.Fatalf("blob store: %v", err)
	}

	userSvc := auth.NewService(users)
	tokens, err := auth.NewTokens(cfg.AuthSecret,
		auth.WithIssuer(cfg.Issuer),
		auth.WithAccessTTL(cfg.AccessTTL),
		auth.WithRefreshTTL(cfg.RefreshTTL),
	)
	if err != nil {
		log.Fatalf("token service: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := userSvc.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		log.Fatalf("bootstrap admin: %v", err)
	}

	reg := registry.NewService(artifacts, blobs)
	engine := infer.NewEngine(reg)

	probe := httpapi.ReadyProbe{DB: db}
	api := httpapi.New(userSvc, tokens, reg, engine, probe, httpapi.Options{
		Version:      version,
		CookieSecure: cfg.CookieSecure,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting lekha-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	var grpcSrv *httpapi.GRPCServer
	if cfg.GRPCAddr != "" {
		grpcSrv = httpapi.NewGRPCServer(probe)
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			log.Fatalf("grpc listen: %v", err)
		}
		go grpcSrv.WatchReadiness(ctx, 10*time.Second)
		go func() {
			log.Printf("Starting gRPC health service on %s", cfg.GRPCAddr)
			if err := grpcSrv.Server().Serve(lis); err != nil {
				log.Fatalf("grpc serve: %v", err)
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	if grpcSrv != nil {
		grpcSrv.Server().GracefulStop()
	}
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
