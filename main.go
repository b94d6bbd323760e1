package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	addr := flag.String("addr", "", "HTTP listen address (default :8080)")
	dbPath := flag.String("db", "", "Path to SQLite database (default rooms.db)")
	clientDir := flag.String("client", "", "Path to client directory (default ./client)")
	flag.Parse()

	cfg := LoadConfig(*addr, *dbPath, *clientDir)

	db, err := OpenDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	hub := NewHub(db)
	go hub.Run()

	engine := NewEngine(hub.store)
	go engine.Run()

	mux := SetupRoutes(hub, cfg.ClientDir)

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	server := &http.Server{Addr: cfg.Addr, Handler: mux}

	go func() {
		log.Printf("Server starting on %s", cfg.Addr)
		log.Printf("Serving client files from %s", cfg.ClientDir)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down...")
	engine.Stop()
	hub.metrics.Stop()
	server.Close()
}
