package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mapdexdb/mapdex/pkg/model"
	"github.com/mapdexdb/mapdex/pkg/schema"
	"github.com/mapdexdb/mapdex/pkg/server"
	"github.com/mapdexdb/mapdex/pkg/storage"
)

func main() {
	// Command line flags
	var (
		port           = flag.String("port", "8080", "Server port")
		dataFile       = flag.String("data-file", "mapdex_data"+storage.FileExtension, "Data file path for persistence")
		backgroundSave = flag.Duration("background-save", 0, "Background save interval (e.g., 5m, 30s). Set to 0 to save after every write.")
		showHelp       = flag.Bool("help", false, "Show help message")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nmapdexd is an embedded document database with map-aware composite indexing.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	var storageOptions []storage.Option
	storageOptions = append(storageOptions, storage.WithDataFile(*dataFile))
	if *backgroundSave > 0 {
		storageOptions = append(storageOptions, storage.WithBackgroundSave(*backgroundSave))
		log.Printf("INFO: Background save enabled: every %v", *backgroundSave)
	}

	srv := server.NewServer(storageOptions...)
	defer srv.Engine().StopBackgroundWorkers()

	log.Printf("INFO: Loading data from: %s", *dataFile)
	srv.InitDB(*dataFile)
	srv.Engine().StartBackgroundWorkers()

	// Built-in demo model: yearly order totals keyed by year string.
	ordersSchema := schema.MustNew(schema.Object(map[string]*schema.Node{
		"customer": schema.String().Indexed(),
		"orderTotal": schema.Map(schema.Object(map[string]*schema.Node{
			"total": schema.Number(),
			"count": schema.Int(),
		})),
	}))
	err := srv.RegisterModel(context.Background(), "orders", ordersSchema, model.IndexSpec{
		Keys: map[string]interface{}{"orderTotal.total": 1},
	})
	if err != nil {
		log.Fatalf("Failed to register orders model: %v", err)
	}

	httpServer := &http.Server{
		Addr:    ":" + *port,
		Handler: srv.Router(),
	}

	go func() {
		log.Printf("Starting mapdexd server on :%s", *port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	log.Printf("INFO: Saving data to: %s", *dataFile)
	srv.SaveDB(*dataFile)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
