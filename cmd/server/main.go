package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/crystal-mush/gotinymud/pkg/mudlog"
	"github.com/crystal-mush/gotinymud/pkg/server"
	"github.com/crystal-mush/gotinymud/pkg/world"
)

func main() {
	fs := pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)
	server.AddFlags(fs)
	version := fs.Bool("version", false, "print version and exit")
	fs.Parse(os.Args[1:])

	if *version {
		fmt.Println(server.VersionString())
		return
	}

	cfg, err := server.LoadConfig(fs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	logger := mudlog.New(mudlog.Options{File: cfg.LogFile, Debug: cfg.Debug})
	defer logger.Close()
	log := logger.SugaredLogger

	log.Infof("Welcome to %s", server.VersionString())

	var w *world.World
	if cfg.WorldFile != "" {
		w, err = world.Load(cfg.WorldFile)
		if err != nil {
			log.Fatalf("Loading world: %v", err)
		}
		log.Infof("Loaded world from %s", cfg.WorldFile)
	} else {
		log.Infof("No world file configured, using the built-in world")
	}

	srv, err := server.NewServer(cfg, w, log)
	if err != nil {
		log.Fatalf("Server setup: %v", err)
	}
	srv.Debug = logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		log.Errorf("Server error: %v", err)
		logger.Close()
		os.Exit(1)
	}
}
