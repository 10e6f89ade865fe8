// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

//go:build linux

// Package main implements the aprs-relay service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/wneessen/aprs-relay/internal/config"
	"github.com/wneessen/aprs-relay/internal/logger"
	"github.com/wneessen/aprs-relay/internal/service"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGABRT, os.Interrupt)
	defer cancel()

	// Initialize Logger
	log := logger.New(slog.LevelError)

	var confPath, rosterPath string
	var showVersion bool
	flags := pflag.NewFlagSet("aprs-relay", pflag.ContinueOnError)
	flags.StringVarP(&confPath, "config", "c", "", "path to the config file")
	flags.StringVarP(&rosterPath, "roster", "r", "", "path to the roster file (overrides the config)")
	flags.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Error("failed to parse command line flags", logger.Err(err))
		os.Exit(1)
	}
	if showVersion {
		fmt.Printf("aprs-relay %s (commit: %s, built: %s)\n", version, commit, date)
		return
	}

	conf, err := loadConfig(confPath)
	if err != nil {
		log.Error("failed to load config", logger.Err(err))
		os.Exit(1)
	}
	if rosterPath != "" {
		conf.Roster.File = rosterPath
	}

	log = logger.New(conf.LogLevel)

	// Initialize the service
	serv, err := service.New(conf, log)
	if err != nil {
		log.Error("failed to initialize aprs-relay service", logger.Err(err))
		os.Exit(1)
	}
	go serv.HandleStatsSignal(ctx, syscall.SIGUSR1)

	// Start the service loop
	log.Info("starting aprs-relay service", slog.String("version", version),
		slog.String("commit", commit), slog.String("date", date))
	if err = serv.Run(ctx); err != nil {
		log.Error("aprs-relay service failed", logger.Err(err))
		os.Exit(1)
	}
	log.Info("shutting down aprs-relay service")
}

// loadConfig reads the config file given on the command line, the config file in the default
// location or, if neither exists, defaults and environment only.
func loadConfig(confPath string) (*config.Config, error) {
	if confPath != "" {
		return config.NewFromFile(filepath.Dir(confPath), filepath.Base(confPath))
	}
	if path, file := findConfigFile(); path != "" && file != "" {
		return config.NewFromFile(path, file)
	}
	return config.New()
}

func findConfigFile() (string, string) {
	homedir, err := os.UserHomeDir()
	if err != nil {
		return "", ""
	}
	exts := []string{"toml", "yaml", "yml", "json"}
	for _, ext := range exts {
		path := filepath.Join(homedir, ".config", "aprs-relay", "config."+ext)
		if _, err = os.Stat(path); err == nil {
			return filepath.Dir(path), filepath.Base(path)
		}
	}
	return "", ""
}
