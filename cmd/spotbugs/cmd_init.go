// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/NazirMuhammadZafarIqbal/spotbugs/services/analysis/config"
)

// initForce holds the --force flag for the init command.
var initForce bool

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a spotbugs.yaml config interactively",
		Long: `Walks through the configuration options and writes spotbugs.yaml to
the working directory. An existing file is left alone unless --force is
given.`,
		Run: runInitCommand,
	}

	cmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing spotbugs.yaml")

	return cmd
}

func runInitCommand(_ *cobra.Command, _ []string) {
	path := config.DefaultFileName
	if _, err := os.Stat(path); err == nil && !initForce {
		log.Fatalf("%s already exists (use --force to overwrite)", path)
	}

	cfg := config.DefaultConfig()
	port := strconv.Itoa(cfg.Server.Port)
	concurrency := strconv.Itoa(cfg.Scan.Concurrency)
	storeDir := cfg.Store.Path
	logLevel := cfg.Log.Level
	cacheEnabled := cfg.Scan.CacheEnabled

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Server port").
				Description("Port the HTTP service listens on").
				Value(&port).
				Validate(validatePortString),

			huh.NewInput().
				Title("Store directory").
				Description("BadgerDB directory for runs and cache (empty uses ~/.spotbugs/store)").
				Placeholder("~/.spotbugs/store").
				Value(&storeDir),

			huh.NewInput().
				Title("Scan concurrency").
				Description("Parallel workers per scan").
				Value(&concurrency).
				Validate(validateConcurrencyString),

			huh.NewConfirm().
				Title("Enable the class metadata cache?").
				Value(&cacheEnabled),

			huh.NewSelect[string]().
				Title("Log level").
				Options(huh.NewOptions("info", "debug", "warn", "error")...).
				Value(&logLevel),
		),
	)

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Println("Aborted, nothing written.")
			return
		}
		log.Fatalf("init: %v", err)
	}

	// Validators already vetted the numeric inputs.
	cfg.Server.Port, _ = strconv.Atoi(port)
	cfg.Scan.Concurrency, _ = strconv.Atoi(concurrency)
	cfg.Store.Path = storeDir
	cfg.Log.Level = logLevel
	cfg.Scan.CacheEnabled = cacheEnabled

	data, err := renderConfigYAML(cfg)
	if err != nil {
		log.Fatalf("render config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Fatalf("write %s: %v", path, err)
	}

	fmt.Printf("Wrote %s\n", path)
	fmt.Println("Run 'spotbugs scan' to try it out.")
}

// renderConfigYAML marshals cfg with a usage header so the file explains
// itself when opened later.
func renderConfigYAML(cfg *config.Config) ([]byte, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	body, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	header := "# spotbugs configuration.\n" +
		"# Every value can be overridden with a SPOTBUGS_* environment variable.\n"
	return append([]byte(header), body...), nil
}

// validatePortString accepts a TCP port number.
func validatePortString(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("port must be a number between 1 and 65535")
	}
	return nil
}

// validateConcurrencyString accepts a worker count.
func validateConcurrencyString(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 256 {
		return fmt.Errorf("concurrency must be a number between 1 and 256")
	}
	return nil
}
