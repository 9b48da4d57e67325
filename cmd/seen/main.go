// Copyright 2024 The seen Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Command seen builds and queries "seen before?" indexes.
package main

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "seen [command] (flags)",
	Short: "build and query compact \"seen before?\" indexes",
	Long:  ``,
	// errors are printed by main, so errNoneFound can stay quiet
	SilenceErrors: true,
	SilenceUsage:  true,
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func main() {
	log.SetFlags(0)

	cobra.EnableCommandSorting = false
	rootCmd.AddCommand(
		buildCmd,
		searchCmd,
		infoCmd,
	)

	for _, cmd := range []*cobra.Command{buildCmd, searchCmd, infoCmd} {
		cmd.Flags().BoolVarP(
			&verbose, "verbose", "v", false, "enable debug logging")
	}

	buildCmd.Flags().StringVarP(
		&buildConfig.src, "source", "s", "", "compressed candidate list (.gz, .zst or .lz4)")
	buildCmd.Flags().StringVarP(
		&buildConfig.dst, "output", "o", "", "path to write the index to")
	buildCmd.Flags().StringVarP(
		&buildConfig.algo, "algorithm", "a", "xxhash64", "hash algorithm")
	buildCmd.Flags().IntVar(
		&buildConfig.minLineLen, "min-line-len", buildConfig.minLineLen,
		"shortest line, terminator included, that is indexed")
	buildCmd.Flags().IntVar(
		&buildConfig.batchSize, "batch-size", buildConfig.batchSize,
		"number of keys buffered between flushes")
	buildCmd.Flags().Int64Var(
		&buildConfig.capacity, "preamble-capacity", buildConfig.capacity,
		"bytes reserved for index metadata")
	buildCmd.Flags().BoolVar(
		&buildConfig.bigEndian, "big-endian", false, "store keys big-endian")
	_ = buildCmd.MarkFlagRequired("source")
	_ = buildCmd.MarkFlagRequired("output")

	searchCmd.Flags().StringVarP(
		&searchConfig.path, "file", "f", "", "index to search")
	searchCmd.Flags().StringArrayVarP(
		&searchConfig.queries, "query", "q", nil, "string to look up (repeatable)")
	_ = searchCmd.MarkFlagRequired("file")

	infoCmd.Flags().StringVarP(
		&infoPath, "file", "f", "", "index to describe")
	_ = infoCmd.MarkFlagRequired("file")

	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errNoneFound) {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}
