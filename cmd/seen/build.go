// Copyright 2024 The seen Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/bpowers/seen"
)

var buildConfig = struct {
	src        string
	dst        string
	algo       string
	minLineLen int
	batchSize  int
	capacity   int64
	bigEndian  bool
}{
	minLineLen: seen.DefaultMinLineLength,
	batchSize:  seen.DefaultBatchSize,
	capacity:   seen.DefaultPreambleCapacity,
}

var buildCmd = &cobra.Command{
	Use:   "build -s <list> -o <index>",
	Short: "build an index from a compressed candidate list",
	Long:  ``,
	Args:  cobra.NoArgs,
	RunE:  runBuild,
}

func runBuild(cmd *cobra.Command, args []string) error {
	algo, err := seen.ParseAlgorithm(buildConfig.algo)
	if err != nil {
		return err
	}

	order := seen.LittleEndian
	if buildConfig.bigEndian {
		order = seen.BigEndian
	}

	stats, err := seen.Build(buildConfig.src, buildConfig.dst, algo,
		seen.WithBuildLogger(newLogger()),
		seen.WithMinLineLength(buildConfig.minLineLen),
		seen.WithBatchSize(buildConfig.batchSize),
		seen.WithPreambleCapacity(buildConfig.capacity),
		seen.WithByteOrder(order),
	)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "keys:       %s\n", humanize.Comma(stats.KeyCount))
	fmt.Fprintf(out, "skipped:    %s\n", humanize.Comma(stats.SkippedLines))
	fmt.Fprintf(out, "duplicates: %s\n", humanize.Comma(stats.DuplicateKeys))
	fmt.Fprintf(out, "read:       %s (%s compressed)\n",
		humanize.Bytes(uint64(stats.SourceBytesRead)), humanize.Bytes(uint64(stats.SourceCompressedBytes)))
	fmt.Fprintf(out, "index:      %s\n", humanize.Bytes(uint64(stats.ArtifactBytes)))
	fmt.Fprintf(out, "took:       %s\n", stats.Duration)
	return nil
}
