// Copyright 2024 The seen Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/bpowers/seen"
)

var infoPath string

var infoCmd = &cobra.Command{
	Use:   "info -f <index>",
	Short: "describe an index",
	Long:  ``,
	Args:  cobra.NoArgs,
	RunE:  runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	t, err := seen.Open(infoPath, seen.WithTableLogger(newLogger()))
	if err != nil {
		return err
	}
	defer func() {
		_ = t.Close()
	}()
	printInfo(cmd.OutOrStdout(), t.Metadata())
	return nil
}

func printInfo(w io.Writer, m seen.Metadata) {
	fmt.Fprintf(w, "algorithm:      %s (%d-byte keys, %s)\n", m.Algorithm, m.KeyWidth, m.ByteOrder)
	fmt.Fprintf(w, "keys:           %s\n", humanize.Comma(m.KeyCount))
	fmt.Fprintf(w, "sorted:         %t\n", m.Sorted)
	fmt.Fprintf(w, "preamble:       %s\n", humanize.IBytes(uint64(m.CapacityBytes)))
	fmt.Fprintf(w, "index size:     %s\n", humanize.Bytes(uint64(m.CapacityBytes+m.BodySize())))
	fmt.Fprintf(w, "source read:    %s\n", humanize.Bytes(uint64(m.SourceBytesRead)))
	fmt.Fprintf(w, "source on disk: %s\n", humanize.Bytes(uint64(m.SourceCompressedBytes)))
	fmt.Fprintf(w, "false positive: %.3g\n", seen.FalsePositiveRate(m))
}
