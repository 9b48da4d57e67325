// Copyright 2024 The seen Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Command gen-testdata writes a compressed list of pseudo-random candidate
// strings, suitable as input to `seen build` and the large-file tests.
package main

import (
	"bufio"
	"crypto/hmac"
	crand "crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"math/rand"
	"os"

	"github.com/spf13/cobra"

	"github.com/bpowers/seen/internal/source"
)

const (
	prefix    = "pref_"
	suffixLen = 16
	hmacKey   = "d259c7f656caf7f1"
)

var (
	nLines int
	seed   int64
)

var rootCmd = &cobra.Command{
	Use:   "gen-testdata <output.{gz,zst,lz4}>",
	Short: "write a compressed list of synthetic candidates",
	Long:  ``,
	Args:  cobra.ExactArgs(1),
	RunE:  run,
}

func newRand() *rand.Rand {
	if seed != 0 {
		return rand.New(rand.NewSource(seed))
	}
	var seedBytes [8]byte
	_, _ = crand.Read(seedBytes[:])
	return rand.New(rand.NewSource(int64(binary.LittleEndian.Uint64(seedBytes[:]))))
}

// generate writes n lines to w.  Each line is the hex HMAC of a random
// value, so lines are fixed width and effectively unique.
func generate(w io.Writer, rng *rand.Rand, n int) error {
	h := hmac.New(sha256.New, []byte(hmacKey))
	bw := bufio.NewWriter(w)
	for i := 0; i < n; i++ {
		var buf [suffixLen / 2]byte
		if _, err := rng.Read(buf[:]); err != nil {
			return err
		}
		h.Reset()
		_, _ = fmt.Fprintf(h, "%s%x", prefix, buf)
		if _, err := bw.WriteString(hex.EncodeToString(h.Sum(nil))); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func run(cmd *cobra.Command, args []string) error {
	path := args[0]
	format, err := source.FormatFor(path)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	zw, err := source.NewWriter(f, format)
	if err != nil {
		_ = f.Close()
		return err
	}
	if err := generate(zw, newRand(), nLines); err != nil {
		_ = f.Close()
		return fmt.Errorf("generate: %w", err)
	}
	if err := zw.Close(); err != nil {
		_ = f.Close()
		return fmt.Errorf("%s writer: %w", format, err)
	}
	return f.Close()
}

func main() {
	rootCmd.Flags().IntVarP(&nLines, "lines", "n", 1000000, "number of lines to write")
	rootCmd.Flags().Int64Var(&seed, "seed", 0, "random seed (0 picks one)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
