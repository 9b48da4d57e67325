// Copyright 2024 The seen Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bpowers/seen"
)

// errNoneFound makes the process exit with status 1 without printing an error.
var errNoneFound = errors.New("no queries found")

var searchConfig struct {
	path    string
	queries []string
}

var searchCmd = &cobra.Command{
	Use:   "search -f <index> -q <query> [-q <query>...]",
	Short: "print the queries an index has probably seen",
	Long: `
Prints each query found in the index on its own line, in the order given.
Exits with status 1 when none of the queries are found.
`,
	Args: cobra.NoArgs,
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	found, err := seen.Search(searchConfig.path, searchConfig.queries, seen.WithTableLogger(newLogger()))
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, q := range found {
		fmt.Fprintln(out, q)
	}
	if len(found) == 0 {
		return errNoneFound
	}
	return nil
}
