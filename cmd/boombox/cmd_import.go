/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/friendsincode/boombox/internal/catalog"
	"github.com/friendsincode/boombox/internal/db"
)

var importCmd = &cobra.Command{
	Use:   "import <program.yaml>",
	Short: "Import a program file into the catalog",
	Long:  "Write the collections, tracks, profiles and crates of a program file into the database. Rows with the same ids are replaced.",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

var (
	importDryRun   bool
	importActivate string
)

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Validate the program without writing it")
	importCmd.Flags().StringVar(&importActivate, "activate", "", "Profile to mark active after the import")
}

func runImport(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	program, err := catalog.LoadProgram(args[0])
	if err != nil {
		return err
	}
	tracks := 0
	for _, c := range program.Collections {
		tracks += len(c.Tracks)
	}
	logger.Info().
		Str("file", args[0]).
		Int("collections", len(program.Collections)).
		Int("tracks", tracks).
		Int("profiles", len(program.Profiles)).
		Msg("program is valid")
	if importDryRun {
		return nil
	}

	ctx := cmd.Context()
	database, store, err := openCatalog(ctx, cfg, "")
	if err != nil {
		return err
	}
	defer db.Close(database)

	if err := store.Import(ctx, program); err != nil {
		return err
	}
	if importActivate != "" {
		if err := store.SetActiveProfile(ctx, importActivate); err != nil {
			return fmt.Errorf("activate %s: %w", importActivate, err)
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d collections, %d tracks and %d profiles\n",
		len(program.Collections), tracks, len(program.Profiles))
	return nil
}
