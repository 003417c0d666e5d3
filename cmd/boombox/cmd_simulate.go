/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/friendsincode/boombox/internal/config"
	"github.com/friendsincode/boombox/internal/db"
	"github.com/friendsincode/boombox/internal/library"
	"github.com/friendsincode/boombox/internal/sequencer"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate <program.yaml>",
	Short: "Print the rotation a program would produce",
	Long:  "Load a program into a throwaway in-memory catalog and print the next tracks the rotation picks, without touching files or the configured database.",
	Args:  cobra.ExactArgs(1),
	RunE:  runSimulate,
}

var (
	simulateCount   int
	simulateSeed    int64
	simulateProfile string
	simulateLatch   string
)

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().IntVarP(&simulateCount, "count", "n", 20, "Number of tracks to pick")
	simulateCmd.Flags().Int64Var(&simulateSeed, "seed", 1, "Seed for crate sampling, 0 for time seeded")
	simulateCmd.Flags().StringVar(&simulateProfile, "profile", "", "Profile to simulate, defaults to the program's active profile")
	simulateCmd.Flags().StringVar(&simulateLatch, "latch", "", "Latch before the first pick, as collection:count")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	if simulateCount < 1 {
		return fmt.Errorf("--count must be at least 1")
	}
	logger = logger.Level(zerolog.WarnLevel)

	memCfg := *cfg
	memCfg.DBBackend = config.DatabaseSQLite
	memCfg.DBDSN = ":memory:"
	memCfg.Environment = "simulate"

	ctx := cmd.Context()
	database, store, err := openCatalog(ctx, &memCfg, args[0])
	if err != nil {
		return err
	}
	defer db.Close(database)

	eng, err := buildEngine(ctx, &memCfg, store, engineOptions{
		ProfileID: simulateProfile,
		Rand:      randFromSeed(simulateSeed),
	})
	if err != nil {
		return err
	}
	defer eng.box.Close()

	if simulateLatch != "" {
		opts, err := parseLatchFlag(simulateLatch, eng.library.Collection)
		if err != nil {
			return err
		}
		if eng.box.Sequencer().Latch(opts) == nil {
			return fmt.Errorf("latch %q was not created", simulateLatch)
		}
	}

	rows := simulate(ctx, eng, simulateCount)
	renderPlays(cmd.OutOrStdout(), rows)
	return nil
}

type simulatedPlay struct {
	Track *library.Track
	Mode  string
}

// simulate picks count tracks, starting each one as soon as it is queued.
func simulate(ctx context.Context, eng *engine, count int) []simulatedPlay {
	plays := make([]simulatedPlay, 0, count)
	for len(plays) < count {
		track := eng.box.Prepare(ctx, nil)
		if track == nil {
			break
		}
		play := simulatedPlay{Track: track, Mode: string(eng.box.State().Sequence.Mode)}
		// Pop clears the sequencing of the track going off air.
		if seq := track.Sequencing; seq != nil {
			clone := *seq
			play.Track = track.WithSequencing(clone)
		}
		plays = append(plays, play)

		if started, ok := eng.queue.Pop(); ok {
			eng.box.TrackStarted(ctx, started)
		}
	}
	return plays
}

func parseLatchFlag(raw string, lookup func(string) (*library.Collection, bool)) (*sequencer.LatchOptions, error) {
	id, n, ok := strings.Cut(raw, ":")
	if !ok || id == "" {
		return nil, fmt.Errorf("--latch must be collection:count, got %q", raw)
	}
	increase, err := strconv.Atoi(n)
	if err != nil || increase < 1 {
		return nil, fmt.Errorf("--latch count must be a positive integer, got %q", n)
	}
	col, found := lookup(id)
	if !found {
		return nil, fmt.Errorf("--latch: unknown collection %q", id)
	}
	return &sequencer.LatchOptions{Collection: col, Increase: increase}, nil
}

func renderPlays(w io.Writer, plays []simulatedPlay) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"#", "Crate", "Collection", "Mode", "Track", "Artist"})

	for i, p := range plays {
		crateID, mode := "", p.Mode
		if seq := p.Track.Sequencing; seq != nil {
			crateID = seq.CrateID
			if seq.Latch != nil {
				mode = fmt.Sprintf("latch %d/%d", seq.Latch.Order[0], seq.Latch.Order[1])
			} else {
				mode = fmt.Sprintf("%s %d/%d", mode, seq.PlayOrder[0], seq.PlayOrder[1])
			}
		}
		artist := ""
		if tags := p.Track.Tags(); tags != nil {
			artist = tags.Artist
		}
		tw.AppendRow(table.Row{i + 1, crateID, p.Track.CollectionID, mode, p.Track.ID, artist})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
	})
	tw.AppendFooter(table.Row{"", "", "", "", "plays", len(plays)})
	tw.Render()
}
