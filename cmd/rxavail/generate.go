package main

/*
rxavail — resumable RDAP domain availability checker in Go
Copyright (C) 2025  Pepijn van der Stap <rxtls@vanderstap.info>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/x-stp/rxavail/internal/candidates"
	"github.com/x-stp/rxavail/internal/util"
)

// Flags specific to the generate command
var generateFamilies []string

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate the pronounceable candidate vocabulary",
	Long: `Writes every pronounceable word of the CVCV, CVCVC, CCVCV, CVCCV, CVCVCV and
CCVCVC families, deduplicated and sorted, one per line, to --patterns. The file is
replaced atomically. Regenerating changes candidate indices, so reset checkpoints
that were built against another vocabulary.`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringSliceVar(&generateFamilies, "family", nil,
		"Only generate these families (default: all), e.g. --family CVCV,CVCVC")
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := consoleLogger(cfg)

	families, err := selectFamilies(generateFamilies)
	if err != nil {
		return err
	}

	vocab := candidates.Generate(families)
	for _, fc := range vocab.Counts {
		logger.Info("Generated family", "family", fc.Family, "words", humanize.Comma(int64(fc.Count)))
	}

	err = util.WriteAtomic(cfg.Patterns, 0644, func(w io.Writer) error {
		_, err := vocab.WriteTo(w)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", cfg.Patterns, err)
	}

	source := candidates.NewSliceSource(vocab.Words)
	logger.Info("Wrote vocabulary", slog.String("path", cfg.Patterns),
		slog.String("words", humanize.Comma(int64(len(vocab.Words)))),
		slog.String("fingerprint", fmt.Sprintf("%016x", source.Fingerprint())))
	return nil
}

// selectFamilies resolves family names; no names selects every family.
func selectFamilies(names []string) ([]candidates.Family, error) {
	if len(names) == 0 {
		return candidates.Families, nil
	}
	out := make([]candidates.Family, 0, len(names))
	for _, name := range names {
		f, ok := candidates.FamilyByName(strings.TrimSpace(name))
		if !ok {
			known := make([]string, len(candidates.Families))
			for i, f := range candidates.Families {
				known[i] = f.Name
			}
			return nil, fmt.Errorf("unknown family %q (known: %s)", name, strings.Join(known, ", "))
		}
		out = append(out, f)
	}
	return out, nil
}
