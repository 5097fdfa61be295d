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
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/x-stp/rxavail/internal/candidates"
	"github.com/x-stp/rxavail/internal/checkpoint"
)

// Output formats of the status command.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// Flags specific to the status command
var statusFormat string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the checkpoint of a registry",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVarP(&statusFormat, "format", "f", formatTable, "Output format: table, json or yaml")
}

// statusReport is what the status command prints.
type statusReport struct {
	Registry         string    `json:"registry" yaml:"registry"`
	Backend          string    `json:"backend" yaml:"backend"`
	Candidates       int       `json:"candidates,omitempty" yaml:"candidates,omitempty"`
	LastIndex        int64     `json:"last_index" yaml:"last_index"`
	Checked          int64     `json:"checked" yaml:"checked"`
	Available        int64     `json:"available" yaml:"available"`
	Taken            int64     `json:"taken" yaml:"taken"`
	Errors           int64     `json:"errors" yaml:"errors"`
	AvailabilityRate float64   `json:"availability_rate" yaml:"availability_rate"`
	StartedAt        time.Time `json:"started_at" yaml:"started_at"`
	UpdatedAt        time.Time `json:"updated_at" yaml:"updated_at"`
}

func newStatusReport(registry, backend string, candidates int, st checkpoint.State) statusReport {
	return statusReport{
		Registry:         registry,
		Backend:          backend,
		Candidates:       candidates,
		LastIndex:        st.LastIndex,
		Checked:          st.Checked,
		Available:        st.Available,
		Taken:            st.Taken,
		Errors:           st.Errors,
		AvailabilityRate: st.AvailabilityRate(),
		StartedAt:        st.StartedAt,
		UpdatedAt:        st.UpdatedAt,
	}
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	store, closeStore, err := openCheckpointStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	st, err := store.Load(ctx, cfg.Registry)
	if err != nil {
		return err
	}

	// The vocabulary is optional here; without it progress is shown without a total.
	total := 0
	if source, err := candidates.LoadFile(cfg.Patterns); err == nil {
		total = source.Len()
	}

	return renderStatus(cmd.OutOrStdout(), statusFormat, newStatusReport(cfg.Registry, store.Backend(), total, st))
}

func renderStatus(w io.Writer, format string, rep statusReport) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rep); err != nil {
			return err
		}
		return enc.Close()
	case formatTable:
	default:
		return fmt.Errorf("unknown format %q (want table, json or yaml)", format)
	}

	progress := humanize.Comma(rep.LastIndex)
	if rep.Candidates > 0 {
		progress = fmt.Sprintf("%s / %s (%.1f%%)", humanize.Comma(rep.LastIndex), humanize.Comma(int64(rep.Candidates)),
			float64(rep.LastIndex)/float64(rep.Candidates)*100)
	}
	updated := "never"
	if !rep.UpdatedAt.IsZero() {
		updated = fmt.Sprintf("%s (%s)", rep.UpdatedAt.Format(time.RFC3339), humanize.Time(rep.UpdatedAt))
	}

	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.SetTitle(fmt.Sprintf(".%s (%s checkpoint)", rep.Registry, rep.Backend))
	tbl.AppendRows([]table.Row{
		{"Progress", progress},
		{"Checked", humanize.Comma(rep.Checked)},
		{"Available", humanize.Comma(rep.Available)},
		{"Taken", humanize.Comma(rep.Taken)},
		{"Errors", humanize.Comma(rep.Errors)},
		{"Availability rate", fmt.Sprintf("%.1f%%", rep.AvailabilityRate)},
		{"Started", rep.StartedAt.Format(time.RFC3339)},
		{"Updated", updated},
	})
	tbl.Render()
	return nil
}
