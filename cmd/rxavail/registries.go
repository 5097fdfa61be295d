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
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var registriesCmd = &cobra.Command{
	Use:   "registries",
	Short: "List the configured RDAP registries",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		regs := cfg.RegistryTable()

		tbl := table.NewWriter()
		tbl.SetOutputMirror(cmd.OutOrStdout())
		tbl.SetStyle(table.StyleLight)
		tbl.AppendHeader(table.Row{"Registry", "Endpoint"})
		for _, name := range regs.Names() {
			tbl.AppendRow(table.Row{name, regs[name]})
		}
		tbl.Render()
		return nil
	},
}
