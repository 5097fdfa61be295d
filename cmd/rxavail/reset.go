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
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/x-stp/rxavail/internal/lock"
)

// Flags specific to the reset command
var resetConfirmed bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete the checkpoint of a registry so the next check starts over",
	Long: `Deletes the registry's checkpoint. Result partitions are left untouched;
move them away first if the next run should not append to them.`,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().BoolVar(&resetConfirmed, "yes", false, "Confirm the reset")
}

func runReset(cmd *cobra.Command, _ []string) error {
	if !resetConfirmed {
		return errors.New("refusing to reset without --yes")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	scopeLock, err := lock.Acquire(cfg.OutputDir, cfg.Registry)
	if err != nil {
		return err
	}
	defer scopeLock.Release()

	store, closeStore, err := openCheckpointStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.Reset(ctx, cfg.Registry); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Reset %s checkpoint for .%s\n", store.Backend(), cfg.Registry)
	return nil
}
