package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove the staging directory and archive",
		RunE:  runClean,
	}
}

func runClean(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}

	if err := os.RemoveAll(a.stagingPath()); err != nil {
		return fmt.Errorf("remove staging directory %s: %w", a.stagingPath(), err)
	}
	if err := os.Remove(a.archivePath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove archive %s: %w", a.archivePath(), err)
	}

	a.logger.Info("cleaned", "staging", a.stagingPath(), "archive", a.archivePath())
	return nil
}
