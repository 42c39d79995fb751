package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/artpar/funcpack/internal/builder"
)

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Verify an existing archive",
		Long: `Confirm the archive exists and contains the files the manifest
requires, without rebuilding it.`,
		RunE: runVerify,
	}
}

func runVerify(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}

	if err := builder.Verify(a.archivePath(), a.manifest.RequiredFiles, a.cfg.Build.StrictVerify, a.logger); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "archive %s verified\n", a.archivePath())
	return nil
}
