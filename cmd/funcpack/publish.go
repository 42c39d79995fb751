package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/artpar/funcpack/internal/archive"
	"github.com/artpar/funcpack/internal/builder"
	"github.com/artpar/funcpack/internal/publish"
)

var errPublish = errors.New("publish failed")

func newPublishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish",
		Short: "Upload the verified archive to S3",
		RunE:  runPublish,
	}
}

func runPublish(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}

	// Never ship an unverified artifact.
	if err := builder.Verify(a.archivePath(), a.manifest.RequiredFiles, a.cfg.Build.StrictVerify, a.logger); err != nil {
		return err
	}

	digest, err := archive.Digest(a.archivePath())
	if err != nil {
		return fmt.Errorf("%w: %v", errPublish, err)
	}

	p, err := publish.NewPublisher(a.cfg.Publish.publishConfig(), a.logger)
	if err != nil {
		return fmt.Errorf("%w: %v", errPublish, err)
	}

	key, err := p.Upload(cmd.Context(), a.archivePath(), digest)
	if err != nil {
		return fmt.Errorf("%w: %v", errPublish, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "published s3://%s/%s\n", a.cfg.Publish.Bucket, key)
	return nil
}
