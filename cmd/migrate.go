package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/unfaced/unfaced/internal/config"
	"github.com/unfaced/unfaced/internal/store"
	"github.com/unfaced/unfaced/internal/store/jsonfile"
	"github.com/unfaced/unfaced/internal/store/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy a JSON file store into PostgreSQL",
	Long: `Copy every identity and submission from the JSON file backend into the
PostgreSQL backend named by DATABASE_URL. Records that already exist in the
target are skipped, so the command can be re-run safely.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().String("data-dir", "", "Source data directory (defaults to DATA_DIR)")
}

func migrationBar(count int, description, unit string) *progressbar.ProgressBar {
	return progressbar.NewOptions(count,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString(unit),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}
	dataDir := mustGetString(cmd, "data-dir")
	if dataDir == "" {
		dataDir = cfg.Storage.DataDir
	}

	source, err := jsonfile.Open(dataDir)
	if err != nil {
		return fmt.Errorf("opening source store: %w", err)
	}

	target, err := postgres.Open(&cfg.Database)
	if err != nil {
		return fmt.Errorf("opening target store: %w", err)
	}
	defer target.Close()

	identities, err := source.ListIdentities(ctx)
	if err != nil {
		return fmt.Errorf("reading identities: %w", err)
	}
	submissions, err := source.ListSubmissions(ctx)
	if err != nil {
		return fmt.Errorf("reading submissions: %w", err)
	}

	var skipped int

	bar := migrationBar(len(identities), "Migrating identities", "identities")
	for i := range identities {
		if err := target.CreateIdentity(ctx, &identities[i]); err != nil {
			if errors.Is(err, store.ErrDuplicateIdentity) {
				skipped++
			} else {
				return fmt.Errorf("migrating identity %s: %w", identities[i].ID, err)
			}
		}
		bar.Add(1)
	}
	fmt.Println()

	bar = migrationBar(len(submissions), "Migrating submissions", "submissions")
	for i := range submissions {
		if err := target.CreateSubmission(ctx, &submissions[i]); err != nil {
			// A re-run hits the primary key; treat it as already migrated.
			if _, getErr := target.GetSubmission(ctx, submissions[i].ID); getErr == nil {
				skipped++
			} else {
				return fmt.Errorf("migrating submission %s: %w", submissions[i].ID, err)
			}
		}
		bar.Add(1)
	}
	fmt.Println()

	fmt.Printf("Migrated %d identities and %d submissions (%d already present)\n",
		len(identities), len(submissions), skipped)
	return nil
}
