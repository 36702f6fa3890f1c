package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/unfaced/unfaced/internal/biometric"
	"github.com/unfaced/unfaced/internal/config"
	"github.com/unfaced/unfaced/internal/registry"
)

var matchCmd = &cobra.Command{
	Use:   "match <media-file>",
	Short: "Match a face against the enrolled registry",
	Long: `Extract the face embedding from an image and compare it to every
enrolled identity.

Two result sets are printed: the identities that clear the consent matching
threshold, and a ranked list of the nearest enrolled faces regardless of the
threshold. The ranked lookup goes through the HNSW index.

Examples:
  # Match a photo against the registry
  unfaced match selfie.jpg

  # Stricter threshold, more neighbors
  unfaced match selfie.jpg --threshold 0.6 --limit 10

  # Output as JSON
  unfaced match selfie.jpg --json`,
	Args: cobra.ExactArgs(1),
	RunE: runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().Float64("threshold", 0, "Minimum cosine similarity for a match (0 = configured default)")
	matchCmd.Flags().Int("limit", 5, "Number of nearest neighbors to show")
	matchCmd.Flags().Bool("json", false, "Output as JSON")
}

// matchOutput is the JSON shape of a match run.
type matchOutput struct {
	File      string              `json:"file"`
	Threshold float64             `json:"threshold"`
	Matched   []string            `json:"matched"`
	Nearest   []registry.Neighbor `json:"nearest"`
}

func runMatch(cmd *cobra.Command, args []string) error {
	mediaPath := args[0]
	threshold := mustGetFloat64(cmd, "threshold")
	limit := mustGetInt(cmd, "limit")
	jsonOutput := mustGetBool(cmd, "json")

	cfg := config.Load()
	if threshold == 0 {
		threshold = cfg.Matching.FaceThreshold
	}

	media, err := os.ReadFile(mediaPath)
	if err != nil {
		return fmt.Errorf("reading media file: %w", err)
	}
	if biometric.ClassifyModality(mediaPath, media) != biometric.ModalityImage {
		return fmt.Errorf("%s is not an image", mediaPath)
	}

	st, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	ctx := context.Background()
	client := biometric.NewClient(cfg.Embedding.URL)
	reg := registry.New(st, client, client)
	if err := reg.BuildIndex(ctx); err != nil {
		return fmt.Errorf("building face index: %w", err)
	}

	embedding, err := client.ExtractFaceEmbedding(ctx, media)
	if err != nil {
		return fmt.Errorf("extracting face embedding: %w", err)
	}

	matched, err := reg.MatchFace(ctx, embedding, threshold)
	if err != nil {
		return fmt.Errorf("matching face: %w", err)
	}
	neighbors, err := reg.Nearest(ctx, embedding, limit)
	if err != nil {
		return fmt.Errorf("ranking neighbors: %w", err)
	}

	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(matchOutput{
			File:      mediaPath,
			Threshold: threshold,
			Matched:   matched,
			Nearest:   neighbors,
		})
	}

	if len(matched) == 0 {
		fmt.Printf("No identities above threshold %.2f\n", threshold)
	} else {
		fmt.Printf("Matched %d identities (threshold %.2f):\n", len(matched), threshold)
		for _, name := range matched {
			fmt.Printf("  %s\n", name)
		}
	}

	if len(neighbors) > 0 {
		fmt.Printf("\nNearest enrolled faces:\n")
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tSIMILARITY")
		for _, n := range neighbors {
			fmt.Fprintf(w, "%s\t%.4f\n", n.Name, n.Similarity)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
	return nil
}
