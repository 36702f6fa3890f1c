package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/unfaced/unfaced/internal/config"
)

var identitiesCmd = &cobra.Command{
	Use:   "identities",
	Short: "List enrolled identities",
	RunE:  runIdentities,
}

func init() {
	rootCmd.AddCommand(identitiesCmd)

	identitiesCmd.Flags().Bool("json", false, "Output as JSON")
}

func runIdentities(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	st, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	identities, err := st.ListIdentities(context.Background())
	if err != nil {
		return fmt.Errorf("listing identities: %w", err)
	}

	if mustGetBool(cmd, "json") {
		type row struct {
			ID        string `json:"id"`
			Name      string `json:"name"`
			Phone     string `json:"phone"`
			HasVoice  bool   `json:"has_voice"`
			CreatedAt string `json:"created_at"`
		}
		rows := make([]row, 0, len(identities))
		for i := range identities {
			identity := &identities[i]
			rows = append(rows, row{
				ID:        identity.ID,
				Name:      identity.Name,
				Phone:     identity.Phone,
				HasVoice:  len(identity.VoiceEmbedding) > 0,
				CreatedAt: identity.CreatedAt.Format("2006-01-02 15:04:05"),
			})
		}
		return json.NewEncoder(os.Stdout).Encode(rows)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPHONE\tVOICE\tENROLLED\tID")
	for i := range identities {
		identity := &identities[i]
		voice := "-"
		if len(identity.VoiceEmbedding) > 0 {
			voice = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			identity.Name, identity.Phone, voice,
			identity.CreatedAt.Format("2006-01-02"), identity.ID)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d identities\n", len(identities))
	return nil
}
