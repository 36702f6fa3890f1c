package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "unfaced",
	Short: "Consent-gated media sharing backend",
	Long: `Unfaced holds uploaded media until everyone recognized in it has agreed
to its publication. People enroll with a reference photo; uploads are matched
against the enrolled faces and stay pending until every match approves. Any
single match can veto.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
