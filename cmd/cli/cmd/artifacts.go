package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var artifactsCmd = &cobra.Command{
	Use:   "artifacts [run_id]",
	Short: "List failure diagnostics for a run",
	Long: `List the artifacts collected for a run. A failed run stores its
workflow log; use 'leadctl fetch' to download one.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runID := args[0]

		url := viper.GetString("url")
		token := viper.GetString("token")

		if token == "" {
			cmd.Println("Operator token not found. Please set it using the --token flag or the LEADRUNNER_TOKEN environment variable")
			return
		}

		client := NewRunnerClient(url, token)
		artifacts, err := client.ListArtifacts(runID)
		if err != nil {
			if apiErr, ok := err.(*APIError); ok {
				cmd.Printf("Request failed with status code: %d\n", apiErr.StatusCode)
			} else {
				cmd.Printf("Failed to list artifacts: %v\n", err)
			}
			return
		}

		if len(artifacts) == 0 {
			cmd.Println("No artifacts found")
			return
		}

		for _, a := range artifacts {
			cmd.Printf("%s  %-24s %8d bytes  sha256:%s\n", a.ID, a.Name, a.SizeBytes, a.Digest)
		}
	},
}

var fetchCmd = &cobra.Command{
	Use:   "fetch [artifact_id]",
	Short: "Download an artifact",
	Long: `Download a stored artifact by ID. Writes to stdout unless --output is given.

Example:
  leadctl fetch 3f1c... --output lead_discovery.log`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		artifactID := args[0]
		output, _ := cmd.Flags().GetString("output")

		url := viper.GetString("url")
		token := viper.GetString("token")

		if token == "" {
			cmd.Println("Operator token not found. Please set it using the --token flag or the LEADRUNNER_TOKEN environment variable")
			return
		}

		client := NewRunnerClient(url, token)

		if output == "" {
			if _, err := client.DownloadArtifact(artifactID, cmd.OutOrStdout()); err != nil {
				cmd.Printf("Failed to download artifact: %v\n", err)
			}
			return
		}

		f, err := os.Create(output)
		if err != nil {
			cmd.Printf("Failed to create %s: %v\n", output, err)
			return
		}
		defer f.Close()

		n, err := client.DownloadArtifact(artifactID, f)
		if err != nil {
			cmd.Printf("Failed to download artifact: %v\n", err)
			return
		}
		cmd.Printf("✓ Wrote %d bytes to %s\n", n, output)
	},
}

func init() {
	fetchCmd.Flags().StringP("output", "o", "", "Write the artifact to this file instead of stdout")

	rootCmd.AddCommand(artifactsCmd)
	rootCmd.AddCommand(fetchCmd)
}
