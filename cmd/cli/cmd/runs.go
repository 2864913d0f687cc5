package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent workflow runs",
	Long: `List the run history for the workflow, newest first.

Example:
  leadctl runs
  leadctl runs --limit 50 --offset 50`,
	Run: func(cmd *cobra.Command, args []string) {
		flags := cmd.Flags()
		limit, _ := flags.GetInt("limit")
		offset, _ := flags.GetInt("offset")

		url := viper.GetString("url")
		token := viper.GetString("token")
		workflow := viper.GetString("workflow")

		if token == "" {
			cmd.Println("Operator token not found. Please set it using the --token flag or the LEADRUNNER_TOKEN environment variable")
			return
		}

		client := NewRunnerClient(url, token)
		runs, err := client.ListRuns(workflow, limit, offset)
		if err != nil {
			if apiErr, ok := err.(*APIError); ok {
				cmd.Printf("Request failed with status code: %d\n", apiErr.StatusCode)
			} else {
				cmd.Printf("Failed to list runs: %v\n", err)
			}
			return
		}

		if len(runs) == 0 {
			cmd.Println("No runs found")
			return
		}

		for _, run := range runs {
			rev := "-"
			if run.PublishedRev != nil {
				r := *run.PublishedRev
				if len(r) > 8 {
					r = r[:8]
				}
				rev = r
			}
			cmd.Printf("%s  %-10s %-8s rev=%-9s %s\n",
				run.ID, colorizeStatus(run.Status), run.Trigger, rev,
				run.CreatedAt.Format("2006-01-02 15:04:05"))
		}
	},
}

func init() {
	flags := runsCmd.Flags()
	flags.Int("limit", 20, "Maximum number of runs to return")
	flags.Int("offset", 0, "Number of runs to skip")

	rootCmd.AddCommand(runsCmd)
}
