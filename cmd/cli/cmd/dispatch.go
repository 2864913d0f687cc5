package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Trigger a workflow run outside the schedule",
	Long: `Request a manual run of the workflow. The run is queued and picked up
by the runner; it takes the exact same path as a scheduled run. If a run
is already in progress the new one is recorded as skipped.

Example:
  leadctl dispatch
  leadctl dispatch --workflow lead-discovery`,
	Run: func(cmd *cobra.Command, args []string) {
		url := viper.GetString("url")
		token := viper.GetString("token")
		workflow := viper.GetString("workflow")

		if token == "" {
			cmd.Println("Operator token not found. Please set it using the --token flag or the LEADRUNNER_TOKEN environment variable")
			return
		}

		client := NewRunnerClient(url, token)

		result, err := client.Dispatch(workflow)
		if err != nil {
			if apiErr, ok := err.(*APIError); ok {
				cmd.Printf("Dispatch failed (%d): %s\n", apiErr.StatusCode, apiErr.Message)
			} else {
				cmd.Printf("Dispatch failed: %v\n", err)
			}
			return
		}

		cmd.Printf("✓ Run dispatched!\nWorkflow: %s\nDispatch ID: %d\n", result.Workflow, result.DispatchID)
	},
}

func init() {
	rootCmd.AddCommand(dispatchCmd)
}
