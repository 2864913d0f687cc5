package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "leadctl",
	Short: "Leadctl is a command line tool for operating the leadrunner workflow platform",
	Long: `leadctl is the command-line interface for leadrunner, the scheduled
lead-discovery workflow runner.

The runner executes the discovery workflow every five hours on its own;
leadctl is the manual override and the observation window:

  Trigger a run outside the schedule:
    leadctl dispatch

  List recent runs:
    leadctl runs

  Check a run:
    leadctl status <run-id>

  Stream logs:
    leadctl logs <run-id> --follow

  Inspect failure diagnostics:
    leadctl artifacts <run-id>
    leadctl fetch <artifact-id> --output lead_discovery.log

  Preview the phrases a run would consume, without touching the API:
    leadctl phrases --dir ./checkout

Configuration:
  Set the API endpoint and credentials via environment variables or a config file:
    LEADRUNNER_URL      API endpoint (default: http://localhost:6161)
    LEADRUNNER_TOKEN    Operator token for authentication`,
}

func Execute() error {
	return rootCmd.Execute()
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Search config in home directory with name ".leadctl"
		viper.AddConfigPath(home)
		viper.SetConfigName(".leadctl")
		viper.SetConfigType("yaml")
	}

	// Read environment variables that match "LEADRUNNER_VARNAME"
	viper.SetEnvPrefix("LEADRUNNER")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.leadctl.yaml)")

	rootCmd.PersistentFlags().String("url", "http://localhost:6161", "Leadrunner Controller URL")
	viper.BindPFlag("url", rootCmd.PersistentFlags().Lookup("url"))

	rootCmd.PersistentFlags().StringP("token", "t", "", "Operator token for authentication")
	viper.BindPFlag("token", rootCmd.PersistentFlags().Lookup("token"))

	rootCmd.PersistentFlags().StringP("workflow", "w", "lead-discovery", "Workflow name")
	viper.BindPFlag("workflow", rootCmd.PersistentFlags().Lookup("workflow"))
}
