package cmd

import (
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"leadrunner/internal/phrasebook"
)

var phrasesCmd = &cobra.Command{
	Use:   "phrases",
	Short: "Preview the search phrases the next run would consume",
	Long: `Generate the search phrase queue locally and show what survives after
the manual queue and the used-phrase history in a checkout are applied.
Runs entirely offline; nothing is sent to the API.

Example:
  leadctl phrases --dir ./lead-discovery-checkout`,
	Run: func(cmd *cobra.Command, args []string) {
		dir, _ := cmd.Flags().GetString("dir")

		manual := phrasebook.Book{}
		used := map[string]bool{}
		if dir != "" {
			var err error
			manual, err = phrasebook.Load(filepath.Join(dir, "search_phrases.json"))
			if err != nil {
				cmd.Printf("Failed to read search_phrases.json: %v\n", err)
				return
			}
			used = phrasebook.LoadUsed(filepath.Join(dir, "used_phrases_log.json"))
		}

		fresh := phrasebook.Fresh(manual, used)

		categories := make([]string, 0, len(fresh))
		for category := range fresh {
			categories = append(categories, category)
		}
		sort.Strings(categories)

		total := 0
		for _, category := range categories {
			cmd.Printf("%s%s%s\n", colorBold, category, colorReset)
			for _, phrase := range fresh[category] {
				cmd.Printf("  %s\n", phrase)
				total++
			}
		}
		cmd.Printf("\n%d fresh phrases across %d categories\n", total, len(categories))
	},
}

func init() {
	phrasesCmd.Flags().StringP("dir", "d", "", "Checkout directory holding search_phrases.json and used_phrases_log.json")

	rootCmd.AddCommand(phrasesCmd)
}
