package cmd

import (
	"github.com/spf13/cobra"

	"github.com/abhisek/lessonloop/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "lessonloop",
	Short: "Conversational tutor for structured lessons",
	Long: "lessonloop runs a tutoring conversation per learner and lesson: it explains, " +
		"sets exercises and quiz questions, and grades the answers.",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides LESSONLOOP_DB)")
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default $XDG_CONFIG_HOME/lessonloop/config.yaml)")
	rootCmd.PersistentFlags().StringP("user", "u", "", "Learner id (defaults to $USER)")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(turnCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(versionCmd)
}

// resolveDBPath returns the database path using --db flag (highest priority),
// then the configured path, then the default XDG path.
func resolveDBPath(cmd *cobra.Command, configured string) (string, error) {
	p, _ := cmd.Flags().GetString("db")
	if p == "" {
		p = configured
	}
	if p != "" {
		return p, store.EnsureDir(p)
	}
	return store.DefaultDBPath()
}
