package cmd

import (
	"github.com/spf13/cobra"

	"github.com/abhisek/lessonloop/internal/app"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Pick a lesson and chat with the tutor in the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd)
	},
}

// runChat builds the engine and launches the TUI.
func runChat(cmd *cobra.Command) error {
	id, err := userID(cmd)
	if err != nil {
		return err
	}
	rt, err := newRuntime(cmd, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	return app.Run(app.Options{
		Engine:  rt.engine,
		Catalog: rt.catalog,
		UserID:  id,
	})
}
