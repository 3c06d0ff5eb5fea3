package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/lessonloop/internal/lesson"
	"github.com/abhisek/lessonloop/internal/tutor"
)

var turnCmd = &cobra.Command{
	Use:   "turn [message]",
	Short: "Send one learner message and print the tutor's reply",
	Long: "Send one learner message and print the tutor's reply.\n\n" +
		"With --exercise or --assessment a new practice item is generated instead.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := lessonKey(cmd)
		if err != nil {
			return err
		}
		exercise, _ := cmd.Flags().GetBool("exercise")
		assessment, _ := cmd.Flags().GetBool("assessment")
		asJSON, _ := cmd.Flags().GetBool("json")
		if exercise && assessment {
			return fmt.Errorf("--exercise and --assessment are mutually exclusive")
		}

		rt, err := newRuntime(cmd, false)
		if err != nil {
			return err
		}
		defer rt.Close()

		ctx := cmd.Context()
		var res *tutor.TurnResult
		switch {
		case exercise:
			res, err = rt.engine.GenerateExercise(ctx, key)
		case assessment:
			res, err = rt.engine.GenerateAssessmentQuestion(ctx, key)
		default:
			text := ""
			if len(args) == 1 {
				text = args[0]
			}
			res, err = rt.engine.ProcessTurn(ctx, key, text)
		}
		if err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		printMessages(res.Messages)
		sum := res.Session.Summary()
		fmt.Printf("\n[%s · %s · %d/%d correct · %s]\n",
			res.Session.Status, res.Session.Mode, sum.Correct, sum.Attempts, sum.Level)
		return nil
	},
}

func printMessages(msgs []lesson.Message) {
	for i, m := range msgs {
		if i > 0 {
			fmt.Println()
		}
		who := "tutor"
		if m.Role == lesson.RoleUser {
			who = "you"
		}
		fmt.Printf("%s (%s):\n%s\n", who, m.Kind, strings.TrimSpace(m.Content))
	}
}

func init() {
	addLessonFlags(turnCmd)
	turnCmd.Flags().Bool("exercise", false, "Generate a practice exercise")
	turnCmd.Flags().Bool("assessment", false, "Generate a quiz question")
	turnCmd.Flags().Bool("json", false, "Print the full turn result as JSON")
}
