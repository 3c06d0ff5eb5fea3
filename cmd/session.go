package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/lessonloop/internal/lesson"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect and manage learner sessions",
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the learner's sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := userID(cmd)
		if err != nil {
			return err
		}
		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		sessions, err := s.SessionRepo().List(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		if len(sessions) == 0 {
			fmt.Println("No sessions found.")
			return nil
		}

		fmt.Printf("%-5s  %-18s  %-28s  %-12s  %-16s  %s\n",
			"ID", "Lesson", "Title", "Status", "Mode", "Score")
		fmt.Println(strings.Repeat("─", 96))
		for _, sess := range sessions {
			sum := sess.Summary()
			fmt.Printf("%-5d  %-18s  %-28s  %-12s  %-16s  %d/%d %s\n",
				sess.ID,
				truncate(sess.Key.Ref.String(), 18),
				truncate(sess.LessonTitle, 28),
				sess.Status,
				sess.Mode,
				sum.Correct, sum.Attempts, sum.Level,
			)
		}
		return nil
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a session and its recent messages",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := lessonKey(cmd)
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := cmd.Context()
		repo := s.SessionRepo()
		sess, err := repo.Load(ctx, key)
		if err != nil {
			return fmt.Errorf("load session: %w", err)
		}
		if sess == nil {
			return fmt.Errorf("no session for %s", key)
		}
		history, err := repo.History(ctx, sess.ID, limit)
		if err != nil {
			return fmt.Errorf("load history: %w", err)
		}

		sum := sess.Summary()
		fmt.Printf("Session:   %d (version %d)\n", sess.ID, sess.Version)
		fmt.Printf("Lesson:    %s / %s\n", sess.ModuleTitle, sess.LessonTitle)
		fmt.Printf("Status:    %s\n", sess.Status)
		fmt.Printf("Mode:      %s\n", sess.Mode)
		if sess.ActiveTask != nil {
			fmt.Printf("Task:      %s\n", sess.ActiveTask.Summary())
		}
		fmt.Printf("Score:     %d/%d correct, average %.2f (%s)\n",
			sum.Correct, sum.Attempts, sum.AverageScore, sum.Level)
		if sess.ErrorMessage != "" {
			fmt.Printf("Error:     %s\n", sess.ErrorMessage)
		}

		fmt.Println()
		fmt.Println(strings.Repeat("─", 60))
		printMessages(history)
		return nil
	},
}

var sessionResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete a session and its history",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := lessonKey(cmd)
		if err != nil {
			return err
		}
		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		deleted, err := s.SessionRepo().Delete(cmd.Context(), key)
		if err != nil {
			return fmt.Errorf("reset session: %w", err)
		}
		if !deleted {
			fmt.Printf("No session for %s.\n", key)
			return nil
		}
		fmt.Printf("Session for %s deleted.\n", key)
		return nil
	},
}

var sessionProgressCmd = &cobra.Command{
	Use:   "progress <status>",
	Short: "Set the progress status (not_started, in_progress, completed)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := lessonKey(cmd)
		if err != nil {
			return err
		}
		if _, ok := lesson.ParseStatus(args[0]); !ok {
			return fmt.Errorf("invalid status %q", args[0])
		}

		rt, err := newRuntime(cmd, false)
		if err != nil {
			return err
		}
		defer rt.Close()

		sess, err := rt.engine.UpdateProgressStatus(cmd.Context(), key, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Session %d is now %s.\n", sess.ID, sess.Status)
		return nil
	},
}

func init() {
	addLessonFlags(sessionShowCmd)
	addLessonFlags(sessionResetCmd)
	addLessonFlags(sessionProgressCmd)
	sessionShowCmd.Flags().IntP("limit", "n", 20, "Number of messages to show")

	sessionCmd.AddCommand(sessionListCmd)
	sessionCmd.AddCommand(sessionShowCmd)
	sessionCmd.AddCommand(sessionResetCmd)
	sessionCmd.AddCommand(sessionProgressCmd)
}
