package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"lessonforge/internal/compiler"
	"lessonforge/internal/safety"
	"lessonforge/internal/store"
)

var compileOut string

var lintCmd = &cobra.Command{
	Use:   "lint [file]",
	Short: "Run the safety linter over a TSX source file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		issues := safety.Check(string(source))
		if len(issues) == 0 {
			fmt.Println("clean")
			return nil
		}
		for _, issue := range issues {
			fmt.Printf("%s  %s\n", issue.Rule, issue.Message)
		}
		return fmt.Errorf("%d blocking issue(s)", len(issues))
	},
}

var compileCmd = &cobra.Command{
	Use:   "compile [file]",
	Short: "Compile a TSX source file into a browser module",
	Long: `Lints the source, elides its imports, and transpiles it to a
self-contained ES module. The module goes to --out, or stdout.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		if issues := safety.Check(string(source)); len(issues) > 0 {
			for _, issue := range issues {
				fmt.Fprintf(os.Stderr, "%s  %s\n", issue.Rule, issue.Message)
			}
			return fmt.Errorf("refusing to compile: %d blocking issue(s)", len(issues))
		}

		artifact, err := compiler.Compile(string(source))
		if err != nil {
			for _, diag := range compiler.Diagnostics(err) {
				fmt.Fprintln(os.Stderr, diag)
			}
			return fmt.Errorf("compile failed")
		}

		if compileOut != "" {
			if err := os.WriteFile(compileOut, []byte(artifact.ModuleText), 0644); err != nil {
				return err
			}
			fmt.Printf("wrote %s (%d bytes, hash %s)\n", compileOut, len(artifact.ModuleText), artifact.SourceHash[:12])
			return nil
		}
		fmt.Print(artifact.ModuleText)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Summarize stored lessons, versions, and traces",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := store.Open(cfg.DatabasePath())
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Println("Lessons:")
		for _, st := range []store.Status{store.StatusQueued, store.StatusGenerating, store.StatusGenerated, store.StatusFailed} {
			fmt.Printf("  %-11s %d\n", st, stats.LessonsByStatus[st])
		}
		fmt.Printf("Content versions: %d\n", stats.TotalVersions)
		fmt.Printf("Trace records:    %d\n", stats.TotalTraces)
		return nil
	},
}

var traceCmd = &cobra.Command{
	Use:   "trace [lesson-id]",
	Short: "Print a lesson's generation attempt trail",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := store.Open(cfg.DatabasePath())
		if err != nil {
			return err
		}
		defer db.Close()

		lesson, err := db.GetLesson(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		traces, err := db.Traces(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Lesson %s  topic=%q  status=%s\n", lesson.ID, lesson.Topic, lesson.Status)
		if lesson.FailureReason != "" {
			fmt.Printf("  failure: %s\n", lesson.FailureReason)
		}
		for _, tr := range traces {
			fmt.Printf("\nAttempt %d  [%s]  %s\n", tr.Attempt, tr.Outcome, tr.CreatedAt.Format("2006-01-02 15:04:05"))
			if tr.SafetyIssues != "" {
				fmt.Printf("  safety: %s\n", tr.SafetyIssues)
			}
			if tr.CompileError != "" {
				fmt.Printf("  errors: %s\n", tr.CompileError)
			}
			if tr.RepairApplied != "" {
				fmt.Printf("  repairs: %s\n", tr.RepairApplied)
			}
		}
		return nil
	},
}

func init() {
	compileCmd.Flags().StringVar(&compileOut, "out", "", "write the module to a file instead of stdout")
}
