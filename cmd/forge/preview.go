package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"lessonforge/internal/sandbox"
	"lessonforge/internal/store"
)

var (
	previewShadow  bool
	previewRuntime string
	previewOut     string
	previewHold    time.Duration
)

var previewCmd = &cobra.Command{
	Use:   "preview [lesson-id]",
	Short: "Mount a lesson's latest content in a local browser",
	Long: `Loads the lesson's latest compiled version and mounts it through the
sandbox executor. The default strategy is a sandboxed iframe; --shadow uses
a shadow root instead (style isolation only).

The content is re-linted before mounting; content that no longer passes the
current rule table is refused.`,
	Args: cobra.ExactArgs(1),
	RunE: runPreview,
}

func init() {
	previewCmd.Flags().BoolVar(&previewShadow, "shadow", false, "mount into a shadow root instead of a sandboxed frame")
	previewCmd.Flags().StringVar(&previewRuntime, "runtime", "", "UI runtime bundle path (overrides sandbox.runtime_script)")
	previewCmd.Flags().StringVar(&previewOut, "out", "", "write a screenshot to this path")
	previewCmd.Flags().DurationVar(&previewHold, "hold", 0, "keep the preview open for this long (0 with --out: screenshot and exit)")
}

func runPreview(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	db, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return err
	}
	defer db.Close()

	lesson, err := db.GetLesson(ctx, args[0])
	if err != nil {
		return err
	}
	version, err := db.LatestContentVersion(ctx, lesson.ID)
	if err != nil {
		return fmt.Errorf("lesson %s has no content: %w", lesson.ID, err)
	}

	runtimeScript := cfg.Sandbox.RuntimeScript
	if previewRuntime != "" {
		runtimeScript = previewRuntime
	}

	host := sandbox.NewRodHost(sandbox.HostConfig{
		Headless:       cfg.Sandbox.Headless,
		ViewportWidth:  cfg.Sandbox.ViewportWidth,
		ViewportHeight: cfg.Sandbox.ViewportHeight,
		RuntimeScript:  runtimeScript,
	})
	if err := host.Start(ctx); err != nil {
		return err
	}
	defer host.Shutdown()

	var mounter sandbox.Mounter = sandbox.NewFrameMounter(host)
	if previewShadow {
		mounter = sandbox.NewShadowMounter(host)
	}

	bundle := sandbox.Bundle{
		SourceText:    version.SourceText,
		ModuleText:    version.ModuleText,
		IntegrityHash: version.IntegrityHash,
	}

	session, err := mounter.Mount(ctx, "lesson-root", bundle)
	if err != nil {
		return fmt.Errorf("mount: %w", err)
	}
	defer mounter.Unmount(ctx, session)

	fmt.Printf("mounted lesson %s version %d (%q)\n", lesson.ID, version.Version, lesson.Topic)

	if previewOut != "" {
		shot, err := host.Screenshot(ctx)
		if err != nil {
			return fmt.Errorf("screenshot: %w", err)
		}
		if err := os.WriteFile(previewOut, shot, 0644); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", previewOut)
	}

	if previewHold > 0 {
		fmt.Printf("holding for %s (Ctrl-C to stop)\n", previewHold)
		select {
		case <-ctx.Done():
		case <-time.After(previewHold):
		}
	}
	return nil
}
