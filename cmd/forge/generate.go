package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"lessonforge/internal/generation"
	"lessonforge/internal/logging"
	"lessonforge/internal/orchestrator"
	"lessonforge/internal/store"
)

var (
	genLessonID     string
	genPreset       string
	genPedagogyFile string
	genTopicsFile   string
	genConcurrency  int
)

var generateCmd = &cobra.Command{
	Use:   "generate [topic]",
	Short: "Generate a lesson component for a topic",
	Long: `Runs the full pipeline for one topic, or for every topic in a file.

The pedagogy profile comes from --pedagogy (a JSON file) or --preset
(elementary, middle, high). With --topics-file, one lesson is generated per
line, up to --concurrency at a time.

Examples:
  forge generate "the water cycle" --preset elementary
  forge generate --topics-file topics.txt --concurrency 3`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVar(&genLessonID, "lesson-id", "", "lesson id (default: random)")
	generateCmd.Flags().StringVar(&genPreset, "preset", "", "pedagogy preset: elementary, middle, high")
	generateCmd.Flags().StringVar(&genPedagogyFile, "pedagogy", "", "pedagogy profile JSON file")
	generateCmd.Flags().StringVar(&genTopicsFile, "topics-file", "", "file with one topic per line")
	generateCmd.Flags().IntVar(&genConcurrency, "concurrency", 2, "parallel generations for --topics-file")
}

func resolvePedagogy() (generation.Pedagogy, error) {
	if genPedagogyFile != "" {
		data, err := os.ReadFile(genPedagogyFile)
		if err != nil {
			return generation.Pedagogy{}, fmt.Errorf("read pedagogy file: %w", err)
		}
		return generation.ParsePedagogy(data)
	}
	if genPreset != "" {
		return generation.Preset(genPreset)
	}
	return generation.Pedagogy{}, nil
}

func runGenerate(cmd *cobra.Command, args []string) error {
	if genTopicsFile == "" && len(args) < 1 {
		return errors.New("provide a topic or --topics-file")
	}

	ped, err := resolvePedagogy()
	if err != nil {
		return err
	}

	db, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return err
	}
	defer db.Close()

	client, err := generation.NewGenAIClient(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLMTimeout())
	if err != nil {
		return err
	}

	orch := orchestrator.New(client, db, orchestrator.Options{
		MaxAttempts: cfg.Generation.MaxAttempts,
		WallClock:   cfg.WallClock(),
	})

	if genTopicsFile != "" {
		return generateBatch(cmd, db, orch, ped)
	}
	return generateOne(cmd, db, orch, ped, args[0], genLessonID)
}

func generateOne(cmd *cobra.Command, db *store.Store, orch *orchestrator.Orchestrator, ped generation.Pedagogy, topic, lessonID string) error {
	ctx := cmd.Context()
	if lessonID == "" {
		lessonID = uuid.NewString()
	}

	pedJSON, err := json.Marshal(ped)
	if err != nil {
		return fmt.Errorf("encode pedagogy: %w", err)
	}
	if err := db.CreateLesson(ctx, lessonID, topic, string(pedJSON)); err != nil {
		return err
	}

	res, err := orch.Run(ctx, orchestrator.Request{LessonID: lessonID, Topic: topic, Pedagogy: ped})
	if err != nil {
		return err
	}

	if res.Success {
		fmt.Printf("✓ %s generated (lesson %s, version %d, %d attempt(s))\n", topic, lessonID, res.Version, res.AttemptCount)
		return nil
	}
	fmt.Printf("✗ %s failed after %d attempt(s): %s\n", topic, res.AttemptCount, res.FailureReason)
	return fmt.Errorf("generation failed for lesson %s", lessonID)
}

func generateBatch(cmd *cobra.Command, db *store.Store, orch *orchestrator.Orchestrator, ped generation.Pedagogy) error {
	topics, err := readTopics(genTopicsFile)
	if err != nil {
		return err
	}
	if len(topics) == 0 {
		return fmt.Errorf("no topics in %s", genTopicsFile)
	}

	log := logging.Get(logging.CategoryCLI)
	log.Infow("batch generation", "topics", len(topics), "concurrency", genConcurrency)

	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(genConcurrency)

	var failed atomic.Int32
	for _, topic := range topics {
		g.Go(func() error {
			lessonID := uuid.NewString()
			pedJSON, err := json.Marshal(ped)
			if err != nil {
				return err
			}
			if err := db.CreateLesson(ctx, lessonID, topic, string(pedJSON)); err != nil {
				return err
			}
			res, err := orch.Run(ctx, orchestrator.Request{LessonID: lessonID, Topic: topic, Pedagogy: ped})
			if err != nil {
				return err
			}
			if res.Success {
				fmt.Printf("✓ %s (lesson %s)\n", topic, lessonID)
			} else {
				fmt.Printf("✗ %s: %s\n", topic, res.FailureReason)
				failed.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if n := failed.Load(); n > 0 {
		return fmt.Errorf("%d of %d topics failed", n, len(topics))
	}
	fmt.Printf("All %d topics generated\n", len(topics))
	return nil
}

func readTopics(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open topics file: %w", err)
	}
	defer f.Close()

	var topics []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		topics = append(topics, line)
	}
	return topics, scanner.Err()
}
