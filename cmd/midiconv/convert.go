package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/makeasinger/midiconv/internal/audio"
	"github.com/makeasinger/midiconv/internal/client"
	"github.com/makeasinger/midiconv/internal/config"
	"github.com/makeasinger/midiconv/internal/dsp"
	"github.com/makeasinger/midiconv/internal/model"
	"github.com/makeasinger/midiconv/internal/pipeline"
	"github.com/makeasinger/midiconv/internal/progress"
	"github.com/makeasinger/midiconv/internal/transcribe"
	"github.com/makeasinger/midiconv/internal/worker"
)

// maxNoteSeconds drops sustained detections longer than this by default
const maxNoteSeconds = 10.0

var (
	gridFlag          string
	aiFlag            bool
	outDir            string
	minConfidenceFlag float64
	noTempoFlag       bool
	maxDurationFlag   float64
)

var convertCmd = &cobra.Command{
	Use:   "convert [files...]",
	Short: "Convert audio files to MIDI",
	Long: `Convert one or more audio files to MIDI. Each input produces <name>.mid
next to it, or in --out when given. Press Ctrl-C to cancel; the file in
progress stops at its next stage.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringVar(&gridFlag, "grid", "", "Quantization grid: none, quarter, eighth, sixteenth, thirty-second")
	convertCmd.Flags().BoolVar(&aiFlag, "ai", false, "Use the inference service for polyphonic transcription")
	convertCmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory (default: next to each input)")
	convertCmd.Flags().Float64Var(&minConfidenceFlag, "min-confidence", -1, "Drop notes below this confidence (0-1)")
	convertCmd.Flags().BoolVar(&noTempoFlag, "no-tempo", false, "Skip tempo detection")
	convertCmd.Flags().Float64Var(&maxDurationFlag, "max-duration", maxNoteSeconds, "Drop notes longer than this many seconds (0 disables)")
}

func runConvert(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	conv, err := conversionFromFlags(cmd, cfg.Conversion.Defaults())
	if err != nil {
		return err
	}

	var events transcribe.EventSource
	if conv.UseAI {
		inference := client.NewInferenceClient(&cfg.Inference)
		if !inference.IsConfigured() {
			return fmt.Errorf("--ai needs INFERENCE_SERVICE_URL")
		}
		events = inference
	}
	proc := pipeline.New(audio.WAVLoader{}, dsp.NewPitchTracker(), events, dsp.NewTempoTracker())

	if outDir != "" {
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	updates := progress.NewChannel(16, progress.Block)
	queue := worker.NewFIFO(proc, len(args), updates)

	var mu sync.Mutex
	names := make(map[string]string, len(args))
	for _, in := range args {
		id, err := queue.Submit(in, outputPath(in), conv)
		if err != nil {
			return fmt.Errorf("failed to queue %s: %w", in, err)
		}
		mu.Lock()
		names[id] = filepath.Base(in)
		mu.Unlock()
	}

	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for u := range updates.Updates() {
			mu.Lock()
			name := names[u.JobID]
			mu.Unlock()
			fmt.Printf("  %s %s %s\n", gray.Render(fmt.Sprintf("%3d%%", u.Percent)), name, gray.Render(u.Stage))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)
	go func() {
		if _, ok := <-sig; ok {
			fmt.Println(red.Render("Cancelling..."))
			queue.Close()
		}
	}()

	fmt.Printf("%s %d file(s)\n\n", bold.Render("Converting"), len(args))
	queue.Start()
	go queue.Wait()

	failed := 0
	for r := range queue.Results() {
		printResult(r)
		if !r.Result.Success {
			failed++
		}
	}
	updates.Close()
	<-printed

	fmt.Println()
	if failed > 0 {
		return fmt.Errorf("%d of %d conversions failed", failed, len(args))
	}
	fmt.Println(green.Render("All conversions finished"))
	return nil
}

func conversionFromFlags(cmd *cobra.Command, cfg model.ConversionConfig) (model.ConversionConfig, error) {
	if gridFlag != "" {
		grid := model.Grid(gridFlag)
		if !grid.Valid() {
			return cfg, fmt.Errorf("unknown grid %q", gridFlag)
		}
		cfg.QuantizationGrid = grid
	}
	if cmd.Flags().Changed("ai") {
		cfg.UseAI = aiFlag
	}
	if minConfidenceFlag >= 0 {
		if minConfidenceFlag > 1 {
			return cfg, fmt.Errorf("--min-confidence must be between 0 and 1")
		}
		cfg.MinConfidence = minConfidenceFlag
	}
	if noTempoFlag {
		cfg.DetectTempo = false
	}
	if maxDurationFlag < 0 {
		return cfg, fmt.Errorf("--max-duration must not be negative")
	}
	cfg.MaxDuration = maxDurationFlag
	return cfg, nil
}

func outputPath(in string) string {
	name := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in)) + ".mid"
	if outDir != "" {
		return filepath.Join(outDir, name)
	}
	return filepath.Join(filepath.Dir(in), name)
}

func printResult(r worker.Result) {
	name := filepath.Base(r.Item.InputPath)
	res := r.Result
	switch {
	case res.Success:
		tempo := "unknown tempo"
		if res.DetectedTempo != nil {
			tempo = fmt.Sprintf("%.1f BPM", *res.DetectedTempo)
		}
		fmt.Printf("%s %s -> %s\n", green.Render("✓"), bold.Render(name), cyan.Render(res.OutputPath))
		fmt.Printf("    %s\n", gray.Render(fmt.Sprintf("%d notes, %s, %d filtered, %s, %s",
			res.NoteCount, tempo, res.NotesFiltered, res.TranscriptionMethod, res.ProcessingTime.Round(1e6))))
	case res.Cancelled:
		fmt.Printf("%s %s %s\n", gray.Render("○"), bold.Render(name), gray.Render("cancelled"))
	default:
		stage := res.FailedStage
		if stage == "" {
			stage = "conversion"
		}
		fmt.Printf("%s %s %s: %s\n", red.Render("✗"), bold.Render(name), stage, res.ErrorMessage)
	}
}
