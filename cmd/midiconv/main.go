package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var version = "dev"

var (
	green = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50"))
	red   = lipgloss.NewStyle().Foreground(lipgloss.Color("#E95420"))
	gray  = lipgloss.NewStyle().Foreground(lipgloss.Color("#9A9EA0"))
	cyan  = lipgloss.NewStyle().Foreground(lipgloss.Color("#00BCD4"))
	bold  = lipgloss.NewStyle().Bold(true)
)

var rootCmd = &cobra.Command{
	Use:     "midiconv",
	Short:   "Convert recorded melodies to MIDI",
	Version: version,
	Long: `midiconv transcribes audio files into Standard MIDI Files.

Files are converted one at a time in the order given. Monophonic pitch
tracking runs locally; --ai sends audio to the inference service for
polyphonic transcription.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(tokenCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", red.Render("Error:"), err)
		os.Exit(1)
	}
}
