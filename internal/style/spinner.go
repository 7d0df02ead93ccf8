package style

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/briandowns/spinner"
)

// TestEnv switches NewSpinner to the line based recording spinner.
const TestEnv = "CO2_TEST"

// Spinner shows progress while a model loads or a prediction runs.
type Spinner interface {
	SetSuffix(suffix string)
	SetFinalMSG(finalMSG string)
	Start()
	Stop()
}

// RecordingSpinner writes each state change on its own line instead of
// redrawing, so output can be asserted in tests.
type RecordingSpinner struct {
	mu       sync.Mutex
	writer   io.Writer
	suffix   string
	finalMSG string
	active   bool
}

func NewRecordingSpinner(w io.Writer) *RecordingSpinner {
	return &RecordingSpinner{writer: w}
}

func (s *RecordingSpinner) SetSuffix(suffix string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suffix = suffix
	fmt.Fprintf(s.writer, "[SET SUFFIX] %s\n", suffix)
}

func (s *RecordingSpinner) SetFinalMSG(finalMSG string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalMSG = finalMSG
}

// Start will start the indicator.
func (s *RecordingSpinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return
	}
	s.active = true
	fmt.Fprintln(s.writer, "[SPINNER START]")
}

// Stop stops the indicator.
func (s *RecordingSpinner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	s.active = false
	fmt.Fprintln(s.writer, "[SPINNER STOP]")
	if s.finalMSG != "" {
		fmt.Fprintf(s.writer, "[FINAL MSG] %s\n", s.finalMSG)
	}
}

// TerminalSpinner animates on a terminal.
type TerminalSpinner struct {
	spinner *spinner.Spinner
}

func NewTerminalSpinner(w io.Writer) *TerminalSpinner {
	s := spinner.New(spinner.CharSets[9], 100*time.Millisecond, spinner.WithWriter(w))
	_ = s.Color("cyan")
	return &TerminalSpinner{spinner: s}
}

func (s *TerminalSpinner) SetSuffix(suffix string) {
	s.spinner.Suffix = suffix
}

func (s *TerminalSpinner) SetFinalMSG(finalMSG string) {
	s.spinner.FinalMSG = finalMSG
}

func (s *TerminalSpinner) Start() {
	s.spinner.Start()
}

func (s *TerminalSpinner) Stop() {
	s.spinner.Stop()
}

// NewSpinner returns a terminal spinner writing to w, or a recording spinner
// when CO2_TEST is set.
func NewSpinner(w io.Writer) Spinner {
	if os.Getenv(TestEnv) == "true" {
		return NewRecordingSpinner(w)
	}
	return NewTerminalSpinner(w)
}
