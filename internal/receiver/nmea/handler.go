// Package nmea reads NMEA 0183 sentences relayed by gpsd's gpspipe, or from
// a recorded log, and assembles them into satellite snapshots and position fixes.
package nmea

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	gonmea "github.com/adrianmo/go-nmea"

	"github.com/roman-kulish/sky-view/internal/receiver"
)

const (
	Runtime = "gpspipe"

	SourceGPSD   = "gpsd"
	SourceReplay = "nmea-replay"
)

// Sentences the assembler consumes. Everything else is skipped without
// counting as a parse error.
var supportedTypes = map[string]struct{}{
	gonmea.TypeGSV: {},
	gonmea.TypeGSA: {},
	gonmea.TypeGGA: {},
	gonmea.TypeRMC: {},
}

// Handler implements receiver.Handler for NMEA output.
type Handler struct {
	binPath   string
	args      []string
	source    string
	assembler *Assembler
}

// New creates a handler running gpspipe against a gpsd instance.
func New(config *Config, options ...func(*Assembler)) (*Handler, error) {
	binPath, err := receiver.FindRuntime(config.RuntimeName())
	if err != nil {
		return nil, fmt.Errorf("error finding runtime: %w", err)
	}

	args, err := config.Args()
	if err != nil {
		return nil, fmt.Errorf("error creating args: %w", err)
	}

	return &Handler{
		binPath:   binPath,
		args:      args,
		source:    SourceGPSD,
		assembler: NewAssembler(options...),
	}, nil
}

// NewReplay creates a handler for receiver.Receiver.Replay. It has no command to run.
func NewReplay(options ...func(*Assembler)) *Handler {
	return &Handler{
		source:    SourceReplay,
		assembler: NewAssembler(options...),
	}
}

// Cmd returns an exec.Cmd running gpspipe
func (h *Handler) Cmd(ctx context.Context) *exec.Cmd {
	return exec.CommandContext(ctx, h.binPath, h.args...)
}

// Parse parses one NMEA sentence and sends the events it completes to the channel.
func (h *Handler) Parse(line string, events chan<- receiver.Event) error {
	if !strings.HasPrefix(line, "$") {
		return nil // not an NMEA sentence, e.g. a gpsd JSON report
	}

	base, err := gonmea.ParseSentence(line)
	if err != nil {
		return fmt.Errorf("invalid sentence: %w", err)
	}
	if _, ok := supportedTypes[base.Type]; !ok {
		return nil
	}

	sentence, err := gonmea.Parse(line)
	if err != nil {
		return fmt.Errorf("invalid %s sentence: %w", base.Type, err)
	}

	for _, event := range h.assembler.Feed(sentence) {
		event.Source = h.source
		events <- event
	}
	return nil
}

func (h *Handler) Source() string {
	return h.source
}
