// Package dependency verifies the external binaries the bot shells out to.
package dependency

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Binary describes one external program the bot depends on.
type Binary struct {
	Name        string
	Required    bool
	VersionArgs []string
	Description string
}

// Result is the outcome of probing one binary.
type Result struct {
	Binary    Binary
	Available bool
	Version   string
	Err       error
}

// Defaults lists the binaries a voice-capable deployment needs. ffmpeg is
// what the dca encoder spawns for every audio source.
func Defaults() []Binary {
	return []Binary{
		{
			Name:        "ffmpeg",
			Required:    true,
			VersionArgs: []string{"-version"},
			Description: "audio transcoding for voice playback",
		},
	}
}

// Checker probes binaries with a per-probe timeout.
type Checker struct {
	timeout time.Duration
}

// NewChecker returns a Checker with the given per-binary timeout.
func NewChecker(timeout time.Duration) *Checker {
	return &Checker{timeout: timeout}
}

// Check probes every binary and returns one result each.
func (c *Checker) Check(ctx context.Context, bins []Binary) []Result {
	results := make([]Result, 0, len(bins))
	for _, bin := range bins {
		results = append(results, c.probe(ctx, bin))
	}
	return results
}

// Verify returns an error naming every required binary that is missing.
func (c *Checker) Verify(ctx context.Context, bins []Binary) error {
	var missing []string
	for _, res := range c.Check(ctx, bins) {
		if res.Binary.Required && !res.Available {
			missing = append(missing, res.Binary.Name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("required binaries missing: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (c *Checker) probe(ctx context.Context, bin Binary) Result {
	probeCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	path, err := exec.LookPath(bin.Name)
	if err != nil {
		return Result{Binary: bin, Err: err}
	}

	out, err := exec.CommandContext(probeCtx, path, bin.VersionArgs...).Output()
	if err != nil {
		// Present on PATH but the version probe failed; still usable.
		return Result{Binary: bin, Available: true, Err: err}
	}

	version := ""
	if lines := strings.SplitN(string(out), "\n", 2); len(lines) > 0 {
		version = strings.TrimSpace(lines[0])
	}
	return Result{Binary: bin, Available: true, Version: version}
}
