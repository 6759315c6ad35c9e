// Package muxer implements C4: driving an external ffmpeg-compatible
// binary to remux downloaded segments into a single output file, per
// §4.4 of the pipeline spec.
package muxer

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const (
	streamCopyTimeout = 10 * time.Minute
	reencodeTimeout   = 30 * time.Minute
)

// Options configures one Merge call.
type Options struct {
	Threads       int
	ConcatDir     string // directory the manifest file is written into; defaults to the first segment's directory
	AllowReencode bool   // if stream-copy fails, retry with a full re-encode
}

// Muxer drives the ffmpeg binary. Construction fails if the binary is not
// on PATH — per §6, muxer availability is a construction-time contract,
// not a per-job surprise.
type Muxer struct {
	binary string
}

// New resolves binary (or "ffmpeg" if empty) via exec.LookPath.
func New(binary string) (*Muxer, error) {
	if binary == "" {
		binary = "ffmpeg"
	}
	resolved, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("muxer: %q not found in PATH: %w", binary, err)
	}
	if out, err := exec.Command(resolved, "-version").Output(); err == nil {
		if line := strings.SplitN(string(out), "\n", 2); len(line) > 0 {
			log.Printf("[muxer] using %s: %s", resolved, line[0])
		}
	}
	return &Muxer{binary: resolved}, nil
}

// Merge concatenates segmentPaths (in order) into outPath. It first tries
// a stream-copy concat-demux pass (fast, lossless); if that fails and
// opts.AllowReencode is set, it retries with a full H.264/AAC re-encode.
// Returns whether the output was produced via re-encode (for logging/
// metrics) and any error.
func (m *Muxer) Merge(ctx context.Context, segmentPaths []string, outPath string, opts Options) (reencoded bool, err error) {
	if len(segmentPaths) == 0 {
		return false, fmt.Errorf("muxer: no segments to merge")
	}

	concatDir := opts.ConcatDir
	if concatDir == "" {
		concatDir = filepath.Dir(segmentPaths[0])
	}
	manifest, err := writeConcatManifest(concatDir, segmentPaths)
	if err != nil {
		return false, fmt.Errorf("muxer: write concat manifest: %w", err)
	}
	defer os.Remove(manifest)

	if err := m.runStreamCopy(ctx, manifest, outPath, opts.Threads); err == nil {
		if info, statErr := os.Stat(outPath); statErr == nil {
			log.Printf("[muxer] stream-copy merge succeeded: %s (%d bytes)", outPath, info.Size())
		}
		return false, nil
	} else if !opts.AllowReencode {
		return false, fmt.Errorf("muxer: stream-copy failed and re-encode disabled: %w", err)
	} else {
		log.Printf("[muxer] stream-copy failed (%v), falling back to re-encode", err)
	}

	if err := m.runReencode(ctx, manifest, outPath, opts.Threads); err != nil {
		return false, fmt.Errorf("muxer: re-encode fallback failed: %w", err)
	}
	if info, statErr := os.Stat(outPath); statErr == nil {
		log.Printf("[muxer] re-encode merge succeeded: %s (%d bytes)", outPath, info.Size())
	}
	return true, nil
}

func (m *Muxer) runStreamCopy(ctx context.Context, manifest, outPath string, threads int) error {
	ctx, cancel := context.WithTimeout(ctx, streamCopyTimeout)
	defer cancel()

	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", manifest,
		"-c", "copy",
		"-bsf:a", "aac_adtstoasc",
	}
	if threads > 0 {
		args = append([]string{"-threads", fmt.Sprint(threads)}, args...)
	}
	args = append(args, outPath)

	return m.run(ctx, args)
}

func (m *Muxer) runReencode(ctx context.Context, manifest, outPath string, threads int) error {
	ctx, cancel := context.WithTimeout(ctx, reencodeTimeout)
	defer cancel()

	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", manifest,
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-c:a", "aac",
		"-b:a", "128k",
	}
	if threads > 0 {
		args = append([]string{"-threads", fmt.Sprint(threads)}, args...)
	}
	args = append(args, outPath)

	return m.run(ctx, args)
}

func (m *Muxer) run(ctx context.Context, args []string) error {
	log.Printf("[muxer] command: %s %s", m.binary, strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, m.binary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w\noutput: %s", err, string(output))
	}
	return nil
}

// writeConcatManifest writes an ffmpeg concat-demux file listing
// segmentPaths, single-quote-escaping each path per ffmpeg's concat
// protocol (a literal "'" becomes "'\''"). Per §6 the manifest is always
// named concat_list.txt inside concatDir.
func writeConcatManifest(dir string, segmentPaths []string) (string, error) {
	path := filepath.Join(dir, "concat_list.txt")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	for _, p := range segmentPaths {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		if _, err := fmt.Fprintf(f, "file '%s'\n", escapeSingleQuotes(abs)); err != nil {
			return "", err
		}
	}
	return path, nil
}

func escapeSingleQuotes(s string) string {
	return strings.ReplaceAll(s, `'`, `'\''`)
}
