// Package ffmpeg assembles downloaded segments into one output file.
package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"vodgrab/config"
	"vodgrab/media"
	"vodgrab/metrics"
)

// ListFileName is the concat demuxer input written into the scratch dir.
const ListFileName = "files.txt"

// Artist is the fixed artist tag written into every output.
const Artist = "SkillCapped"

type Muxer struct {
	bin        string
	enabled    bool
	timeout    time.Duration
	extraArgs  []string
	thresholds Thresholds
}

func NewMuxer(cfg *config.Config) (*Muxer, error) {
	extra, err := ParseExtraArgs(cfg.FFExtraArgs)
	if err != nil {
		return nil, fmt.Errorf("FF_EXTRA_ARGS: %w", err)
	}
	return &Muxer{
		bin:       cfg.FFBin,
		enabled:   cfg.FFEnable,
		timeout:   cfg.FFTimeout,
		extraArgs: extra,
		thresholds: Thresholds{
			IdleCPU:  cfg.ThrottleCPU,
			FreeMem:  cfg.ThrottleFreeMem,
			FreeDisk: cfg.ThrottleFreeDisk,
		},
	}, nil
}

// OutputExt is the extension of files produced by Mux.
func (m *Muxer) OutputExt() string {
	if m.enabled {
		return ".mp4"
	}
	return ".ts"
}

// Mux joins segments in index order into outputPath and tags it with meta.
// The scratch dir is removed only after the output is in place; on any
// failure it is left for a later resume. The returned string is the tool's
// combined output, if any.
func (m *Muxer) Mux(ctx context.Context, segments []media.Segment, outputPath, scratchDir string, meta media.Metadata) (string, error) {
	if len(segments) == 0 {
		return "", fmt.Errorf("nothing to mux into %s", outputPath)
	}
	ordered := media.SortByIndex(segments)

	var need int64
	for _, seg := range ordered {
		fi, err := os.Stat(seg.LocalPath)
		if err != nil {
			return "", fmt.Errorf("segment %d: %w", seg.Index, err)
		}
		need += fi.Size()
	}
	if err := CheckResources(filepath.Dir(outputPath), need, m.thresholds); err != nil {
		return "", err
	}

	start := time.Now()
	var (
		out      string
		err      error
		strategy string
	)
	if m.enabled {
		strategy = "ffmpeg"
		out, err = m.runFFmpeg(ctx, ordered, outputPath, scratchDir, meta)
	} else {
		strategy = "concat"
		err = concatSegments(ordered, outputPath)
	}
	if err != nil {
		return out, err
	}
	metrics.MuxDuration.WithLabelValues(strategy).Observe(time.Since(start).Seconds())

	if err := os.RemoveAll(scratchDir); err != nil {
		log.Printf("Warning: could not remove scratch dir %s: %v", scratchDir, err)
	}
	return out, nil
}

func (m *Muxer) runFFmpeg(ctx context.Context, segments []media.Segment, outputPath, scratchDir string, meta media.Metadata) (string, error) {
	bin, err := exec.LookPath(m.bin)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", media.ErrMuxToolMissing, m.bin, err)
	}

	listPath, err := writeList(scratchDir, segments)
	if err != nil {
		return "", err
	}

	partPath := outputPath + ".part"
	args := buildArgs(listPath, partPath, meta, m.extraArgs)

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	var outputBuf bytes.Buffer
	cmd.Stdout = &outputBuf
	cmd.Stderr = &outputBuf

	log.Printf("Executing: %s %s", bin, strings.Join(args, " "))

	err = cmd.Run()
	outputLog := outputBuf.String()
	if err != nil {
		os.Remove(partPath)
		if ctx.Err() != nil {
			return outputLog, fmt.Errorf("%w: %v", media.ErrMuxFailed, ctx.Err())
		}
		return outputLog, fmt.Errorf("%w: %v: %s", media.ErrMuxFailed, err, strings.TrimSpace(outputLog))
	}

	if err := os.Rename(partPath, outputPath); err != nil {
		os.Remove(partPath)
		return outputLog, fmt.Errorf("finalize output: %w", err)
	}
	return outputLog, nil
}

func buildArgs(listPath, partPath string, meta media.Metadata, extra []string) []string {
	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		"-metadata", "title=" + meta.Title,
		"-metadata", "album=" + meta.Album,
		"-metadata", "artist=" + Artist,
	}
	if meta.Track > 0 {
		args = append(args, "-metadata", "track="+strconv.Itoa(meta.Track))
	}
	args = append(args, "-loglevel", "error")
	args = append(args, extra...)
	// ffmpeg cannot infer the container from a .part name.
	return append(args, "-f", "mp4", partPath)
}

// writeList writes the concat demuxer list with absolute segment paths.
func writeList(scratchDir string, segments []media.Segment) (string, error) {
	var b strings.Builder
	for _, seg := range segments {
		abs, err := filepath.Abs(seg.LocalPath)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`))
	}

	listPath := filepath.Join(scratchDir, ListFileName)
	if err := os.WriteFile(listPath, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", ListFileName, err)
	}
	return listPath, nil
}

// concatSegments byte-concatenates segments into outputPath. MPEG-TS segments
// are self-contained so the result plays without remuxing.
func concatSegments(segments []media.Segment, outputPath string) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(outputPath), filepath.Base(outputPath)+".*.part")
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	for _, seg := range segments {
		if err := appendFile(tmp, seg.LocalPath); err != nil {
			return fmt.Errorf("segment %d: %w", seg.Index, err)
		}
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	if err := os.Rename(tmp.Name(), outputPath); err != nil {
		return fmt.Errorf("finalize output: %w", err)
	}
	return nil
}

func appendFile(dst io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(dst, f)
	return err
}
