package transcoder

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/hweng-dev/adsplice/internal/domain/model"
)

// FFmpegConfig holds configuration for the FFmpeg encoder.
type FFmpegConfig struct {
	// FFmpegPath is the path to the ffmpeg binary.
	// If empty, "ffmpeg" will be used (assumes it's in PATH).
	FFmpegPath string

	// VideoBitrate is the constant video bitrate (ffmpeg rate string).
	// Default: 800k
	VideoBitrate string

	// AudioBitrate is the constant audio bitrate.
	// Default: 128k
	AudioBitrate string

	// VideoPreset controls the encoding speed/quality tradeoff.
	// Options: ultrafast, superfast, veryfast, faster, fast, medium, slow, slower, veryslow
	// Default: fast
	VideoPreset string

	// HLSSegmentDuration is the target duration of each HLS segment in
	// seconds. Content splices assume 3-second ad segments.
	// Default: 3
	HLSSegmentDuration int
}

// DefaultFFmpegConfig returns an FFmpegConfig with production-ready defaults.
func DefaultFFmpegConfig() FFmpegConfig {
	return FFmpegConfig{
		FFmpegPath:         "ffmpeg",
		VideoBitrate:       "800k",
		AudioBitrate:       "128k",
		VideoPreset:        "fast",
		HLSSegmentDuration: 3,
	}
}

// FFmpegEncoder implements Encoder using the FFmpeg CLI.
type FFmpegEncoder struct {
	config FFmpegConfig
}

// Compile-time verification that FFmpegEncoder implements Encoder.
var _ Encoder = (*FFmpegEncoder)(nil)

// NewFFmpegEncoder creates a new FFmpeg-based encoder.
func NewFFmpegEncoder(cfg FFmpegConfig) *FFmpegEncoder {
	return &FFmpegEncoder{
		config: cfg,
	}
}

// EncodeVariant converts the source media to a format-matched HLS
// rendition. It executes FFmpeg as a subprocess and waits for completion.
// Only the segment files matter downstream; the index playlist FFmpeg
// writes alongside them is ignored.
func (e *FFmpegEncoder) EncodeVariant(ctx context.Context, input EncodeInput, outputDir string, target model.VideoFormat) (*EncodeOutput, error) {
	if err := e.validateInput(input); err != nil {
		return nil, err
	}

	if err := e.validateOutputDir(outputDir); err != nil {
		return nil, err
	}

	indexPath := filepath.Join(outputDir, "index.m3u8")
	segmentPattern := filepath.Join(outputDir, "segment_%03d.ts")

	args := e.buildFFmpegArgs(input, indexPath, segmentPattern, target)

	cmd := exec.CommandContext(ctx, e.config.FFmpegPath, args...)
	cmd.Stdout = nil // Discard stdout
	cmd.Stderr = nil // Discard stderr (FFmpeg outputs progress to stderr)

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("transcoding cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("ffmpeg execution failed: %w", err)
	}

	segments, err := e.collectSegments(outputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to collect segments: %w", err)
	}

	return &EncodeOutput{
		SegmentPaths: segments,
	}, nil
}

// validateInput checks that exactly one source is given and it exists.
func (e *FFmpegEncoder) validateInput(input EncodeInput) error {
	path := input.Path
	if input.ConcatListPath != "" {
		if path != "" {
			return fmt.Errorf("both file and concat list given as source")
		}
		path = input.ConcatListPath
	}
	if path == "" {
		return fmt.Errorf("no source media given")
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("input file does not exist: %s", path)
		}
		return fmt.Errorf("failed to access input file: %w", err)
	}

	if info.IsDir() {
		return fmt.Errorf("input path is a directory, expected a file: %s", path)
	}

	return nil
}

// validateOutputDir checks if the output directory exists.
func (e *FFmpegEncoder) validateOutputDir(outputDir string) error {
	info, err := os.Stat(outputDir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("output directory does not exist: %s", outputDir)
		}
		return fmt.Errorf("failed to access output directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("output path is not a directory: %s", outputDir)
	}

	return nil
}

// buildFFmpegArgs constructs the FFmpeg command arguments.
// The GOP length is pinned to three seconds of frames so every HLS
// segment starts on a keyframe, and the pixel format is forced to 4:2:0
// for broad device compatibility.
func (e *FFmpegEncoder) buildFFmpegArgs(input EncodeInput, indexPath, segmentPattern string, target model.VideoFormat) []string {
	args := []string{}
	if input.ConcatListPath != "" {
		args = append(args, "-f", "concat", "-safe", "0", "-i", input.ConcatListPath)
	} else {
		args = append(args, "-i", input.Path)
	}

	gop := fmt.Sprintf("%d", target.GOPLength())

	args = append(args,
		"-vf", fmt.Sprintf("scale=%d:%d,fps=%d", target.Width, target.Height, target.FPS),
		"-c:v", "libx264",
		"-profile:v", "high",
		"-preset", e.config.VideoPreset,
		"-b:v", e.config.VideoBitrate,
		"-maxrate", e.config.VideoBitrate,
		"-bufsize", e.config.VideoBitrate,
		"-g", gop,
		"-keyint_min", gop,
		"-sc_threshold", "0", // No keyframes at scene cuts; segment boundaries only
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", e.config.AudioBitrate,
		"-f", "hls",
		"-hls_time", fmt.Sprintf("%d", e.config.HLSSegmentDuration),
		"-hls_list_size", "0", // Include all segments in playlist
		"-hls_segment_filename", segmentPattern,
		"-y", // Overwrite output files without asking
		indexPath,
	)
	return args
}

// collectSegments finds all generated .ts segment files in the output
// directory. ReadDir returns entries sorted by name, which matches the
// zero-padded segment numbering.
func (e *FFmpegEncoder) collectSegments(outputDir string) ([]string, error) {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read output directory: %w", err)
	}

	var segments []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(entry.Name(), ".ts") {
			segments = append(segments, filepath.Join(outputDir, entry.Name()))
		}
	}

	if len(segments) == 0 {
		return nil, fmt.Errorf("no segments generated in output directory")
	}

	return segments, nil
}

// WriteConcatList writes an ffmpeg concat demuxer list referencing the
// given media files, in order, into dir. The caller removes the file
// when the encode finishes, on success and failure alike.
func WriteConcatList(dir string, paths []string) (string, error) {
	if len(paths) == 0 {
		return "", fmt.Errorf("no paths for concat list")
	}

	var b strings.Builder
	for _, p := range paths {
		// Single quotes in paths must be escaped for the concat demuxer.
		escaped := strings.ReplaceAll(p, "'", `'\''`)
		fmt.Fprintf(&b, "file '%s'\n", escaped)
	}

	f, err := os.CreateTemp(dir, "concat-*.txt")
	if err != nil {
		return "", fmt.Errorf("create concat list: %w", err)
	}
	if _, err := f.WriteString(b.String()); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("write concat list: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("close concat list: %w", err)
	}

	return f.Name(), nil
}
