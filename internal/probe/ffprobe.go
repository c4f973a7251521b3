package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/hweng-dev/adsplice/internal/domain/model"
	"github.com/hweng-dev/adsplice/internal/infrastructure/metrics"
	"github.com/hweng-dev/adsplice/internal/proxypool"
)

const (
	// probeFetchBytes is how much of the segment is fetched. The first
	// half megabyte is enough for the demuxer to find the video stream.
	probeFetchBytes = 512 * 1024
)

// FFprobeConfig holds configuration for the ffprobe-backed prober.
type FFprobeConfig struct {
	// FFprobePath is the path to the ffprobe binary.
	// If empty, "ffprobe" will be used (assumes it's in PATH).
	FFprobePath string

	// Timeout bounds the whole probe: fetch plus demux.
	// Default: 10s
	Timeout time.Duration
}

// DefaultFFprobeConfig returns an FFprobeConfig with production-ready defaults.
func DefaultFFprobeConfig() FFprobeConfig {
	return FFprobeConfig{
		FFprobePath: "ffprobe",
		Timeout:     10 * time.Second,
	}
}

// FFprobeProber implements Prober by fetching a byte range of the
// segment through a proxy-pool route and demuxing it with ffprobe.
type FFprobeProber struct {
	config FFprobeConfig
	pool   *proxypool.Pool
}

// Compile-time verification that FFprobeProber implements Prober.
var _ Prober = (*FFprobeProber)(nil)

// NewFFprobeProber creates a new ffprobe-based prober.
func NewFFprobeProber(pool *proxypool.Pool, cfg FFprobeConfig) *FFprobeProber {
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &FFprobeProber{config: cfg, pool: pool}
}

// Probe fetches the first probeFetchBytes of the segment and reads the
// video stream's frame rate and pixel dimensions. The scratch file is
// deleted unconditionally before returning.
func (p *FFprobeProber) Probe(ctx context.Context, segmentURL string) (*model.VideoFormat, error) {
	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	scratch, cleanup, err := p.fetchToScratch(ctx, segmentURL)
	if err != nil {
		metrics.ProbesTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
		return nil, fmt.Errorf("fetch segment sample: %w", err)
	}
	defer cleanup()

	format, err := p.inspect(ctx, scratch)
	if err != nil {
		metrics.ProbesTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
		return nil, fmt.Errorf("inspect segment sample: %w", err)
	}

	metrics.ProbesTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	return format, nil
}

// fetchToScratch performs a partial-content fetch through a pool route
// and writes the bytes to a scratch file. The returned cleanup removes
// the file and must be called on every path.
func (p *FFprobeProber) fetchToScratch(ctx context.Context, segmentURL string) (string, func(), error) {
	client, report := p.pool.ClientFor("probe", p.config.Timeout)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, segmentURL, nil)
	if err != nil {
		return "", nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=0-%d", probeFetchBytes-1))

	resp, err := client.Do(req)
	if err != nil {
		report(err)
		return "", nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		err := fmt.Errorf("unexpected status %d", resp.StatusCode)
		report(err)
		return "", nil, err
	}

	f, err := os.CreateTemp("", "adsplice-probe-*.ts")
	if err != nil {
		report(nil) // the fetch itself succeeded
		return "", nil, fmt.Errorf("create scratch file: %w", err)
	}
	cleanup := func() { _ = os.Remove(f.Name()) }

	// Upstreams that ignore Range send the whole segment; cap the copy.
	_, copyErr := io.Copy(f, io.LimitReader(resp.Body, probeFetchBytes))
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		report(copyErr)
		cleanup()
		return "", nil, errors.Join(copyErr, closeErr)
	}

	report(nil)
	return f.Name(), cleanup, nil
}

// ffprobeOutput mirrors the subset of ffprobe's -show_streams JSON that
// the prober reads.
type ffprobeOutput struct {
	Streams []struct {
		CodecType  string `json:"codec_type"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
	} `json:"streams"`
}

// inspect demuxes the scratch file with ffprobe and extracts the first
// video stream's format.
func (p *FFprobeProber) inspect(ctx context.Context, path string) (*model.VideoFormat, error) {
	cmd := exec.CommandContext(ctx, p.config.FFprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		path,
	)

	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("probe cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("ffprobe execution failed: %w", err)
	}

	return parseProbeOutput(out)
}

// parseProbeOutput extracts {fps, width, height} from ffprobe JSON.
func parseProbeOutput(out []byte) (*model.VideoFormat, error) {
	var parsed ffprobeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	for _, s := range parsed.Streams {
		if s.CodecType != "video" {
			continue
		}
		fps, err := roundFrameRate(s.RFrameRate)
		if err != nil {
			return nil, fmt.Errorf("frame rate %q: %w", s.RFrameRate, err)
		}
		if s.Width <= 0 || s.Height <= 0 || fps <= 0 {
			return nil, fmt.Errorf("degenerate video stream %dx%d@%d", s.Width, s.Height, fps)
		}
		return &model.VideoFormat{FPS: fps, Width: s.Width, Height: s.Height}, nil
	}

	return nil, errors.New("no video stream")
}

// roundFrameRate parses a frame rate expressed as a rational
// (e.g. "30000/1001") or plain number and rounds it to the nearest integer.
func roundFrameRate(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty")
	}

	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0, err
		}
		d, err := strconv.ParseFloat(den, 64)
		if err != nil {
			return 0, err
		}
		if d == 0 {
			return 0, errors.New("zero denominator")
		}
		return int(math.Round(n / d)), nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int(math.Round(f)), nil
}
