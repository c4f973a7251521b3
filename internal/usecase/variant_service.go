package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hweng-dev/adsplice/internal/domain/model"
	"github.com/hweng-dev/adsplice/internal/domain/repository"
	"github.com/hweng-dev/adsplice/internal/infrastructure/metrics"
	"github.com/hweng-dev/adsplice/internal/transcoder"
)

const (
	// DefaultTranscodeTimeout bounds one variant encode.
	DefaultTranscodeTimeout = 120 * time.Second
	// DefaultFailureCooldown is how long a failed (creative, format) pair
	// is not retried inline. Playlist processing falls back to original
	// segments during the cooldown.
	DefaultFailureCooldown = 60 * time.Second
)

// VariantServiceConfig holds configuration for VariantService.
type VariantServiceConfig struct {
	// VariantDir is the root directory for transcoded variant segments.
	// Layout: {VariantDir}/{creativeID}/{formatKey}/segment_NNN.ts
	VariantDir string
	// TempDir is the base directory for temporary files during encoding.
	TempDir string
	// Timeout bounds one encode run.
	Timeout time.Duration
	// FailureCooldown suppresses inline retries after a failed encode.
	FailureCooldown time.Duration
}

// DefaultVariantServiceConfig returns the default configuration.
func DefaultVariantServiceConfig() VariantServiceConfig {
	return VariantServiceConfig{
		VariantDir:      "/var/lib/adsplice/variants",
		TempDir:         os.TempDir(),
		Timeout:         DefaultTranscodeTimeout,
		FailureCooldown: DefaultFailureCooldown,
	}
}

// VariantService prepares transcoded ad variants matched to a target
// format. A variant is produced at most once per (creative, format key)
// pair; concurrent requests for the same pair share one encode.
type VariantService interface {
	// EnsureVariant returns the variant of creative for target, encoding
	// it if it does not exist yet. The encode is detached from the
	// caller's cancellation: an abandoned playlist request must not
	// abort a variant other requests will want.
	EnsureVariant(ctx context.Context, creative *model.AdCreative, target model.VideoFormat) (*model.AdVariant, error)
}

type variantService struct {
	storage repository.ObjectStorage
	encoder transcoder.Encoder

	variantDir      string
	tempDir         string
	timeout         time.Duration
	failureCooldown time.Duration

	sfGroup singleflight.Group

	mu       sync.Mutex
	index    map[string]*model.AdVariant
	failures map[string]time.Time

	now func() time.Time
}

// NewVariantService creates a new VariantService instance.
func NewVariantService(
	storage repository.ObjectStorage,
	encoder transcoder.Encoder,
	cfg VariantServiceConfig,
) VariantService {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTranscodeTimeout
	}
	if cfg.FailureCooldown <= 0 {
		cfg.FailureCooldown = DefaultFailureCooldown
	}
	return &variantService{
		storage:         storage,
		encoder:         encoder,
		variantDir:      cfg.VariantDir,
		tempDir:         cfg.TempDir,
		timeout:         cfg.Timeout,
		failureCooldown: cfg.FailureCooldown,
		index:           make(map[string]*model.AdVariant),
		failures:        make(map[string]time.Time),
		now:             time.Now,
	}
}

// EnsureVariant returns an existing variant or encodes a new one.
func (s *variantService) EnsureVariant(ctx context.Context, creative *model.AdCreative, target model.VideoFormat) (*model.AdVariant, error) {
	if creative == nil {
		return nil, fmt.Errorf("nil creative")
	}
	key := variantKey(creative.ID, target)

	s.mu.Lock()
	if v, ok := s.index[key]; ok {
		s.mu.Unlock()
		return v, nil
	}
	if until, ok := s.failures[key]; ok {
		if s.now().Before(until) {
			s.mu.Unlock()
			return nil, fmt.Errorf("variant %s in failure cooldown", key)
		}
		delete(s.failures, key)
	}
	s.mu.Unlock()

	result, err, shared := s.sfGroup.Do(key, func() (any, error) {
		return s.buildVariant(ctx, creative, target)
	})

	if shared {
		metrics.SingleflightRequestsTotal.WithLabelValues(metrics.SingleflightGroupTranscode, metrics.SingleflightShared).Inc()
	} else {
		metrics.SingleflightRequestsTotal.WithLabelValues(metrics.SingleflightGroupTranscode, metrics.SingleflightInitiated).Inc()
	}

	if err != nil {
		return nil, err
	}
	return result.(*model.AdVariant), nil
}

// buildVariant runs inside singleflight: exactly one execution per key
// at a time, concurrent callers share the outcome.
func (s *variantService) buildVariant(ctx context.Context, creative *model.AdCreative, target model.VideoFormat) (*model.AdVariant, error) {
	// Detach the whole build from the triggering request: waiters on
	// the shared flight must not lose the variant because the first
	// caller hung up mid-download. The build gets its own deadline.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	key := variantKey(creative.ID, target)
	outputDir := filepath.Join(s.variantDir, creative.ID, target.Key())

	// A previous process run may have left the variant on disk.
	if segments := diskSegments(outputDir); len(segments) > 0 {
		return s.record(key, creative.ID, target, segments), nil
	}

	if !creative.HasSource() {
		return nil, fmt.Errorf("creative %s has no source media", creative.ID)
	}

	workDir, err := os.MkdirTemp(s.tempDir, "variant-"+creative.ID+"-*")
	if err != nil {
		return nil, fmt.Errorf("create work directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	input, err := s.prepareInput(ctx, creative, workDir)
	if err != nil {
		return nil, fmt.Errorf("prepare input: %w", err)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	output, err := s.encoder.EncodeVariant(ctx, input, outputDir, target)
	if err != nil {
		s.recordFailure(key)
		_ = os.RemoveAll(outputDir)
		metrics.TranscodesTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
		return nil, fmt.Errorf("encode variant: %w", err)
	}

	segments := make([]string, 0, len(output.SegmentPaths))
	for _, p := range output.SegmentPaths {
		segments = append(segments, filepath.Base(p))
	}

	s.uploadDurableCopies(ctx, creative.ID, target, output.SegmentPaths)

	metrics.TranscodesTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	slog.Info("ad variant encoded",
		"creative_id", creative.ID,
		"format", target.Key(),
		"segments", len(segments),
	)

	return s.record(key, creative.ID, target, segments), nil
}

// prepareInput downloads the creative's source media into workDir and
// returns the encoder input. A creative with pre-encoded segments is
// stitched through a concat list; otherwise the single media file is
// used directly.
func (s *variantService) prepareInput(ctx context.Context, creative *model.AdCreative, workDir string) (transcoder.EncodeInput, error) {
	if creative.MediaKey != "" {
		localPath, err := s.downloadObject(ctx, creative.MediaKey, workDir)
		if err != nil {
			return transcoder.EncodeInput{}, err
		}
		return transcoder.EncodeInput{Path: localPath}, nil
	}

	localPaths := make([]string, 0, len(creative.SegmentKeys))
	for _, segKey := range creative.SegmentKeys {
		localPath, err := s.downloadObject(ctx, segKey, workDir)
		if err != nil {
			return transcoder.EncodeInput{}, err
		}
		localPaths = append(localPaths, localPath)
	}

	listPath, err := transcoder.WriteConcatList(workDir, localPaths)
	if err != nil {
		return transcoder.EncodeInput{}, fmt.Errorf("write concat list: %w", err)
	}
	return transcoder.EncodeInput{ConcatListPath: listPath}, nil
}

// downloadObject downloads one object from storage to a local file.
func (s *variantService) downloadObject(ctx context.Context, key, workDir string) (string, error) {
	reader, err := s.storage.Download(ctx, key)
	if err != nil {
		return "", fmt.Errorf("storage download %s: %w", key, err)
	}
	defer func() { _ = reader.Close() }()

	filename := path.Base(key)
	if filename == "." || filename == "/" {
		filename = "source.bin"
	}

	localPath := filepath.Join(workDir, filename)
	file, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("create local file: %w", err)
	}

	if _, err := io.Copy(file, reader); err != nil {
		_ = file.Close()
		return "", fmt.Errorf("copy to local file: %w", err)
	}

	if err := file.Close(); err != nil {
		return "", fmt.Errorf("close local file: %w", err)
	}

	return localPath, nil
}

// uploadDurableCopies stores the encoded segments in object storage so
// other instances can restore them. Best effort: the variant is served
// from disk either way.
func (s *variantService) uploadDurableCopies(ctx context.Context, creativeID string, target model.VideoFormat, segmentPaths []string) {
	for _, segPath := range segmentPaths {
		key := path.Join("variants", creativeID, target.Key(), filepath.Base(segPath))
		if err := s.uploadFile(ctx, segPath, key); err != nil {
			slog.Warn("failed to upload durable variant copy",
				"creative_id", creativeID,
				"key", key,
				"error", err,
			)
		}
	}
}

// uploadFile uploads a single file to object storage.
func (s *variantService) uploadFile(ctx context.Context, localPath, key string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	if err := s.storage.Upload(ctx, key, file, "video/mp2t"); err != nil {
		return fmt.Errorf("storage upload: %w", err)
	}

	return nil
}

// record stores a completed variant in the in-memory index.
func (s *variantService) record(key, creativeID string, target model.VideoFormat, segments []string) *model.AdVariant {
	v := &model.AdVariant{
		CreativeID: creativeID,
		FormatKey:  target.Key(),
		Segments:   segments,
	}

	s.mu.Lock()
	s.index[key] = v
	delete(s.failures, key)
	s.mu.Unlock()

	return v
}

// recordFailure starts the retry cooldown for a key.
func (s *variantService) recordFailure(key string) {
	s.mu.Lock()
	s.failures[key] = s.now().Add(s.failureCooldown)
	s.mu.Unlock()
}

// variantKey is the index and singleflight key for a (creative, format) pair.
func variantKey(creativeID string, target model.VideoFormat) string {
	return creativeID + "/" + target.Key()
}

// diskSegments lists the .ts segments already present in a variant
// directory, sorted by name.
func diskSegments(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var segments []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(entry.Name(), ".ts") {
			segments = append(segments, entry.Name())
		}
	}
	sort.Strings(segments)
	return segments
}
