package usecase

import (
	"context"
	"io"
	"strconv"
	"time"

	"github.com/hweng-dev/adsplice/internal/domain/model"
	"github.com/hweng-dev/adsplice/internal/domain/repository"
	"github.com/hweng-dev/adsplice/internal/transcoder"
)

// mockCatalog provides a configurable mock for AdCatalog.
type mockCatalog struct {
	listActiveFn func(ctx context.Context) ([]*model.AdCreative, error)
	getByIDFn    func(ctx context.Context, id string) (*model.AdCreative, error)
}

func (m *mockCatalog) ListActive(ctx context.Context) ([]*model.AdCreative, error) {
	if m.listActiveFn != nil {
		return m.listActiveFn(ctx)
	}
	return nil, nil
}

func (m *mockCatalog) GetByID(ctx context.Context, id string) (*model.AdCreative, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, repository.ErrCreativeNotFound
}

// mockSettings resolves keys from a plain map; absent keys fall back.
type mockSettings struct {
	values map[string]string
}

func (m *mockSettings) Get(ctx context.Context, key, fallback string) string {
	if v, ok := m.values[key]; ok {
		return v
	}
	return fallback
}

func (m *mockSettings) GetInt(ctx context.Context, key string, fallback int) int {
	if v, ok := m.values[key]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func (m *mockSettings) GetFloat(ctx context.Context, key string, fallback float64) float64 {
	if v, ok := m.values[key]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func (m *mockSettings) GetBool(ctx context.Context, key string, fallback bool) bool {
	if v, ok := m.values[key]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// mockObjectStorage provides a configurable mock for ObjectStorage.
type mockObjectStorage struct {
	uploadFn   func(ctx context.Context, key string, reader io.Reader, contentType string) error
	downloadFn func(ctx context.Context, key string) (io.ReadCloser, error)
	deleteFn   func(ctx context.Context, key string) error
	existsFn   func(ctx context.Context, key string) (bool, error)
}

func (m *mockObjectStorage) Upload(ctx context.Context, key string, reader io.Reader, contentType string) error {
	if m.uploadFn != nil {
		return m.uploadFn(ctx, key, reader, contentType)
	}
	return nil
}

func (m *mockObjectStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	if m.downloadFn != nil {
		return m.downloadFn(ctx, key)
	}
	return nil, repository.ErrObjectNotFound
}

func (m *mockObjectStorage) Delete(ctx context.Context, key string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, key)
	}
	return nil
}

func (m *mockObjectStorage) Exists(ctx context.Context, key string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, key)
	}
	return false, nil
}

// mockMessageQueue provides a configurable mock for MessageQueue.
type mockMessageQueue struct {
	publishPrewarmTaskFn  func(ctx context.Context, task repository.PrewarmTask) error
	consumePrewarmTasksFn func(ctx context.Context, handler func(task repository.PrewarmTask) error) error
}

func (m *mockMessageQueue) PublishPrewarmTask(ctx context.Context, task repository.PrewarmTask) error {
	if m.publishPrewarmTaskFn != nil {
		return m.publishPrewarmTaskFn(ctx, task)
	}
	return nil
}

func (m *mockMessageQueue) ConsumePrewarmTasks(ctx context.Context, handler func(task repository.PrewarmTask) error) error {
	if m.consumePrewarmTasksFn != nil {
		return m.consumePrewarmTasksFn(ctx, handler)
	}
	return nil
}

func (m *mockMessageQueue) Close() error {
	return nil
}

// mockEncoder provides a configurable mock for Encoder.
type mockEncoder struct {
	encodeVariantFn func(ctx context.Context, input transcoder.EncodeInput, outputDir string, target model.VideoFormat) (*transcoder.EncodeOutput, error)
}

func (m *mockEncoder) EncodeVariant(ctx context.Context, input transcoder.EncodeInput, outputDir string, target model.VideoFormat) (*transcoder.EncodeOutput, error) {
	if m.encodeVariantFn != nil {
		return m.encodeVariantFn(ctx, input, outputDir, target)
	}
	return &transcoder.EncodeOutput{}, nil
}

// mockProber provides a configurable mock for Prober.
type mockProber struct {
	probeFn func(ctx context.Context, segmentURL string) (*model.VideoFormat, error)
}

func (m *mockProber) Probe(ctx context.Context, segmentURL string) (*model.VideoFormat, error) {
	if m.probeFn != nil {
		return m.probeFn(ctx, segmentURL)
	}
	format := model.DefaultFormat
	return &format, nil
}

// mockVariantService provides a configurable mock for VariantService.
type mockVariantService struct {
	ensureVariantFn func(ctx context.Context, creative *model.AdCreative, target model.VideoFormat) (*model.AdVariant, error)
}

func (m *mockVariantService) EnsureVariant(ctx context.Context, creative *model.AdCreative, target model.VideoFormat) (*model.AdVariant, error) {
	if m.ensureVariantFn != nil {
		return m.ensureVariantFn(ctx, creative, target)
	}
	return &model.AdVariant{
		CreativeID: creative.ID,
		FormatKey:  target.Key(),
		Segments:   []string{"segment_000.ts"},
	}, nil
}

// mockPlaylistCache provides a configurable mock for PlaylistCache.
type mockPlaylistCache struct {
	getFn    func(ctx context.Context, digest string) (*model.ProcessedPlaylist, error)
	setFn    func(ctx context.Context, digest string, playlist *model.ProcessedPlaylist, ttl time.Duration) error
	deleteFn func(ctx context.Context, digest string) error
}

func (m *mockPlaylistCache) Get(ctx context.Context, digest string) (*model.ProcessedPlaylist, error) {
	if m.getFn != nil {
		return m.getFn(ctx, digest)
	}
	return nil, nil
}

func (m *mockPlaylistCache) Set(ctx context.Context, digest string, playlist *model.ProcessedPlaylist, ttl time.Duration) error {
	if m.setFn != nil {
		return m.setFn(ctx, digest, playlist, ttl)
	}
	return nil
}

func (m *mockPlaylistCache) Delete(ctx context.Context, digest string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, digest)
	}
	return nil
}

// mockPlaylistService provides a configurable mock for PlaylistService.
type mockPlaylistService struct {
	processFn func(ctx context.Context, input ProcessInput) (*model.ProcessedPlaylist, error)
	calls     int
}

func (m *mockPlaylistService) Process(ctx context.Context, input ProcessInput) (*model.ProcessedPlaylist, error) {
	m.calls++
	if m.processFn != nil {
		return m.processFn(ctx, input)
	}
	return &model.ProcessedPlaylist{Playlist: input.Playlist}, nil
}
