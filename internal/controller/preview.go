package controller

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"doc-manager-app/internal/api"
	"doc-manager-app/internal/models"
	"doc-manager-app/pkg/logger"
)

// StrategyKind selects how a file is previewed
type StrategyKind int

const (
	StrategyNoContent StrategyKind = iota
	StrategyImageEmbed
	StrategyDocumentFrame
	StrategyUnsupported
)

func (k StrategyKind) String() string {
	switch k {
	case StrategyImageEmbed:
		return "image"
	case StrategyDocumentFrame:
		return "document"
	case StrategyUnsupported:
		return "unsupported"
	default:
		return "no-content"
	}
}

// PreviewStrategy is the rendering decision for one file
type PreviewStrategy struct {
	Kind    StrategyKind
	URL     string
	Message string
}

// Resolve picks the preview strategy for file. url is the embeddable
// preview address of the file and is ignored for non-embeddable types.
func Resolve(file *models.FileRecord, url string) PreviewStrategy {
	if file == nil {
		return PreviewStrategy{Kind: StrategyNoContent}
	}

	mt, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(file.MimeType)), ";")
	mt = strings.TrimSpace(mt)
	switch {
	case strings.HasPrefix(mt, "image/"):
		return PreviewStrategy{Kind: StrategyImageEmbed, URL: url}
	case mt == "application/pdf", strings.HasPrefix(mt, "text/"):
		return PreviewStrategy{Kind: StrategyDocumentFrame, URL: url}
	default:
		return PreviewStrategy{
			Kind:    StrategyUnsupported,
			Message: "Preview is not available for this file type. Download the file to view it.",
		}
	}
}

// PreviewStatus is the state of the preview panel
type PreviewStatus string

const (
	PreviewNoContent PreviewStatus = "no-content"
	PreviewLoading   PreviewStatus = "loading"
	PreviewReady     PreviewStatus = "ready"
	PreviewError     PreviewStatus = "error"
)

// PreviewState is a snapshot of the preview panel
type PreviewState struct {
	Status   PreviewStatus
	File     *models.FileRecord
	Strategy PreviewStrategy
	Content  *api.PreviewContent
	Err      error
}

// PreviewFetcher loads preview payloads
type PreviewFetcher interface {
	Preview(ctx context.Context, id string) (*api.PreviewContent, error)
	PreviewURL(id string) string
}

// PreviewController resolves and loads previews. Payloads are cached by
// file id in an expiring LRU; concurrent loads of one file share a fetch.
type PreviewController struct {
	mu    sync.Mutex
	state PreviewState
	seq   uint64

	service  PreviewFetcher
	cache    *expirable.LRU[string, *api.PreviewContent]
	group    singleflight.Group
	onChange func(PreviewState)
	logger   *logger.Logger
}

// PreviewOption configures a PreviewController
type PreviewOption func(*PreviewController)

// WithPreviewCache enables caching of up to size payloads for ttl. A size
// of 0 disables the cache; a ttl of 0 never expires entries.
func WithPreviewCache(size int, ttl time.Duration) PreviewOption {
	return func(c *PreviewController) {
		if size <= 0 {
			c.cache = nil
			return
		}
		c.cache = expirable.NewLRU[string, *api.PreviewContent](size, nil, ttl)
	}
}

// WithPreviewChange registers the state change callback
func WithPreviewChange(fn func(PreviewState)) PreviewOption {
	return func(c *PreviewController) { c.onChange = fn }
}

// NewPreviewController creates a controller in the no-content state
func NewPreviewController(service PreviewFetcher, log *logger.Logger, opts ...PreviewOption) *PreviewController {
	if log == nil {
		log = logger.NewWithComponent("preview")
	}
	c := &PreviewController{
		state:   PreviewState{Status: PreviewNoContent},
		service: service,
		logger:  log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current snapshot
func (c *PreviewController) State() PreviewState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Resolve picks the strategy for file using the service's preview URL
func (c *PreviewController) Resolve(file *models.FileRecord) PreviewStrategy {
	if file == nil {
		return Resolve(nil, "")
	}
	return Resolve(file, c.service.PreviewURL(file.ID))
}

// Open shows file. Nil clears the panel; unsupported types are ready at
// once without a network call; everything else loads.
func (c *PreviewController) Open(ctx context.Context, file *models.FileRecord) error {
	strategy := c.Resolve(file)

	switch strategy.Kind {
	case StrategyNoContent:
		c.set(PreviewState{Status: PreviewNoContent, Strategy: strategy})
		return nil
	case StrategyUnsupported:
		c.set(PreviewState{Status: PreviewReady, File: file, Strategy: strategy})
		return nil
	}
	return c.load(ctx, file, strategy)
}

// Retry reloads after an error; in any other state it does nothing
func (c *PreviewController) Retry(ctx context.Context) error {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	if state.Status != PreviewError || state.File == nil {
		return nil
	}
	if c.cache != nil {
		c.cache.Remove(state.File.ID)
	}
	return c.load(ctx, state.File, state.Strategy)
}

// Close returns to the no-content state
func (c *PreviewController) Close() {
	c.set(PreviewState{Status: PreviewNoContent})
}

func (c *PreviewController) load(ctx context.Context, file *models.FileRecord, strategy PreviewStrategy) error {
	seq := c.set(PreviewState{Status: PreviewLoading, File: file, Strategy: strategy})

	content, err := c.fetch(ctx, file.ID)

	next := PreviewState{Status: PreviewReady, File: file, Strategy: strategy, Content: content}
	if err != nil {
		c.logger.WarnWithError("Preview failed", err)
		next = PreviewState{Status: PreviewError, File: file, Strategy: strategy, Err: err}
	}

	c.mu.Lock()
	if seq != c.seq {
		// a newer Open or Close took over
		c.mu.Unlock()
		return err
	}
	c.state = next
	c.mu.Unlock()
	c.emit(next)
	return err
}

func (c *PreviewController) fetch(ctx context.Context, id string) (*api.PreviewContent, error) {
	if c.cache != nil {
		if content, ok := c.cache.Get(id); ok {
			return content, nil
		}
	}

	v, err, shared := c.group.Do(id, func() (interface{}, error) {
		content, err := c.service.Preview(ctx, id)
		if err != nil {
			return nil, err
		}
		if c.cache != nil {
			c.cache.Add(id, content)
		}
		return content, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.DebugWithFields("Preview fetch shared", map[string]interface{}{"file_id": id})
	}
	return v.(*api.PreviewContent), nil
}

// set replaces the state and returns its sequence number
func (c *PreviewController) set(s PreviewState) uint64 {
	c.mu.Lock()
	c.seq++
	seq := c.seq
	c.state = s
	c.mu.Unlock()
	c.emit(s)
	return seq
}

func (c *PreviewController) emit(s PreviewState) {
	if c.onChange != nil {
		c.onChange(s)
	}
}
