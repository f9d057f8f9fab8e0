package controller

import (
	"context"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"

	"doc-manager-app/internal/models"
	apperrors "doc-manager-app/pkg/errors"
	"doc-manager-app/pkg/logger"
)

// FileLister is the slice of the document service the list screen needs
type FileLister interface {
	List(ctx context.Context, query models.ListQuery) (models.FilePage, error)
	Delete(ctx context.Context, id string) error
	Download(ctx context.Context, id string, dst io.Writer) (int64, error)
}

// BatchResult reports every item of a batch delete
type BatchResult struct {
	Succeeded []string
	Failed    []apperrors.BatchItemError
}

// Err returns nil when every item succeeded, otherwise a PARTIAL_BATCH_FAILURE
func (r BatchResult) Err() error {
	return apperrors.NewPartialBatchFailure("delete files", r.Succeeded, r.Failed)
}

// ListController drives the file list: query changes, selection, deletes
// and downloads. It is safe for concurrent use.
type ListController struct {
	mu    sync.Mutex
	state ListState
	seq   uint64

	service     FileLister
	notifier    Notifier
	concurrency int
	onChange    func(ListState)
	logger      *logger.Logger
}

// ListOption configures a ListController
type ListOption func(*ListController)

// WithDeleteConcurrency bounds the number of parallel deletes
func WithDeleteConcurrency(n int) ListOption {
	return func(c *ListController) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithListChange registers the state change callback
func WithListChange(fn func(ListState)) ListOption {
	return func(c *ListController) { c.onChange = fn }
}

// NewListController creates a controller seeded with the default query
func NewListController(service FileLister, notifier Notifier, pageSize int, log *logger.Logger, opts ...ListOption) *ListController {
	if log == nil {
		log = logger.NewWithComponent("file-list")
	}
	c := &ListController{
		state:       ListState{Query: models.DefaultListQuery(pageSize)},
		service:     service,
		notifier:    notifierOrNop(notifier),
		concurrency: 4,
		logger:      log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current snapshot
func (c *ListController) State() ListState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Query returns the current query
func (c *ListController) Query() models.ListQuery {
	return c.State().Query
}

// Load fetches query and, if it is still the latest one when the response
// arrives, replaces items and total. On failure the previous items stay and
// the error is surfaced through the notifier.
func (c *ListController) Load(ctx context.Context, query models.ListQuery) (models.FilePage, error) {
	query = query.Normalize()

	c.mu.Lock()
	c.seq++
	seq := c.seq
	c.state = ReduceList(c.state, FetchStarted{Seq: seq, Query: query})
	snapshot := c.state
	c.mu.Unlock()
	c.emit(snapshot)

	page, err := c.service.List(ctx, query)

	c.mu.Lock()
	stale := seq != c.state.Seq
	if err != nil {
		c.state = ReduceList(c.state, FetchFailed{Seq: seq, Err: err})
	} else {
		c.state = ReduceList(c.state, FetchSucceeded{Seq: seq, Page: page})
	}
	snapshot = c.state
	c.mu.Unlock()

	if stale {
		c.logger.DebugWithFields("Discarded stale list response", map[string]interface{}{
			"seq":    seq,
			"latest": snapshot.Seq,
		})
		return page, err
	}

	c.emit(snapshot)
	if err != nil {
		c.logger.WarnWithError("List files failed", err)
		c.notifier.NotifyError(err)
	}
	return page, err
}

// Refresh re-issues the current query
func (c *ListController) Refresh(ctx context.Context) error {
	_, err := c.Load(ctx, c.Query())
	return err
}

// update applies fn to the current query and fetches only if it changed
func (c *ListController) update(ctx context.Context, fn func(q models.ListQuery) models.ListQuery) error {
	current := c.Query()
	next := fn(current).Normalize()
	if next == current {
		return nil
	}
	_, err := c.Load(ctx, next)
	return err
}

// SetSearch changes the search text and returns to page 1
func (c *ListController) SetSearch(ctx context.Context, search string) error {
	return c.update(ctx, func(q models.ListQuery) models.ListQuery {
		if q.Search != search {
			q.Search = search
			q.Page = 1
		}
		return q
	})
}

// SetType changes the category filter and returns to page 1
func (c *ListController) SetType(ctx context.Context, category models.FileCategory) error {
	return c.update(ctx, func(q models.ListQuery) models.ListQuery {
		if q.Type != category {
			q.Type = category
			q.Page = 1
		}
		return q
	})
}

// ToggleSort flips the direction for the current field; a different field
// starts ascending.
func (c *ListController) ToggleSort(ctx context.Context, field string) error {
	return c.update(ctx, func(q models.ListQuery) models.ListQuery {
		if q.SortBy == field {
			q.SortOrder = q.SortOrder.Toggle()
		} else {
			q.SortBy = field
			q.SortOrder = models.SortAsc
		}
		return q
	})
}

// SetPage moves to page (clamped to 1)
func (c *ListController) SetPage(ctx context.Context, page int) error {
	return c.update(ctx, func(q models.ListQuery) models.ListQuery {
		q.Page = page
		return q
	})
}

// NextPage moves forward unless already on the last page
func (c *ListController) NextPage(ctx context.Context) error {
	s := c.State()
	if s.Query.Page >= s.TotalPages() {
		return nil
	}
	return c.SetPage(ctx, s.Query.Page+1)
}

// PrevPage moves back unless already on page 1
func (c *ListController) PrevPage(ctx context.Context) error {
	return c.SetPage(ctx, c.Query().Page-1)
}

// SetSelected adds or removes ids from the selection
func (c *ListController) SetSelected(selected bool, ids ...string) {
	c.apply(SelectionChanged{IDs: ids, Selected: selected})
}

// ToggleSelected flips the selection of one id
func (c *ListController) ToggleSelected(id string) {
	c.mu.Lock()
	selected := !c.state.IsSelected(id)
	c.mu.Unlock()
	c.SetSelected(selected, id)
}

// SelectPage selects every item currently shown
func (c *ListController) SelectPage() {
	s := c.State()
	ids := make([]string, len(s.Items))
	for i, item := range s.Items {
		ids[i] = item.ID
	}
	c.SetSelected(true, ids...)
}

// ClearSelection empties the selection
func (c *ListController) ClearSelection() {
	c.apply(SelectionCleared{})
}

func (c *ListController) apply(ev ListEvent) {
	c.mu.Lock()
	c.state = ReduceList(c.state, ev)
	snapshot := c.state
	c.mu.Unlock()
	c.emit(snapshot)
}

// Delete removes one file. Confirmation is the caller's job.
func (c *ListController) Delete(ctx context.Context, rec models.FileRecord) error {
	err := c.service.Delete(ctx, rec.ID)
	if err != nil {
		c.logger.ErrorWithOperation("delete_file", "Delete failed", err)
		c.notifier.NotifyError(err)
	} else {
		c.SetSelected(false, rec.ID)
		c.notifier.NotifyInfo(fmt.Sprintf("Deleted %s", rec.OriginalName))
	}

	c.refreshAfterMutation(ctx)
	return err
}

// DeleteSelected deletes every selected id concurrently and reports each
// outcome. Succeeded ids leave the selection, failed ids stay. The list is
// refreshed once all requests have settled, whatever their outcome.
func (c *ListController) DeleteSelected(ctx context.Context) (BatchResult, error) {
	ids := c.State().SelectedIDs()
	if len(ids) == 0 {
		return BatchResult{}, apperrors.NewValidationError(apperrors.ErrInvalidInput, "no files selected")
	}

	errs := make([]error, len(ids))
	g := new(errgroup.Group)
	g.SetLimit(c.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			errs[i] = c.service.Delete(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	var result BatchResult
	for i, id := range ids {
		if errs[i] != nil {
			result.Failed = append(result.Failed, apperrors.BatchItemError{ID: id, Err: errs[i]})
		} else {
			result.Succeeded = append(result.Succeeded, id)
		}
	}

	c.SetSelected(false, result.Succeeded...)

	err := result.Err()
	c.logger.InfoWithFields("Batch delete finished", map[string]interface{}{
		"succeeded": len(result.Succeeded),
		"failed":    len(result.Failed),
	})
	switch {
	case err != nil:
		c.notifier.NotifyError(err)
	default:
		c.notifier.NotifyInfo(fmt.Sprintf("Deleted %d files", len(result.Succeeded)))
	}

	c.refreshAfterMutation(ctx)
	return result, err
}

// Download streams one file into dst
func (c *ListController) Download(ctx context.Context, rec models.FileRecord, dst io.Writer) (int64, error) {
	n, err := c.service.Download(ctx, rec.ID, dst)
	if err != nil {
		c.logger.ErrorWithOperation("download_file", "Download failed", err)
		c.notifier.NotifyError(err)
		return n, err
	}
	c.notifier.NotifyInfo(fmt.Sprintf("Downloaded %s", rec.OriginalName))
	return n, nil
}

// refreshAfterMutation reloads the list. Its failure is already notified by
// Load and must not mask the result of the mutation.
func (c *ListController) refreshAfterMutation(ctx context.Context) {
	if err := c.Refresh(ctx); err != nil {
		c.logger.WarnWithError("Refresh after delete failed", err)
	}
}

func (c *ListController) emit(s ListState) {
	if c.onChange != nil {
		c.onChange(s)
	}
}
