package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"doc-manager-app/internal/api"
	"doc-manager-app/internal/models"
	apperrors "doc-manager-app/pkg/errors"
	"doc-manager-app/pkg/logger"
)

const mib = 1024 * 1024

// transportProgressCap keeps a task below 100 until the backend acknowledges it
const transportProgressCap = 99

// Uploader sends one file to the document service
type Uploader interface {
	Upload(ctx context.Context, req api.UploadRequest, progress api.ProgressFunc) (*models.FileRecord, error)
}

// UploadState is a snapshot of the upload queue
type UploadState struct {
	Tasks   []models.UploadTask
	Tags    []string
	Running bool
}

// TaskResult is the outcome of one task in a run
type TaskResult struct {
	TaskID   string
	FileName string
	Record   *models.FileRecord
	Err      error
}

// UploadOutcome summarises a completed run
type UploadOutcome struct {
	Succeeded []models.FileRecord
	Results   []TaskResult
}

// Failed returns the results that did not succeed
func (o UploadOutcome) Failed() []TaskResult {
	var failed []TaskResult
	for _, r := range o.Results {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	return failed
}

// UploadController validates picked files, keeps the queue and tag set, and
// uploads tasks strictly one at a time in submission order.
type UploadController struct {
	mu      sync.Mutex
	tasks   []*models.UploadTask
	tags    []string
	running bool
	// generation changes on Dismiss so a running loop stops picking tasks
	generation uint64

	maxSize  int64
	accept   []string
	service  Uploader
	notifier Notifier
	onChange func(UploadState)
	newID    func() string
	logger   *logger.Logger
}

// UploadOption configures an UploadController
type UploadOption func(*UploadController)

// WithMaxSize overrides the per-file size limit
func WithMaxSize(n int64) UploadOption {
	return func(c *UploadController) {
		if n > 0 {
			c.maxSize = n
		}
	}
}

// WithAccept sets the allowlist of extensions (".pdf") and MIME fragments
// ("image/", "image/*", "application/pdf"). Empty accepts everything.
func WithAccept(accept ...string) UploadOption {
	return func(c *UploadController) {
		c.accept = nil
		for _, a := range accept {
			if a = strings.ToLower(strings.TrimSpace(a)); a != "" {
				c.accept = append(c.accept, a)
			}
		}
	}
}

// WithUploadChange registers the state change callback
func WithUploadChange(fn func(UploadState)) UploadOption {
	return func(c *UploadController) { c.onChange = fn }
}

// NewUploadController creates a controller with the 100MB default limit
func NewUploadController(service Uploader, notifier Notifier, log *logger.Logger, opts ...UploadOption) *UploadController {
	if log == nil {
		log = logger.NewWithComponent("upload")
	}
	c := &UploadController{
		maxSize:  100 * mib,
		service:  service,
		notifier: notifierOrNop(notifier),
		newID:    uuid.NewString,
		logger:   log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns a snapshot of the queue
func (c *UploadController) State() UploadState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *UploadController) snapshotLocked() UploadState {
	s := UploadState{
		Tasks:   make([]models.UploadTask, len(c.tasks)),
		Tags:    append([]string(nil), c.tags...),
		Running: c.running,
	}
	for i, t := range c.tasks {
		s.Tasks[i] = *t
	}
	return s
}

// Validate checks a file against the size limit and the accept list
func (c *UploadController) Validate(f models.LocalFile) error {
	if f.Size > c.maxSize {
		return apperrors.NewValidationError(apperrors.ErrFileTooBig,
			fmt.Sprintf("%q is %s and exceeds the %s size limit", f.Name, formatSize(f.Size), formatSize(c.maxSize)))
	}
	if !Accepts(c.accept, f.Name, f.MimeType) {
		return apperrors.NewValidationError(apperrors.ErrFileTypeNotAllowed,
			fmt.Sprintf("%q (%s) is not an accepted file type; allowed: %s", f.Name, f.MimeType, strings.Join(c.accept, ", ")))
	}
	return nil
}

// Accepts reports whether a file matches an allowlist entry. Entries
// starting with "." match the file name suffix, others match the MIME type
// by prefix ("image/*" is the same as "image/").
func Accepts(accept []string, name, mimeType string) bool {
	if len(accept) == 0 {
		return true
	}
	lowerName := strings.ToLower(name)
	mt, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(mimeType)), ";")
	mt = strings.TrimSpace(mt)

	for _, a := range accept {
		a = strings.ToLower(strings.TrimSpace(a))
		switch {
		case a == "":
			continue
		case strings.HasPrefix(a, "."):
			if strings.HasSuffix(lowerName, a) {
				return true
			}
		default:
			a = strings.TrimSuffix(a, "*")
			if mt != "" && strings.HasPrefix(mt, a) {
				return true
			}
		}
	}
	return false
}

// AddFiles queues every valid file. Each rejection is reported through the
// notifier; the returned error joins all of them.
func (c *UploadController) AddFiles(files ...models.LocalFile) ([]models.UploadTask, error) {
	var rejected []error
	var added []models.UploadTask

	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		err := apperrors.NewValidationError(apperrors.ErrOperationNotAllowed, "cannot add files while an upload is running")
		c.notifier.NotifyError(err)
		return nil, err
	}
	for _, f := range files {
		if err := c.Validate(f); err != nil {
			rejected = append(rejected, err)
			continue
		}
		task := &models.UploadTask{ID: c.newID(), File: f, Status: models.UploadPending}
		c.tasks = append(c.tasks, task)
		added = append(added, *task)
	}
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	for _, err := range rejected {
		c.logger.WarnWithError("File rejected", err)
		c.notifier.NotifyError(err)
	}
	if len(added) > 0 || len(rejected) > 0 {
		c.emit(snapshot)
	}
	return added, errors.Join(rejected...)
}

// Remove drops a pending task from the queue
func (c *UploadController) Remove(taskID string) error {
	c.mu.Lock()
	idx := c.indexLocked(taskID)
	if idx < 0 {
		c.mu.Unlock()
		return apperrors.NewValidationError(apperrors.ErrInvalidInput, fmt.Sprintf("no queued task %s", taskID))
	}
	if c.tasks[idx].Status != models.UploadPending {
		c.mu.Unlock()
		return apperrors.NewValidationError(apperrors.ErrOperationNotAllowed, "only pending tasks can be removed")
	}
	c.tasks = append(c.tasks[:idx], c.tasks[idx+1:]...)
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	c.emit(snapshot)
	return nil
}

// AddTag adds a tag; blanks and duplicates are ignored
func (c *UploadController) AddTag(tag string) bool {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return false
	}

	c.mu.Lock()
	for _, t := range c.tags {
		if t == tag {
			c.mu.Unlock()
			return false
		}
	}
	c.tags = append(c.tags, tag)
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	c.emit(snapshot)
	return true
}

// RemoveTag removes a tag if present
func (c *UploadController) RemoveTag(tag string) bool {
	tag = strings.TrimSpace(tag)

	c.mu.Lock()
	for i, t := range c.tags {
		if t == tag {
			c.tags = append(c.tags[:i], c.tags[i+1:]...)
			snapshot := c.snapshotLocked()
			c.mu.Unlock()
			c.emit(snapshot)
			return true
		}
	}
	c.mu.Unlock()
	return false
}

// Tags returns the tag set in insertion order
func (c *UploadController) Tags() []string {
	return c.State().Tags
}

// Dismiss discards the queue and the tags. An in-flight upload is not
// aborted but no further task is started.
func (c *UploadController) Dismiss() {
	c.mu.Lock()
	c.generation++
	c.tasks = nil
	c.tags = nil
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	c.emit(snapshot)
}

// StartUpload uploads every queued task in order. Failures are reported
// and do not stop the run. When the run ends the queue is cleared and the
// outcome lists every result; the error is a PARTIAL_BATCH_FAILURE if any
// task failed.
func (c *UploadController) StartUpload(ctx context.Context, meta models.UploadMetadata) (UploadOutcome, error) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return UploadOutcome{}, apperrors.NewValidationError(apperrors.ErrOperationNotAllowed, "an upload is already running")
	}
	if len(c.tasks) == 0 {
		c.mu.Unlock()
		err := apperrors.NewValidationError(apperrors.ErrUploadQueueEmpty, "no files queued for upload")
		c.notifier.NotifyError(err)
		return UploadOutcome{}, err
	}
	c.running = true
	generation := c.generation
	ids := make([]string, len(c.tasks))
	for i, t := range c.tasks {
		ids[i] = t.ID
	}
	meta.Tags = mergeTags(c.tags, meta.Tags)
	snapshot := c.snapshotLocked()
	c.mu.Unlock()
	c.emit(snapshot)

	var outcome UploadOutcome
	var failed []apperrors.BatchItemError
	var succeeded []string

	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		file, ok := c.begin(id, generation)
		if !ok {
			if c.dismissed(generation) {
				break
			}
			continue // removed before its turn
		}

		rec, err := c.service.Upload(ctx, api.UploadRequest{File: file, Metadata: meta}, func(p api.UploadProgress) {
			c.progress(id, int(p.Percentage))
		})
		if err == nil && rec == nil {
			err = apperrors.NewAppError(apperrors.ErrBackendError, "upload acknowledged without a file record", nil)
		}
		c.finish(id, rec, err)

		outcome.Results = append(outcome.Results, TaskResult{TaskID: id, FileName: file.Name, Record: rec, Err: err})
		if err != nil {
			failed = append(failed, apperrors.BatchItemError{ID: id, Err: err})
			c.logger.ErrorWithOperation("upload_file", "Upload failed", err)
			c.notifier.NotifyError(err)
			continue
		}
		succeeded = append(succeeded, id)
		outcome.Succeeded = append(outcome.Succeeded, *rec)
	}

	c.mu.Lock()
	c.running = false
	if c.generation == generation {
		c.tasks = nil
	}
	snapshot = c.snapshotLocked()
	c.mu.Unlock()
	c.emit(snapshot)

	c.logger.InfoWithFields("Upload run finished", map[string]interface{}{
		"succeeded": len(outcome.Succeeded),
		"failed":    len(failed),
	})
	if len(failed) == 0 && len(outcome.Succeeded) > 0 {
		c.notifier.NotifyInfo(fmt.Sprintf("Uploaded %d files", len(outcome.Succeeded)))
	}
	return outcome, apperrors.NewPartialBatchFailure("upload files", succeeded, failed)
}

// begin marks a task as uploading unless it was removed or dismissed
func (c *UploadController) begin(id string, generation uint64) (models.LocalFile, bool) {
	c.mu.Lock()
	if c.generation != generation {
		c.mu.Unlock()
		return models.LocalFile{}, false
	}
	idx := c.indexLocked(id)
	if idx < 0 {
		c.mu.Unlock()
		return models.LocalFile{}, false
	}
	task := c.tasks[idx]
	task.Status = models.UploadUploading
	task.Progress = 0
	file := task.File
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	c.emit(snapshot)
	return file, true
}

// progress raises a task's progress, never above the transport cap and
// never backwards
func (c *UploadController) progress(id string, pct int) {
	if pct > transportProgressCap {
		pct = transportProgressCap
	}

	c.mu.Lock()
	idx := c.indexLocked(id)
	if idx < 0 || c.tasks[idx].Status != models.UploadUploading || pct <= c.tasks[idx].Progress {
		c.mu.Unlock()
		return
	}
	c.tasks[idx].Progress = pct
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	c.emit(snapshot)
}

func (c *UploadController) finish(id string, rec *models.FileRecord, err error) {
	c.mu.Lock()
	idx := c.indexLocked(id)
	if idx < 0 {
		c.mu.Unlock()
		return
	}
	task := c.tasks[idx]
	if err != nil {
		task.Status = models.UploadFailed
		task.Err = err
	} else {
		task.Status = models.UploadSucceeded
		task.Progress = 100
		task.Record = rec
	}
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	c.emit(snapshot)
}

func (c *UploadController) dismissed(generation uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation != generation
}

func (c *UploadController) indexLocked(id string) int {
	for i, t := range c.tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (c *UploadController) emit(s UploadState) {
	if c.onChange != nil {
		c.onChange(s)
	}
}

// mergeTags unions tag lists, keeping first-seen order
func mergeTags(lists ...[]string) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, list := range lists {
		for _, t := range list {
			t = strings.TrimSpace(t)
			if t == "" || seen[t] {
				continue
			}
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// formatSize renders whole mebibytes as "100MB", anything else in bytes
func formatSize(n int64) string {
	if n >= mib && n%mib == 0 {
		return fmt.Sprintf("%dMB", n/mib)
	}
	if n >= mib {
		return fmt.Sprintf("%.1fMB", float64(n)/mib)
	}
	return fmt.Sprintf("%d bytes", n)
}
