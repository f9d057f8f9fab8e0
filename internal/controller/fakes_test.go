package controller

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"doc-manager-app/internal/models"
	"doc-manager-app/pkg/logger"
)

func testLogger() *logger.Logger {
	core, _ := observer.New(zapcore.DebugLevel)
	return logger.NewWithCore(core, "controller-test")
}

// recordingNotifier keeps every message it receives
type recordingNotifier struct {
	mu     sync.Mutex
	infos  []string
	errors []error
}

func (n *recordingNotifier) NotifyInfo(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.infos = append(n.infos, message)
}

func (n *recordingNotifier) NotifyError(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, err)
}

func (n *recordingNotifier) Errors() []error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]error(nil), n.errors...)
}

func (n *recordingNotifier) Infos() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.infos...)
}

// fakeLister is an in-memory FileLister
type fakeLister struct {
	mu      sync.Mutex
	listFn  func(ctx context.Context, q models.ListQuery) (models.FilePage, error)
	queries []models.ListQuery

	deleteErrs  map[string]error
	deleted     []string
	deleteDelay time.Duration
	inFlight    int32
	maxInFlight int32

	downloads map[string]string
}

func (f *fakeLister) List(ctx context.Context, q models.ListQuery) (models.FilePage, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	fn := f.listFn
	f.mu.Unlock()

	if fn == nil {
		return models.FilePage{Items: []models.FileRecord{}}, nil
	}
	return fn(ctx, q)
}

func (f *fakeLister) Delete(ctx context.Context, id string) error {
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		max := atomic.LoadInt32(&f.maxInFlight)
		if n <= max || atomic.CompareAndSwapInt32(&f.maxInFlight, max, n) {
			break
		}
	}
	if f.deleteDelay > 0 {
		time.Sleep(f.deleteDelay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.deleteErrs[id]; err != nil {
		return err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeLister) Download(ctx context.Context, id string, dst io.Writer) (int64, error) {
	body, ok := f.downloads[id]
	if !ok {
		return 0, fmt.Errorf("no such file %s", id)
	}
	n, err := io.WriteString(dst, body)
	return int64(n), err
}

func (f *fakeLister) Queries() []models.ListQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.ListQuery(nil), f.queries...)
}

func (f *fakeLister) Deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

func records(ids ...string) []models.FileRecord {
	out := make([]models.FileRecord, len(ids))
	for i, id := range ids {
		out[i] = models.FileRecord{ID: id, OriginalName: "file-" + id + ".pdf", MimeType: "application/pdf"}
	}
	return out
}
