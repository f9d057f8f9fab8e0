package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doc-manager-app/internal/api"
	"doc-manager-app/internal/models"
	apperrors "doc-manager-app/pkg/errors"
)

// fakeUploader records every request and delegates to uploadFn
type fakeUploader struct {
	mu       sync.Mutex
	requests []api.UploadRequest
	uploadFn func(ctx context.Context, req api.UploadRequest, progress api.ProgressFunc) (*models.FileRecord, error)
}

func (f *fakeUploader) Upload(ctx context.Context, req api.UploadRequest, progress api.ProgressFunc) (*models.FileRecord, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	fn := f.uploadFn
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, req, progress)
	}
	return &models.FileRecord{ID: "rec-" + req.File.Name, OriginalName: req.File.Name}, nil
}

func (f *fakeUploader) Requests() []api.UploadRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]api.UploadRequest(nil), f.requests...)
}

func localFile(name, mimeType string, size int64) models.LocalFile {
	return models.LocalFile{Name: name, MimeType: mimeType, Size: size}
}

func TestUploadController_RejectsOversizeFile(t *testing.T) {
	svc := &fakeUploader{}
	n := &recordingNotifier{}
	c := NewUploadController(svc, n, testLogger())

	added, err := c.AddFiles(localFile("huge.iso", "application/octet-stream", 104857601))

	require.Error(t, err)
	assert.Empty(t, added)
	assert.True(t, apperrors.IsValidation(err))
	assert.True(t, apperrors.HasCode(err, apperrors.ErrFileTooBig))
	assert.Contains(t, err.Error(), "100MB")
	assert.Empty(t, c.State().Tasks)
	require.Len(t, n.Errors(), 1)
	assert.Contains(t, apperrors.ClassifyError(n.Errors()[0]).GetUserMessage(), "100MB")

	_, err = c.StartUpload(context.Background(), models.UploadMetadata{})
	require.Error(t, err)
	assert.Empty(t, svc.Requests(), "nothing reaches the network")
}

func TestUploadController_AcceptsExactLimit(t *testing.T) {
	c := NewUploadController(&fakeUploader{}, nil, testLogger())

	added, err := c.AddFiles(localFile("max.bin", "application/octet-stream", 104857600))
	require.NoError(t, err)
	assert.Len(t, added, 1)
	assert.Equal(t, models.UploadPending, added[0].Status)
	_, parseErr := uuid.Parse(added[0].ID)
	assert.NoError(t, parseErr)
}

func TestAccepts(t *testing.T) {
	tests := []struct {
		name     string
		accept   []string
		file     string
		mimeType string
		expected bool
	}{
		{"empty list accepts all", nil, "a.bin", "application/octet-stream", true},
		{"extension matches despite mime", []string{".pdf"}, "x.pdf", "application/octet-stream", true},
		{"extension is case insensitive", []string{".pdf"}, "X.PDF", "", true},
		{"extension rejects other types", []string{".pdf"}, "photo.png", "image/png", false},
		{"mime prefix", []string{"image/"}, "photo.png", "image/png", true},
		{"mime wildcard", []string{"image/*"}, "photo.jpg", "image/jpeg", true},
		{"mime wildcard rejects", []string{"image/*"}, "clip.mp4", "video/mp4", false},
		{"exact mime", []string{"application/pdf"}, "doc", "application/pdf", true},
		{"mime with params", []string{"text/plain"}, "a.txt", "text/plain; charset=utf-8", true},
		{"no mime no extension match", []string{"image/"}, "noext", "", false},
		{"any entry matches", []string{".docx", "application/pdf"}, "r.pdf", "application/pdf", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Accepts(tt.accept, tt.file, tt.mimeType))
		})
	}
}

func TestUploadController_AddFilesJoinsRejections(t *testing.T) {
	n := &recordingNotifier{}
	c := NewUploadController(&fakeUploader{}, n, testLogger(), WithAccept(".pdf", " image/ "))

	added, err := c.AddFiles(
		localFile("ok.pdf", "application/octet-stream", 10),
		localFile("bad.exe", "application/x-msdownload", 10),
		localFile("pic.png", "image/png", 10),
		localFile("big.pdf", "application/pdf", 200*1024*1024),
	)

	require.Len(t, added, 2)
	assert.Equal(t, "ok.pdf", added[0].File.Name)
	assert.Equal(t, "pic.png", added[1].File.Name)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.exe")
	assert.Contains(t, err.Error(), "big.pdf")
	assert.Len(t, n.Errors(), 2)
	assert.Len(t, c.State().Tasks, 2)

	var joined interface{ Unwrap() []error }
	require.True(t, errors.As(err, &joined))
	codes := []apperrors.ErrorCode{}
	for _, e := range joined.Unwrap() {
		codes = append(codes, apperrors.ClassifyError(e).Code)
	}
	assert.Equal(t, []apperrors.ErrorCode{apperrors.ErrFileTypeNotAllowed, apperrors.ErrFileTooBig}, codes)
}

func TestUploadController_FailureDoesNotAbortRun(t *testing.T) {
	svc := &fakeUploader{uploadFn: func(ctx context.Context, req api.UploadRequest, progress api.ProgressFunc) (*models.FileRecord, error) {
		if req.File.Name == "first.pdf" {
			return nil, apperrors.NewStatusError(500, "upload file", "disk full")
		}
		return &models.FileRecord{ID: "id-2", OriginalName: req.File.Name}, nil
	}}
	n := &recordingNotifier{}
	c := NewUploadController(svc, n, testLogger())

	_, err := c.AddFiles(localFile("first.pdf", "application/pdf", 1), localFile("second.pdf", "application/pdf", 1))
	require.NoError(t, err)

	outcome, err := c.StartUpload(context.Background(), models.UploadMetadata{Description: "q3"})

	require.Error(t, err)
	assert.Equal(t, apperrors.KindPartialBatch, apperrors.KindOf(err))
	require.Len(t, outcome.Succeeded, 1)
	assert.Equal(t, "id-2", outcome.Succeeded[0].ID)
	require.Len(t, outcome.Results, 2)
	assert.Len(t, outcome.Failed(), 1)
	assert.Equal(t, "first.pdf", outcome.Failed()[0].FileName)

	reqs := svc.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "first.pdf", reqs[0].File.Name)
	assert.Equal(t, "second.pdf", reqs[1].File.Name)
	assert.Equal(t, "q3", reqs[1].Metadata.Description)

	assert.Empty(t, c.State().Tasks, "queue cleared after the run")
	assert.False(t, c.State().Running)
	require.Len(t, n.Errors(), 1)
	assert.Empty(t, n.Infos())
}

func TestUploadController_AllSucceed(t *testing.T) {
	n := &recordingNotifier{}
	c := NewUploadController(&fakeUploader{}, n, testLogger())
	_, _ = c.AddFiles(localFile("a.txt", "text/plain", 1), localFile("b.txt", "text/plain", 1))

	outcome, err := c.StartUpload(context.Background(), models.UploadMetadata{})
	require.NoError(t, err)
	assert.Len(t, outcome.Succeeded, 2)
	assert.Empty(t, outcome.Failed())
	assert.Equal(t, []string{"Uploaded 2 files"}, n.Infos())
}

func TestUploadController_ProgressMonotonicAndCapped(t *testing.T) {
	ackSeen := make(chan struct{})
	var c *UploadController
	var mu sync.Mutex
	var observed []int

	svc := &fakeUploader{uploadFn: func(ctx context.Context, req api.UploadRequest, progress api.ProgressFunc) (*models.FileRecord, error) {
		for _, p := range []float64{10, 50, 40, 100, 100} {
			progress(api.UploadProgress{Percentage: p})
		}
		close(ackSeen)
		return &models.FileRecord{ID: "r1"}, nil
	}}
	c = NewUploadController(svc, nil, testLogger(), WithUploadChange(func(s UploadState) {
		mu.Lock()
		defer mu.Unlock()
		for _, task := range s.Tasks {
			observed = append(observed, task.Progress)
		}
	}))
	_, _ = c.AddFiles(localFile("a.pdf", "application/pdf", 100))

	_, err := c.StartUpload(context.Background(), models.UploadMetadata{})
	require.NoError(t, err)
	<-ackSeen

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, observed)
	for i := 1; i < len(observed); i++ {
		assert.GreaterOrEqual(t, observed[i], observed[i-1], "progress never goes back: %v", observed)
	}
	assert.Contains(t, observed, 99)
	assert.Equal(t, 100, observed[len(observed)-1])
	idx99 := -1
	for i, p := range observed {
		if p == 100 {
			assert.Greater(t, i, idx99)
			break
		}
		if p == 99 {
			idx99 = i
		}
	}
}

func TestUploadController_FailedTaskNeverReaches100(t *testing.T) {
	var last UploadState
	var mu sync.Mutex
	svc := &fakeUploader{uploadFn: func(ctx context.Context, req api.UploadRequest, progress api.ProgressFunc) (*models.FileRecord, error) {
		progress(api.UploadProgress{Percentage: 100})
		return nil, fmt.Errorf("connection reset")
	}}
	c := NewUploadController(svc, nil, testLogger(), WithUploadChange(func(s UploadState) {
		mu.Lock()
		defer mu.Unlock()
		for _, task := range s.Tasks {
			assert.LessOrEqual(t, task.Progress, 99)
		}
		last = s
	}))
	_, _ = c.AddFiles(localFile("a.pdf", "application/pdf", 100))

	_, err := c.StartUpload(context.Background(), models.UploadMetadata{})
	require.Error(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, last.Tasks)
}

func TestUploadController_EmptyQueue(t *testing.T) {
	svc := &fakeUploader{}
	c := NewUploadController(svc, nil, testLogger())

	_, err := c.StartUpload(context.Background(), models.UploadMetadata{})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrUploadQueueEmpty))
	assert.True(t, apperrors.IsValidation(err))
	assert.Empty(t, svc.Requests())
}

func TestUploadController_Tags(t *testing.T) {
	svc := &fakeUploader{}
	c := NewUploadController(svc, nil, testLogger())

	assert.True(t, c.AddTag("finance"))
	assert.False(t, c.AddTag("finance"))
	assert.False(t, c.AddTag("   "))
	assert.True(t, c.AddTag(" q3 "))
	assert.True(t, c.AddTag("draft"))
	assert.True(t, c.RemoveTag("draft"))
	assert.False(t, c.RemoveTag("missing"))
	assert.Equal(t, []string{"finance", "q3"}, c.Tags())

	_, _ = c.AddFiles(localFile("a.pdf", "application/pdf", 1))
	_, err := c.StartUpload(context.Background(), models.UploadMetadata{Tags: []string{"q3", "extra", ""}})
	require.NoError(t, err)

	reqs := svc.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, []string{"finance", "q3", "extra"}, reqs[0].Metadata.Tags)
}

func TestUploadController_Remove(t *testing.T) {
	svc := &fakeUploader{}
	c := NewUploadController(svc, nil, testLogger())
	added, _ := c.AddFiles(localFile("a.pdf", "application/pdf", 1), localFile("b.pdf", "application/pdf", 1))

	require.NoError(t, c.Remove(added[0].ID))
	assert.Error(t, c.Remove(added[0].ID))

	_, err := c.StartUpload(context.Background(), models.UploadMetadata{})
	require.NoError(t, err)
	reqs := svc.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "b.pdf", reqs[0].File.Name)
}

func TestUploadController_DismissStopsFurtherTasks(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	svc := &fakeUploader{uploadFn: func(ctx context.Context, req api.UploadRequest, progress api.ProgressFunc) (*models.FileRecord, error) {
		if req.File.Name == "first.pdf" {
			close(started)
			<-release
		}
		return &models.FileRecord{ID: req.File.Name}, nil
	}}
	c := NewUploadController(svc, nil, testLogger())
	_, _ = c.AddFiles(localFile("first.pdf", "application/pdf", 1), localFile("second.pdf", "application/pdf", 1))
	c.AddTag("keep")

	type result struct {
		outcome UploadOutcome
		err     error
	}
	done := make(chan result)
	go func() {
		o, err := c.StartUpload(context.Background(), models.UploadMetadata{})
		done <- result{o, err}
	}()

	<-started
	c.Dismiss()
	assert.Empty(t, c.State().Tasks)
	assert.Empty(t, c.State().Tags)
	close(release)

	r := <-done
	require.NoError(t, r.err)
	assert.Len(t, r.outcome.Succeeded, 1, "in-flight call completes")
	assert.Len(t, svc.Requests(), 1, "no further task starts")
	assert.False(t, c.State().Running)
}

func TestUploadController_RejectsConcurrentRuns(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	svc := &fakeUploader{uploadFn: func(ctx context.Context, req api.UploadRequest, progress api.ProgressFunc) (*models.FileRecord, error) {
		close(started)
		<-release
		return &models.FileRecord{ID: "1"}, nil
	}}
	c := NewUploadController(svc, nil, testLogger())
	_, _ = c.AddFiles(localFile("a.pdf", "application/pdf", 1))

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.StartUpload(context.Background(), models.UploadMetadata{})
	}()
	<-started

	_, err := c.StartUpload(context.Background(), models.UploadMetadata{})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrOperationNotAllowed))

	_, err = c.AddFiles(localFile("b.pdf", "application/pdf", 1))
	assert.True(t, apperrors.HasCode(err, apperrors.ErrOperationNotAllowed))

	close(release)
	<-done
}

func TestUploadController_CanceledContextStopsRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	svc := &fakeUploader{uploadFn: func(_ context.Context, req api.UploadRequest, progress api.ProgressFunc) (*models.FileRecord, error) {
		cancel()
		return &models.FileRecord{ID: "1"}, nil
	}}
	c := NewUploadController(svc, nil, testLogger())
	_, _ = c.AddFiles(localFile("a.pdf", "application/pdf", 1), localFile("b.pdf", "application/pdf", 1))

	outcome, err := c.StartUpload(ctx, models.UploadMetadata{})
	require.NoError(t, err)
	assert.Len(t, outcome.Results, 1)
	assert.Len(t, svc.Requests(), 1)
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "100MB", formatSize(104857600))
	assert.Equal(t, "100.0MB", formatSize(104857601))
	assert.Equal(t, "512 bytes", formatSize(512))
}
