package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"doc-manager-app/internal/models"
	apperrors "doc-manager-app/pkg/errors"
	"doc-manager-app/pkg/logger"
)

func testLogger() *logger.Logger {
	core, _ := observer.New(zapcore.DebugLevel)
	return logger.NewWithCore(core, "api-test")
}

func fastRetry() apperrors.RetryConfig {
	return apperrors.RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	opts = append([]Option{WithRetry(fastRetry())}, opts...)
	client, err := NewClient(server.URL+"/", 5*time.Second, testLogger(), opts...)
	require.NoError(t, err)
	return client
}

func staticToken(token string) TokenSource {
	return func(ctx context.Context) (string, error) { return token, nil }
}

func TestNewClient_InvalidURL(t *testing.T) {
	_, err := NewClient("not a url", time.Second, testLogger())
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrInvalidConfig))
}

func TestClient_List(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/files", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))

		q := r.URL.Query()
		assert.Equal(t, "report", q.Get("search"))
		assert.Equal(t, "document", q.Get("type"))
		assert.Equal(t, "createdAt", q.Get("sortBy"))
		assert.Equal(t, "desc", q.Get("sortOrder"))
		assert.Equal(t, "2", q.Get("page"))
		assert.Equal(t, "10", q.Get("pageSize"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"items": []map[string]interface{}{
				{"id": "f1", "originalName": "q3.pdf", "mimeType": "application/pdf", "size": 2048, "downloadCount": 4, "createdAt": "2024-05-01T10:00:00Z"},
			},
			"total": 11,
		})
	}, WithTokenSource(staticToken("tok-1")))

	q := models.DefaultListQuery(10)
	q.Search = "report"
	q.Type = models.CategoryDocument
	q.Page = 2

	page, err := client.List(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, 11, page.Total)
	assert.Equal(t, "q3.pdf", page.Items[0].OriginalName)
	assert.Equal(t, 4, page.Items[0].DownloadCount)
	assert.Equal(t, models.CategoryDocument, page.Items[0].Category())
}

func TestClient_List_EmptyItems(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"total":0}`))
	})

	page, err := client.List(context.Background(), models.DefaultListQuery(10))
	require.NoError(t, err)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
}

func TestClient_List_RetriesUnavailable(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"items":[],"total":0}`))
	})

	_, err := client.List(context.Background(), models.DefaultListQuery(10))
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_List_StatusErrors(t *testing.T) {
	tests := []struct {
		status int
		code   apperrors.ErrorCode
	}{
		{http.StatusUnauthorized, apperrors.ErrUnauthorized},
		{http.StatusNotFound, apperrors.ErrFileNotFound},
		{http.StatusInternalServerError, apperrors.ErrBackendError},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			var calls int32
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"message":"nope"}`))
			})

			_, err := client.List(context.Background(), models.DefaultListQuery(10))
			require.Error(t, err)

			appErr := apperrors.ClassifyError(err)
			assert.Equal(t, tt.code, appErr.Code)
			assert.Equal(t, tt.status, appErr.StatusCode)
			assert.Contains(t, appErr.Message, "nope")
			assert.Equal(t, apperrors.KindTransport, appErr.Kind())
			assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "non-recoverable errors are not retried")
		})
	}
}

func TestClient_List_MalformedJSON(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items":`))
	})

	_, err := client.List(context.Background(), models.DefaultListQuery(10))
	assert.True(t, apperrors.HasCode(err, apperrors.ErrBackendError))
}

func TestClient_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client, err := NewClient(url, time.Second, testLogger(), WithRetry(fastRetry()))
	require.NoError(t, err)

	_, err = client.Stat(context.Background(), "f1")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrNetworkError, apperrors.ClassifyError(err).Code)
}

func TestClient_TokenSourceError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request must not be sent without a token")
	}, WithTokenSource(func(ctx context.Context) (string, error) {
		return "", assert.AnError
	}))

	err := client.Delete(context.Background(), "f1")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrUnauthorized))
}

func TestClient_EmptyTokenSendsNoHeader(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	}, WithTokenSource(staticToken("")))

	require.NoError(t, client.Delete(context.Background(), "f1"))
}

func TestClient_Stat(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/files/a%2Fb", r.URL.RawPath)
		w.Write([]byte(`{"id":"a/b","originalName":"x.png","mimeType":"image/png","size":3}`))
	})

	rec, err := client.Stat(context.Background(), "a/b")
	require.NoError(t, err)
	assert.Equal(t, "a/b", rec.ID)
	assert.Equal(t, int64(3), rec.Size)
}

func TestClient_Delete(t *testing.T) {
	var method, path string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, client.Delete(context.Background(), "f9"))
	assert.Equal(t, http.MethodDelete, method)
	assert.Equal(t, "/files/f9", path)
}

func TestClient_Download(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/files/f1/download", r.URL.Path)
		w.Write([]byte("file-bytes"))
	})

	var buf bytes.Buffer
	n, err := client.Download(context.Background(), "f1", &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)
	assert.Equal(t, "file-bytes", buf.String())
}

func TestClient_Download_NotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	var buf bytes.Buffer
	_, err := client.Download(context.Background(), "gone", &buf)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrFileNotFound))
	assert.Zero(t, buf.Len())
}

func TestClient_Preview(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/files/preview/f1", r.URL.Path)
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte{0x89, 'P', 'N', 'G'})
	})

	content, err := client.Preview(context.Background(), "f1")
	require.NoError(t, err)
	assert.Equal(t, "image/png", content.ContentType)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, content.Data)
	assert.Equal(t, "f1", content.FileID)
	assert.Contains(t, client.PreviewURL("f1"), "/files/preview/f1")
}

func TestClient_ListFolders(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/folders", r.URL.Path)
		w.Write([]byte(`[{"id":"1","name":"Root","path":"/"},{"id":"2","name":"HR","path":"/HR","parentId":"1"}]`))
	})

	folders, err := client.ListFolders(context.Background())
	require.NoError(t, err)
	require.Len(t, folders, 2)
	assert.True(t, folders[0].IsRoot())
	assert.Equal(t, "1", folders[1].ParentID)
}

func TestClient_Login(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/login", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"), "login is sent without a session")

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["username"] != "ana" || body["password"] != "s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"accessToken":"jwt-token"}`))
	}, WithTokenSource(staticToken("stale")))

	token, err := client.Login(context.Background(), "ana", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "jwt-token", token)

	_, err = client.Login(context.Background(), "ana", "wrong")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrUnauthorized))
}

func TestClient_Login_NoToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})

	_, err := client.Login(context.Background(), "ana", "x")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrBackendError))
}

func TestClient_Upload(t *testing.T) {
	content := bytes.Repeat([]byte("a"), 64*1024)

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/files", r.URL.Path)
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}

		assert.Equal(t, "folder-7", r.FormValue("folderId"))
		assert.Equal(t, "quarterly", r.FormValue("description"))
		assert.Equal(t, "true", r.FormValue("isPublic"))

		var tags []string
		assert.NoError(t, json.Unmarshal([]byte(r.FormValue("tags")), &tags))
		assert.Equal(t, []string{"finance", "q3"}, tags)

		file, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "report.pdf", header.Filename)
		assert.Equal(t, "application/pdf", header.Header.Get("Content-Type"))
		assert.Len(t, data, len(content))

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"new-1","originalName":"report.pdf","mimeType":"application/pdf","size":65536}`))
	})

	var mu sync.Mutex
	var updates []UploadProgress
	rec, err := client.Upload(context.Background(), UploadRequest{
		File: models.LocalFileFromBytes("report.pdf", "application/pdf", content),
		Metadata: models.UploadMetadata{
			FolderID:    "folder-7",
			Description: "quarterly",
			IsPublic:    true,
			Tags:        []string{"finance", "q3"},
		},
	}, func(p UploadProgress) {
		mu.Lock()
		updates = append(updates, p)
		mu.Unlock()
	})

	require.NoError(t, err)
	assert.Equal(t, "new-1", rec.ID)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, updates)
	for i := 1; i < len(updates); i++ {
		assert.GreaterOrEqual(t, updates[i].BytesUploaded, updates[i-1].BytesUploaded)
	}
	last := updates[len(updates)-1]
	assert.Equal(t, int64(len(content)), last.BytesUploaded)
	assert.InDelta(t, 100.0, last.Percentage, 0.001)
}

func TestClient_Upload_OmitsEmptyOptionalFields(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		_, hasFolder := r.MultipartForm.Value["folderId"]
		_, hasDescription := r.MultipartForm.Value["description"]
		assert.False(t, hasFolder)
		assert.False(t, hasDescription)
		assert.Equal(t, "[]", r.FormValue("tags"))
		assert.Equal(t, "false", r.FormValue("isPublic"))
		w.Write([]byte(`{"id":"n"}`))
	})

	_, err := client.Upload(context.Background(), UploadRequest{
		File: models.LocalFileFromBytes("a.txt", "", []byte("hi")),
	}, nil)
	require.NoError(t, err)
}

func TestClient_Upload_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.Upload(context.Background(), UploadRequest{
		File: models.LocalFileFromBytes("a.txt", "text/plain", []byte("hi")),
	}, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, apperrors.ClassifyError(err).StatusCode)
}

func TestClient_Upload_NoContent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	_, err := client.Upload(context.Background(), UploadRequest{File: models.LocalFile{Name: "ghost"}}, nil)
	assert.True(t, apperrors.IsValidation(err))
}

func TestProgressReader(t *testing.T) {
	var got []UploadProgress
	pr := &progressReader{
		reader:     bytes.NewReader(make([]byte, 10)),
		totalBytes: 10,
		onProgress: func(p UploadProgress) { got = append(got, p) },
	}

	buf := make([]byte, 4)
	for {
		if _, err := pr.Read(buf); err != nil {
			break
		}
	}

	require.Len(t, got, 3)
	assert.InDelta(t, 40.0, got[0].Percentage, 0.001)
	assert.InDelta(t, 100.0, got[2].Percentage, 0.001)
}
