package models

import (
	"bytes"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// LocalFile is a file picked for upload. Open is called once per upload
// attempt.
type LocalFile struct {
	Name     string
	Size     int64
	MimeType string
	Open     func() (io.ReadCloser, error)
}

// Ext returns the lower-cased extension including the dot
func (f LocalFile) Ext() string {
	return strings.ToLower(filepath.Ext(f.Name))
}

// LocalFileFromPath stats a file on disk and guesses its MIME type from the
// extension.
func LocalFileFromPath(path string) (LocalFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return LocalFile{}, err
	}
	return LocalFile{
		Name:     info.Name(),
		Size:     info.Size(),
		MimeType: DetectMimeType(info.Name()),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

// LocalFileFromBytes wraps in-memory content
func LocalFileFromBytes(name, mimeType string, content []byte) LocalFile {
	if mimeType == "" {
		mimeType = DetectMimeType(name)
	}
	return LocalFile{
		Name:     name,
		Size:     int64(len(content)),
		MimeType: mimeType,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(content)), nil
		},
	}
}

// DetectMimeType guesses a MIME type from a file name
func DetectMimeType(name string) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); t != "" {
		return t
	}
	return "application/octet-stream"
}

// UploadStatus is the lifecycle state of an upload task
type UploadStatus string

const (
	UploadPending   UploadStatus = "pending"
	UploadUploading UploadStatus = "uploading"
	UploadSucceeded UploadStatus = "succeeded"
	UploadFailed    UploadStatus = "failed"
)

// UploadTask is one queued file. Progress runs 0..100.
type UploadTask struct {
	ID       string
	File     LocalFile
	Progress int
	Status   UploadStatus
	Err      error
	Record   *FileRecord // set once the backend acknowledges
}

// Done reports whether the task reached a terminal state
func (t UploadTask) Done() bool {
	return t.Status == UploadSucceeded || t.Status == UploadFailed
}

// UploadMetadata applies to every task of one upload run
type UploadMetadata struct {
	FolderID    string
	Description string
	IsPublic    bool
	Tags        []string
}
