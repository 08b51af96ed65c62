// internal/filestore/file.go
package filestore

import (
	"path"
	"time"

	shared "vellum/shared/types"
)

// fileView is the read-only File both backends hand out. Content is
// loaded lazily through the load closure; directories have none.
type fileView struct {
	path     string
	fileType shared.FileType
	rev      shared.RevisionID
	author   string
	modTime  time.Time
	load     func() ([]byte, error)
}

var _ shared.File = (*fileView)(nil)

func (f *fileView) Path() string { return f.path }

func (f *fileView) Name() string { return path.Base(f.path) }

func (f *fileView) FileType() shared.FileType { return f.fileType }

func (f *fileView) Content() ([]byte, error) {
	if f.load == nil {
		return nil, nil
	}
	return f.load()
}

func (f *fileView) IsDirectory() bool { return f.fileType == shared.Directory }

func (f *fileView) LastModifiedRevision() shared.RevisionID { return f.rev }

func (f *fileView) LastModifiedBy() string { return f.author }

func (f *fileView) LastModifiedAt() time.Time { return f.modTime }
