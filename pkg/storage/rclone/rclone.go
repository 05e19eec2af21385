// Package rclone adapts archived documents to rclone's object model.
package rclone

import (
	"context"
	"time"

	"github.com/rclone/rclone/fs"
	"github.com/rclone/rclone/fs/hash"
)

// ObjectInfo describes an object about to be uploaded with fs.Fs.Put.
type ObjectInfo struct {
	remote  string
	modTime time.Time
	size    int64
	bucket  string
}

var _ fs.ObjectInfo = ObjectInfo{}

func NewObjectInfo(bucket string, remote string, modTime time.Time, size int64) ObjectInfo {
	return ObjectInfo{
		remote:  remote,
		modTime: modTime,
		size:    size,
		bucket:  bucket,
	}
}

func (o ObjectInfo) String() string { return o.remote }
func (o ObjectInfo) Remote() string { return o.remote }
func (o ObjectInfo) ModTime(ctx context.Context) time.Time { return o.modTime }
func (o ObjectInfo) Size() int64 { return o.size }
func (o ObjectInfo) Fs() fs.Info { return sourceInfo{bucket: o.bucket} }
func (o ObjectInfo) Storable() bool { return true }

// Hash returns no hash: the uploads are computed in memory and the remote
// computes its own checksum.
func (o ObjectInfo) Hash(ctx context.Context, ty hash.Type) (string, error) {
	return "", nil
}

// sourceInfo is the fs.Info of the local side of an upload.
type sourceInfo struct {
	bucket string
}

var _ fs.Info = sourceInfo{}

func (s sourceInfo) Name() string { return "odi-scan" }
func (s sourceInfo) Root() string { return s.bucket }
func (s sourceInfo) String() string { return "odi-scan:" + s.bucket }
func (s sourceInfo) Precision() time.Duration { return time.Second }
func (s sourceInfo) Hashes() hash.Set { return hash.Set(hash.None) }
func (s sourceInfo) Features() *fs.Features { return &fs.Features{} }
