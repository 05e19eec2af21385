package b2

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"

	rcloneb2 "github.com/rclone/rclone/backend/b2"
	"github.com/rclone/rclone/fs"
	"github.com/rclone/rclone/fs/config/configmap"
	"github.com/sirupsen/logrus"

	"github.com/denysvitali/odi-scan/pkg/crypt"
	"github.com/denysvitali/odi-scan/pkg/models"
	"github.com/denysvitali/odi-scan/pkg/storage/model"
	"github.com/denysvitali/odi-scan/pkg/storage/rclone"
)

var log = logrus.StandardLogger().WithField("package", "storage/b2")
var _ model.Storer = (*B2)(nil)
var _ model.Retriever = (*B2)(nil)

// B2 archives exported documents in a Backblaze B2 bucket, encrypted when
// a passphrase is configured.
type B2 struct {
	b2fs       fs.Fs
	bucketName string
	crypt      *crypt.Crypt
}

type Config struct {
	Account    string
	Key        string
	BucketName string

	// Encryption specific
	Passphrase string
}

func New(config Config) (*B2, error) {
	if config.Account == "" {
		return nil, fmt.Errorf("account is required")
	}
	if config.Key == "" {
		return nil, fmt.Errorf("key is required")
	}
	if config.BucketName == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	if len(config.Passphrase) == 0 {
		log.Warnf("no passphrase provided, archived documents will not be encrypted")
	}

	b2fs, err := rcloneb2.NewFs(context.Background(),
		"b2",
		config.BucketName+"/",
		configmap.Simple{
			"account":    config.Account,
			"key":        config.Key,
			"chunk_size": "5M",
		},
	)
	if err != nil {
		return nil, err
	}

	b := &B2{
		bucketName: config.BucketName,
		b2fs:       b2fs,
	}
	if len(config.Passphrase) != 0 {
		b.crypt, err = crypt.New(config.Passphrase)
		if err != nil {
			return nil, err
		}
	}
	return b, nil
}

func objectName(scanId string, name string) string {
	return path.Join(scanId, name)
}

// uploadRange covers the whole object. RangeOption.End is inclusive.
func uploadRange(size int64) *fs.RangeOption {
	return &fs.RangeOption{Start: 0, End: size - 1}
}

func (b *B2) Store(doc models.ExportedDocument) (err error) {
	if doc.Reader == nil {
		return fmt.Errorf("document %s has no content", doc.Name)
	}
	ctx := context.Background()

	reader := io.ReadSeeker(doc.Reader)
	if b.crypt != nil {
		reader, err = b.crypt.Encrypt(doc.Reader)
		if err != nil {
			return err
		}
	}

	size, err := reader.Seek(0, io.SeekEnd)
	if err != nil {
		return err
	}
	if _, err = reader.Seek(0, io.SeekStart); err != nil {
		return err
	}

	info := rclone.NewObjectInfo(b.bucketName, objectName(doc.ScanId, doc.Name), doc.ExportedAt, size)
	obj, err := b.b2fs.Put(ctx, reader, info, uploadRange(size))
	if err != nil {
		return err
	}
	log.Debugf("archived %s (%d bytes)", obj.Remote(), obj.Size())
	return nil
}

func (b *B2) Retrieve(scanId string, name string) (*models.ExportedDocument, error) {
	ctx := context.Background()
	obj, err := b.b2fs.NewObject(ctx, objectName(scanId, name))
	if err != nil {
		if errors.Is(err, fs.ErrorObjectNotFound) {
			return nil, os.ErrNotExist
		}
		return nil, err
	}

	objReader, err := obj.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer objReader.Close()

	var reader io.ReadSeeker
	if b.crypt != nil {
		reader, err = b.crypt.Decrypt(objReader)
		if err != nil {
			return nil, err
		}
	} else {
		buffer := bytes.NewBuffer(nil)
		if _, err = io.Copy(buffer, objReader); err != nil {
			return nil, err
		}
		reader = bytes.NewReader(buffer.Bytes())
	}

	return &models.ExportedDocument{
		Name:       name,
		ScanId:     scanId,
		ExportedAt: obj.ModTime(ctx),
		Reader:     reader,
	}, nil
}
