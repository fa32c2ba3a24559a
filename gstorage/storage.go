package gstorage

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"cloud.google.com/go/storage"
	"github.com/airis-sh/airis/logger"
	"github.com/pkg/errors"
	"google.golang.org/api/option"
)

const TRANSFER_TIMEOUT = 50 * time.Second

var (
	ErrObjectNotExist = storage.ErrObjectNotExist

	logg = logger.NewLogger()
)

// Storage moves files to and from an object store bucket
type Storage interface {
	UploadFile(ctx context.Context, bucket, prefix, filePath string) error
	DownloadFile(ctx context.Context, bucket, object, destFileName string) error
}

type GStorage struct {
	storageClient *storage.Client
}

func NewGStorage(credentialsFilePath string) (*GStorage, error) {
	var client *storage.Client
	var err error

	if credentialsFilePath != "" {
		client, err = storage.NewClient(context.Background(), option.WithCredentialsFile(credentialsFilePath))
	} else {
		client, err = storage.NewClient(context.Background())
	}

	if err != nil {
		return nil, errors.Wrap(err, "NewGStorage")
	}

	return &GStorage{storageClient: client}, nil
}

// UploadFile uploads the file at filePath as '<prefix>/<file name>'
func (gs *GStorage) UploadFile(ctx context.Context, bucket, prefix, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return errors.Wrap(err, "os.Open")
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(ctx, TRANSFER_TIMEOUT)
	defer cancel()

	object := ObjectName(prefix, filePath)
	wc := gs.storageClient.Bucket(bucket).Object(object).NewWriter(ctx)
	if _, err = io.Copy(wc, f); err != nil {
		wc.Close()
		return errors.Wrap(err, "io.Copy")
	}
	if err := wc.Close(); err != nil {
		return errors.Wrap(err, "Writer.Close")
	}

	logg.Infof("Blob %v uploaded", object)
	return nil
}

// DownloadFile downloads an object to a file. The file is only replaced
// once the whole object has been read.
func (gs *GStorage) DownloadFile(ctx context.Context, bucket, object string, destFileName string) error {
	ctx, cancel := context.WithTimeout(ctx, TRANSFER_TIMEOUT)
	defer cancel()

	rc, err := gs.storageClient.Bucket(bucket).Object(object).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return ErrObjectNotExist
	}
	if err != nil {
		return errors.Wrapf(err, "Object(%q).NewReader", object)
	}
	defer rc.Close()

	tmpFileName := destFileName + ".download"
	f, err := os.OpenFile(tmpFileName, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return errors.Wrap(err, "os.OpenFile")
	}

	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		os.Remove(tmpFileName)
		return errors.Wrap(err, "io.Copy")
	}

	if err = f.Close(); err != nil {
		os.Remove(tmpFileName)
		return errors.Wrap(err, "f.Close")
	}

	if err = os.Rename(tmpFileName, destFileName); err != nil {
		return errors.Wrap(err, "os.Rename")
	}

	logg.Infof("Blob %v downloaded to local file %v", object, destFileName)
	return nil
}

// ObjectName is where a local file is stored under prefix
func ObjectName(prefix, filePath string) string {
	return path.Join(prefix, filepath.Base(filePath))
}
