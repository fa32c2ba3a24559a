package gstorage

import (
	"context"
	"os"
	"sync"
)

// StorageStub keeps uploaded files in memory. Used in tests.
type StorageStub struct {
	mu      sync.Mutex
	Objects map[string][]byte
	Err     error
}

func NewStorageStub() *StorageStub {
	return &StorageStub{Objects: map[string][]byte{}}
}

func (ss *StorageStub) UploadFile(ctx context.Context, bucket, prefix, filePath string) error {
	if ss.Err != nil {
		return ss.Err
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.Objects[bucket+"/"+ObjectName(prefix, filePath)] = data
	return nil
}

func (ss *StorageStub) DownloadFile(ctx context.Context, bucket, object, destFileName string) error {
	if ss.Err != nil {
		return ss.Err
	}

	ss.mu.Lock()
	data, ok := ss.Objects[bucket+"/"+object]
	ss.mu.Unlock()

	if !ok {
		return ErrObjectNotExist
	}

	return os.WriteFile(destFileName, data, 0600)
}
