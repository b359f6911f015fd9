package config

import (
	"os"
	"sync"
)

type StorageConfig struct {
	ArchiveDir       string
	ArchiveGCSBucket string
	UploadDir        string
}

var (
	storageConfig *StorageConfig
	storageOnce   sync.Once
)

func LoadStorageConfig() *StorageConfig {
	storageOnce.Do(func() {
		storageConfig = &StorageConfig{
			ArchiveDir:       getEnv("ARCHIVE_DIR", "./data/student-reports"),
			ArchiveGCSBucket: os.Getenv("ARCHIVE_GCS_BUCKET"),
			UploadDir:        getEnv("UPLOAD_DIR", "./uploads/evaluations"),
		}
	})
	return storageConfig
}
