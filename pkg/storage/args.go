package storage

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/denysvitali/odi-scan/pkg/storage/b2"
	"github.com/denysvitali/odi-scan/pkg/storage/fs"
	"github.com/denysvitali/odi-scan/pkg/storage/model"
)

var log = logrus.StandardLogger().WithField("package", "storage")

type Config struct {
	// Type is "none", "fs" or "b2".
	Type   string
	FsPath string
	B2     b2.Config
}

// Setup returns the archive described by config, or nil when archiving is
// disabled.
func Setup(config Config) (model.RWStorage, error) {
	switch strings.ToLower(config.Type) {
	case "", "none":
		return nil, nil
	case "fs":
		s, err := fs.New(config.FsPath)
		if err != nil {
			return nil, fmt.Errorf("create fs storage: %w", err)
		}
		log.Infof("archiving exports to %s", config.FsPath)
		return s, nil
	case "b2":
		s, err := b2.New(config.B2)
		if err != nil {
			return nil, fmt.Errorf("create b2 storage: %w", err)
		}
		log.Infof("archiving exports to b2 bucket %s", config.B2.BucketName)
		return s, nil
	}
	return nil, fmt.Errorf("unknown storage type: %s", config.Type)
}
