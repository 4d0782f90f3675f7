package avatar

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Store writes uploaded avatar images to local disk. Files get a random name
// and are served statically under the public prefix.
type Store struct {
	dir          string
	publicPrefix string
}

// NewStore creates the upload directory if needed and returns a Store.
func NewStore(dir, publicPrefix string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir %s: %w", dir, err)
	}
	return &Store{
		dir:          dir,
		publicPrefix: publicPrefix,
	}, nil
}

// Save writes the image bytes under a fresh uuid filename and returns the
// public URL path to store on the user.
func (s *Store) Save(data []byte, ext string) (string, error) {
	if ext == "" {
		ext = ".jpg"
	}
	name := uuid.New().String() + ext

	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to store avatar: %w", err)
	}
	return s.publicPrefix + "/" + name, nil
}
