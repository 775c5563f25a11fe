// Package storage persists audio blobs and resolves their public URLs.
package storage

import (
	"os"
	"path/filepath"
)

// AudioStore saves audio blobs and resolves stored filenames.
type AudioStore interface {
	// SaveAudio writes the blob and returns the public URL clients use to
	// fetch it.
	SaveAudio(filename string, data []byte) (string, error)
	// AudioPath returns the local filesystem path for a stored filename,
	// for handing to the transcription call.
	AudioPath(filename string) string
}

// LocalStorage stores audio files on the local filesystem under dir and
// serves them at /uploads/.
type LocalStorage struct {
	dir string
}

// NewLocalStorage creates a local audio store rooted at dir.
func NewLocalStorage(dir string) *LocalStorage {
	return &LocalStorage{dir: dir}
}

// Dir returns the storage root, for mounting the static file server.
func (s *LocalStorage) Dir() string {
	return s.dir
}

// SaveAudio writes the blob to disk and returns its public URL.
func (s *LocalStorage) SaveAudio(filename string, data []byte) (string, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(s.dir, filename), data, 0644); err != nil {
		return "", err
	}
	return "/uploads/" + filename, nil
}

// AudioPath returns the local path of a stored file.
func (s *LocalStorage) AudioPath(filename string) string {
	return filepath.Join(s.dir, filename)
}
