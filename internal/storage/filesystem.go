/**
 * Filesystem Artifact Store
 *
 * Writes the per-document output directory: extracted text, the Markdown
 * report and a copy of the original PDF.
 */

package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	scanerrors "github.com/scandoc/scandoc/internal/errors"
	"github.com/scandoc/scandoc/internal/logging"
)

// ArtifactPaths lists the files written for one document.
type ArtifactPaths struct {
	Dir      string
	Text     string
	Markdown string
	Original string
}

// ArtifactStore writes processing artifacts under a base output directory.
// Each document gets its own subdirectory; name collisions get a numeric
// suffix so reprocessing never overwrites earlier results.
type ArtifactStore struct {
	baseDir string
	logger  *logging.Logger
}

// NewArtifactStore creates an artifact store rooted at baseDir.
func NewArtifactStore(baseDir string, logger *logging.Logger) *ArtifactStore {
	if logger == nil {
		logger = logging.NewLogger("storage")
	}
	return &ArtifactStore{baseDir: baseDir, logger: logger}
}

// Save writes the text and Markdown artifacts for one document and copies
// the original PDF alongside them.
func (s *ArtifactStore) Save(documentName, documentPath, plainText, markdown string) (ArtifactPaths, error) {
	dir, err := s.allocateDir(documentName)
	if err != nil {
		return ArtifactPaths{}, scanerrors.NewStorageError(documentName, err)
	}

	paths := ArtifactPaths{
		Dir:      dir,
		Text:     filepath.Join(dir, documentName+".txt"),
		Markdown: filepath.Join(dir, documentName+".md"),
		Original: filepath.Join(dir, filepath.Base(documentPath)),
	}

	if err := os.WriteFile(paths.Text, []byte(plainText), 0o644); err != nil {
		return ArtifactPaths{}, scanerrors.NewStorageError(documentName, err)
	}
	if err := os.WriteFile(paths.Markdown, []byte(markdown), 0o644); err != nil {
		return ArtifactPaths{}, scanerrors.NewStorageError(documentName, err)
	}
	if err := copyFile(documentPath, paths.Original); err != nil {
		return ArtifactPaths{}, scanerrors.NewStorageError(documentName, err)
	}

	s.logger.Info("artifacts written", "document", documentName, "dir", dir)
	return paths, nil
}

// allocateDir creates the document directory, appending _1, _2, ... when
// the name is already taken.
func (s *ArtifactStore) allocateDir(documentName string) (string, error) {
	if err := os.MkdirAll(s.baseDir, 0o755); err != nil {
		return "", err
	}
	for i := 0; ; i++ {
		name := documentName
		if i > 0 {
			name = fmt.Sprintf("%s_%d", documentName, i)
		}
		dir := filepath.Join(s.baseDir, name)
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			return dir, nil
		}
		if !os.IsExist(err) {
			return "", err
		}
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
