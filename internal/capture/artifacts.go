package capture

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/jonesrussell/national-treasure/internal/domain"
	"github.com/jonesrussell/national-treasure/internal/logger"
)

// Artifact file names within a capture directory.
var artifactFiles = map[string]string{
	domain.ArtifactScreenshot: "screenshot.png",
	domain.ArtifactPDF:        "document.pdf",
	domain.ArtifactHTML:       "page.html",
	domain.ArtifactWARC:       "capture.warc",
}

// fingerprintLen is how many hex digits of the URL hash go into the
// directory name.
const fingerprintLen = 12

// ArtifactStore writes capture artifacts under the archive root. Paths are
// deterministic per URL, so re-capturing overwrites in place, and every
// write is temp-file + rename so readers never see a partial file.
type ArtifactStore struct {
	root   string
	logger logger.Interface
}

// NewArtifactStore creates an artifact store rooted at dir.
func NewArtifactStore(dir string, log logger.Interface) *ArtifactStore {
	return &ArtifactStore{root: dir, logger: log}
}

// Dir returns the capture directory for a URL. The name carries the host
// for operators and a hash for stability.
func (s *ArtifactStore) Dir(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	fingerprint := hex.EncodeToString(sum[:])[:fingerprintLen]

	name := fingerprint
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		name = u.Hostname() + "-" + fingerprint
	}
	return filepath.Join(s.root, name)
}

// Write stores one artifact atomically and returns its final path.
func (s *ArtifactStore) Write(rawURL, kind string, data []byte) (string, error) {
	name, ok := artifactFiles[kind]
	if !ok {
		return "", fmt.Errorf("unknown artifact kind: %s", kind)
	}

	dir := s.Dir(rawURL)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create capture dir: %w", err)
	}

	final := filepath.Join(dir, name)
	tmp, err := os.CreateTemp(dir, name+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to sync artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to close artifact: %w", err)
	}
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to publish artifact: %w", err)
	}

	s.logger.Debug("Artifact written", "kind", kind, "path", final, "bytes", len(data))
	return final, nil
}
