package speech

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AudioStore writes rendered audio under the static directory served to the
// telephony provider and maps files to externally reachable URLs.
//
// Every synthesis result gets a call-turn-unique name so concurrent calls
// never overwrite each other's audio.
type AudioStore struct {
	dir           string
	publicBaseURL string
}

// NewAudioStore creates the static directory if needed.
func NewAudioStore(dir, publicBaseURL string) (*AudioStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create audio directory: %w", err)
	}
	return &AudioStore{
		dir:           dir,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}, nil
}

// Save writes one synthesized clip and returns its public URL.
func (a *AudioStore) Save(callSID string, turnSeq int, audio []byte) (string, error) {
	name := fmt.Sprintf("%s-%04d-%s.mp3", callSID, turnSeq, uuid.NewString()[:8])
	path := filepath.Join(a.dir, name)
	if err := os.WriteFile(path, audio, 0644); err != nil {
		return "", fmt.Errorf("write audio file: %w", err)
	}
	return a.publicBaseURL + "/static/" + name, nil
}

// FillerURL returns the public URL of a pre-recorded filler clip.
func (a *AudioStore) FillerURL(clip string) string {
	return a.publicBaseURL + "/static/fillers/" + clip
}

// Dir returns the directory served at /static/.
func (a *AudioStore) Dir() string {
	return a.dir
}

// CleanupOlderThan removes synthesized clips past their useful life. Filler
// clips live in a subdirectory and are never touched.
func (a *AudioStore) CleanupOlderThan(age time.Duration) error {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return fmt.Errorf("read audio directory: %w", err)
	}

	cutoff := time.Now().Add(-age)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".mp3") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			_ = os.Remove(filepath.Join(a.dir, e.Name()))
		}
	}
	return nil
}
