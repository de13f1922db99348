package disk

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SanitizeFilename turns a user-supplied name into a safe single filename
// component: separators and control characters become '-', surrounding
// whitespace and dots are trimmed. Returns "" if nothing usable remains.
func SanitizeFilename(name string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == 0:
			return '-'
		case r < 0x20 || r == 0x7f:
			return '-'
		default:
			return r
		}
	}, name)
	mapped = strings.Trim(mapped, " .")
	if mapped == "." || mapped == ".." {
		return ""
	}
	return mapped
}

// LinkFilename derives the on-disk filename for a stored link from the
// user-supplied title, falling back to the last path segment of the URL.
// The LinkSuffix is always appended.
func LinkFilename(title, rawURL string) string {
	name := SanitizeFilename(title)
	if name == "" {
		if u, err := url.Parse(rawURL); err == nil {
			segs := strings.Split(strings.Trim(u.Path, "/"), "/")
			name = SanitizeFilename(segs[len(segs)-1])
		}
	}
	if name == "" {
		name = "link"
	}
	return name + LinkSuffix
}

// WriteLink creates a stored link file at path containing the URL.
func WriteLink(path, rawURL string) error {
	return writeSmallFile(path, rawURL+"\n")
}

// ReadLink returns the URL stored in a link file.
func ReadLink(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read link %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

func writeSmallFile(path, content string) error {
	if _, err := WriteFileAtomic(path, strings.NewReader(content), 0o644); err != nil {
		return err
	}
	return nil
}

// ============================================================================
// Temporary public download links
// ============================================================================

// CreateTemporaryPublicLink exposes targetPath under linkDir through a
// random single-use directory containing a symlink, and returns the
// URL-path suffix "<random>/<filename>". The web layer maps linkDir to a
// public location; the random component makes the link unguessable.
func CreateTemporaryPublicLink(targetPath, linkDir string) (string, error) {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("failed to generate link token: %w", err)
	}
	token := hex.EncodeToString(buf[:])

	dir := filepath.Join(linkDir, token)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create link directory %s: %w", dir, err)
	}

	name := filepath.Base(targetPath)
	if err := os.Symlink(targetPath, filepath.Join(dir, name)); err != nil {
		return "", fmt.Errorf("failed to create public link for %s: %w", targetPath, err)
	}
	return token + "/" + name, nil
}

// CleanTemporaryLinks removes link directories older than ttl.
func CleanTemporaryLinks(linkDir string, ttl time.Duration) (int, error) {
	entries, err := os.ReadDir(linkDir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read link directory %s: %w", linkDir, err)
	}

	removed := 0
	cutoff := time.Now().Add(-ttl)
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.RemoveAll(filepath.Join(linkDir, e.Name())); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}
