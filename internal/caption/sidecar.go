package caption

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/earthback/loraprep/internal/imaging"
)

// ReviewFile is the consolidated filename -> caption map kept next to the
// images for bulk editing.
const ReviewFile = "captions-review.json"

// SidecarPath is the caption file the trainer reads for an image.
func SidecarPath(imagePath string) string {
	return strings.TrimSuffix(imagePath, filepath.Ext(imagePath)) + ".txt"
}

// ReadSidecar returns the trimmed caption, or "" with ok=false when missing.
func ReadSidecar(imagePath string) (string, bool, error) {
	data, err := os.ReadFile(SidecarPath(imagePath))
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read caption: %w", err)
	}
	return strings.TrimSpace(string(data)), true, nil
}

// WriteSidecar writes caption for imagePath.
func WriteSidecar(imagePath, caption string) error {
	if err := os.WriteFile(SidecarPath(imagePath), []byte(strings.TrimSpace(caption)), 0644); err != nil {
		return fmt.Errorf("failed to write caption: %w", err)
	}
	return nil
}

// ListImages returns the curated images in dir, sorted by name. Review
// previews are ignored.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read curated directory: %w", err)
	}

	var images []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, "_preview_") || !imaging.IsImage(name) {
			continue
		}
		images = append(images, filepath.Join(dir, name))
	}
	sort.Strings(images)
	return images, nil
}

// Missing lists images in dir that have no caption file.
func Missing(dir string) ([]string, error) {
	images, err := ListImages(dir)
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, img := range images {
		if _, err := os.Stat(SidecarPath(img)); errors.Is(err, os.ErrNotExist) {
			missing = append(missing, filepath.Base(img))
		}
	}
	return missing, nil
}

// LoadReview reads the review map. A missing file is an empty map.
func LoadReview(dir string) (map[string]string, error) {
	path := filepath.Join(dir, ReviewFile)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", ReviewFile, err)
	}

	review := map[string]string{}
	if err := json.Unmarshal(data, &review); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", ReviewFile, err)
	}
	return review, nil
}

// SaveReview writes the review map with sorted keys.
func SaveReview(dir string, review map[string]string) error {
	file, err := os.Create(filepath.Join(dir, ReviewFile))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", ReviewFile, err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(review); err != nil {
		return fmt.Errorf("failed to encode %s: %w", ReviewFile, err)
	}
	return nil
}

// SyncReview merges every sidecar into the review map and saves it.
// Sidecars win over entries already in the file.
func SyncReview(dir string) (map[string]string, error) {
	review, err := LoadReview(dir)
	if err != nil {
		return nil, err
	}

	images, err := ListImages(dir)
	if err != nil {
		return nil, err
	}
	for _, img := range images {
		text, ok, err := ReadSidecar(img)
		if err != nil {
			return nil, err
		}
		if ok {
			review[filepath.Base(img)] = text
		}
	}

	if err := SaveReview(dir, review); err != nil {
		return nil, err
	}
	return review, nil
}

// ApplyEdits writes captions from the review file back to the sidecars.
// Only entries whose image exists and whose trimmed text differs are
// written, so a second call changes nothing. Returns the number written.
func ApplyEdits(dir string) (int, error) {
	path := filepath.Join(dir, ReviewFile)
	if _, err := os.Stat(path); err != nil {
		return 0, fmt.Errorf("%s not found in %s", ReviewFile, dir)
	}

	review, err := LoadReview(dir)
	if err != nil {
		return 0, err
	}

	names := make([]string, 0, len(review))
	for name := range review {
		names = append(names, name)
	}
	sort.Strings(names)

	updated := 0
	for _, name := range names {
		img := filepath.Join(dir, filepath.Base(name))
		if _, err := os.Stat(img); err != nil {
			slog.Warn("Caption for missing image ignored", "file", name)
			continue
		}

		current, _, err := ReadSidecar(img)
		if err != nil {
			return updated, err
		}
		edited := strings.TrimSpace(review[name])
		if current == edited {
			continue
		}
		if err := WriteSidecar(img, edited); err != nil {
			return updated, err
		}
		slog.Debug("Caption updated", "file", name)
		updated++
	}
	return updated, nil
}
