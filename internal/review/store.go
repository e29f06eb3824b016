// Package review serves the curated images and their captions over HTTP so
// captions can be corrected in a browser instead of a text editor.
package review

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/earthback/loraprep/internal/caption"
)

// ErrNotFound is returned for a file that is not a curated image.
var ErrNotFound = errors.New("image not found")

// ErrEmptyCaption rejects a blank caption.
var ErrEmptyCaption = errors.New("caption is empty")

// Item is one image and its caption.
type Item struct {
	File       string `json:"file"`
	Caption    string `json:"caption"`
	HasCaption bool   `json:"has_caption"`
}

// Store holds the captions of one curated directory. Writes go to the
// sidecar first and then to the review file, keeping both in step.
type Store struct {
	dir    string
	images map[string]bool
	review map[string]string
	mu     sync.RWMutex
}

// Open reads the curated directory, folding every sidecar into the review
// file.
func Open(dir string) (*Store, error) {
	images, err := caption.ListImages(dir)
	if err != nil {
		return nil, err
	}
	review, err := caption.SyncReview(dir)
	if err != nil {
		return nil, err
	}

	s := &Store{
		dir:    dir,
		images: make(map[string]bool, len(images)),
		review: review,
	}
	for _, img := range images {
		s.images[filepath.Base(img)] = true
	}
	return s, nil
}

// Dir is the curated directory.
func (s *Store) Dir() string { return s.dir }

// List returns every image sorted by name.
func (s *Store) List() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]Item, 0, len(s.images))
	for name := range s.images {
		text, ok := s.review[name]
		items = append(items, Item{File: name, Caption: text, HasCaption: ok})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].File < items[j].File })
	return items
}

func (s *Store) Get(file string) (Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.images[file] {
		return Item{}, ErrNotFound
	}
	text, ok := s.review[file]
	return Item{File: file, Caption: text, HasCaption: ok}, nil
}

// Set replaces the caption of file.
func (s *Store) Set(file, text string) (Item, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Item{}, fmt.Errorf("%s: %w", file, ErrEmptyCaption)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.images[file] {
		return Item{}, ErrNotFound
	}
	if err := caption.WriteSidecar(filepath.Join(s.dir, file), text); err != nil {
		return Item{}, err
	}
	s.review[file] = text
	if err := caption.SaveReview(s.dir, s.review); err != nil {
		return Item{}, err
	}
	return Item{File: file, Caption: text, HasCaption: true}, nil
}

// Counts returns the number of images and how many have a caption.
func (s *Store) Counts() (images, captioned int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for name := range s.images {
		if _, ok := s.review[name]; ok {
			captioned++
		}
	}
	return len(s.images), captioned
}
