package collect

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const pexelsURL = "https://api.pexels.com/v1/search"

// Pexels searches the Pexels photo API.
type Pexels struct {
	key        string
	BaseURL    string
	HTTPClient *http.Client
	PerPage    int
}

// NewPexels needs an API key.
func NewPexels(key string) (*Pexels, error) {
	if key == "" {
		return nil, fmt.Errorf("pexels: %w (get one at https://www.pexels.com/api/)", ErrMissingKey)
	}
	return &Pexels{
		key:        key,
		BaseURL:    pexelsURL,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		PerPage:    80,
	}, nil
}

func (p *Pexels) Name() string { return "pexels" }

type pexelsResponse struct {
	Photos []struct {
		ID           int64  `json:"id"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		URL          string `json:"url"`
		Photographer string `json:"photographer"`
		Src          struct {
			Original string `json:"original"`
			Large2x  string `json:"large2x"`
			Large    string `json:"large"`
		} `json:"src"`
	} `json:"photos"`
	NextPage string `json:"next_page"`
}

func (p *Pexels) Find(ctx context.Context, terms Terms, emit func(Candidate) bool) error {
	for _, term := range terms.Stock() {
		slog.Info("Searching", "source", p.Name(), "term", term)
		for page := 1; ; page++ {
			if err := ctx.Err(); err != nil {
				return err
			}

			var resp pexelsResponse
			if err := getJSON(ctx, p.HTTPClient, p.searchURL(term, page), http.Header{"Authorization": {p.key}}, &resp); err != nil {
				slog.Warn("Pexels search failed", "term", term, "page", page, "error", err)
				break
			}
			if len(resp.Photos) == 0 {
				break
			}

			for _, photo := range resp.Photos {
				cand := Candidate{
					Source:       p.Name(),
					ID:           strconv.FormatInt(photo.ID, 10),
					Term:         term,
					Filename:     fmt.Sprintf("pexels_%d.jpg", photo.ID),
					URL:          firstNonEmpty(photo.Src.Large2x, photo.Src.Large, photo.Src.Original),
					PageURL:      photo.URL,
					Photographer: photo.Photographer,
					Width:        photo.Width,
					Height:       photo.Height,
				}
				if !emit(cand) {
					return ctx.Err()
				}
			}

			if resp.NextPage == "" {
				break
			}
		}
	}
	return nil
}

func (p *Pexels) searchURL(term string, page int) string {
	perPage := p.PerPage
	if perPage <= 0 || perPage > 80 {
		perPage = 80
	}
	q := url.Values{}
	q.Set("query", term)
	q.Set("per_page", strconv.Itoa(perPage))
	q.Set("page", strconv.Itoa(page))
	return p.BaseURL + "?" + q.Encode()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
