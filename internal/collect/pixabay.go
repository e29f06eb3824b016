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

const pixabayURL = "https://pixabay.com/api/"

// Pixabay searches the Pixabay image API.
type Pixabay struct {
	key        string
	BaseURL    string
	HTTPClient *http.Client
	PerPage    int
	MinWidth   int
	MinHeight  int
}

// NewPixabay needs an API key.
func NewPixabay(key string) (*Pixabay, error) {
	if key == "" {
		return nil, fmt.Errorf("pixabay: %w (get one at https://pixabay.com/api/docs/)", ErrMissingKey)
	}
	return &Pixabay{
		key:        key,
		BaseURL:    pixabayURL,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		PerPage:    200,
		MinWidth:   DefaultMinWidth,
		MinHeight:  DefaultMinHeight,
	}, nil
}

func (p *Pixabay) Name() string { return "pixabay" }

type pixabayResponse struct {
	TotalHits int `json:"totalHits"`
	Hits      []struct {
		ID            int64  `json:"id"`
		PageURL       string `json:"pageURL"`
		User          string `json:"user"`
		ImageWidth    int    `json:"imageWidth"`
		ImageHeight   int    `json:"imageHeight"`
		LargeImageURL string `json:"largeImageURL"`
		WebformatURL  string `json:"webformatURL"`
	} `json:"hits"`
}

func (p *Pixabay) Find(ctx context.Context, terms Terms, emit func(Candidate) bool) error {
	perPage := p.PerPage
	if perPage <= 0 || perPage > 200 {
		perPage = 200
	}

	for _, term := range terms.Stock() {
		slog.Info("Searching", "source", p.Name(), "term", term)
		for page := 1; ; page++ {
			if err := ctx.Err(); err != nil {
				return err
			}

			var resp pixabayResponse
			if err := getJSON(ctx, p.HTTPClient, p.searchURL(term, page, perPage), nil, &resp); err != nil {
				slog.Warn("Pixabay search failed", "term", term, "page", page, "error", err)
				break
			}
			if len(resp.Hits) == 0 {
				break
			}

			for _, hit := range resp.Hits {
				cand := Candidate{
					Source:       p.Name(),
					ID:           strconv.FormatInt(hit.ID, 10),
					Term:         term,
					Filename:     fmt.Sprintf("pixabay_%d.jpg", hit.ID),
					URL:          firstNonEmpty(hit.LargeImageURL, hit.WebformatURL),
					PageURL:      hit.PageURL,
					Photographer: hit.User,
					Width:        hit.ImageWidth,
					Height:       hit.ImageHeight,
				}
				if !emit(cand) {
					return ctx.Err()
				}
			}

			if page*perPage >= resp.TotalHits {
				break
			}
		}
	}
	return nil
}

func (p *Pixabay) searchURL(term string, page, perPage int) string {
	q := url.Values{}
	q.Set("key", p.key)
	q.Set("q", term)
	q.Set("image_type", "photo")
	q.Set("per_page", strconv.Itoa(perPage))
	q.Set("page", strconv.Itoa(page))
	q.Set("min_width", strconv.Itoa(p.MinWidth))
	q.Set("min_height", strconv.Itoa(p.MinHeight))
	q.Set("safesearch", "true")
	q.Set("order", "popular")
	return p.BaseURL + "?" + q.Encode()
}
