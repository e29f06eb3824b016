package collect

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	wikimediaURL      = "https://commons.wikimedia.org/w/api.php"
	wikimediaPageBase = "https://commons.wikimedia.org/wiki/"
	wikimediaBatch    = 50
	maxWikimediaStem  = 180
)

// Wikimedia searches Wikimedia Commons by text and by category. It needs
// no key.
type Wikimedia struct {
	BaseURL    string
	HTTPClient *http.Client
	// Limit caps titles per search and per category.
	Limit     int
	MinWidth  int
	MinHeight int
	// Pause between search calls.
	Pause time.Duration
}

func NewWikimedia() *Wikimedia {
	return &Wikimedia{
		BaseURL:    wikimediaURL,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		Limit:      50,
		MinWidth:   DefaultMinWidth,
		MinHeight:  DefaultMinHeight,
		Pause:      300 * time.Millisecond,
	}
}

func (w *Wikimedia) Name() string { return "wikimedia" }

func (w *Wikimedia) Find(ctx context.Context, terms Terms, emit func(Candidate) bool) error {
	var titles []string

	for _, term := range terms.Core {
		found, err := w.search(ctx, term)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Warn("Wikimedia search failed", "term", term, "error", err)
		}
		slog.Info("Searching", "source", w.Name(), "term", term, "results", len(found))
		titles = append(titles, found...)
		if err := sleep(ctx, w.Pause); err != nil {
			return err
		}
	}

	for _, category := range terms.Categories {
		found, err := w.categoryMembers(ctx, category)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Warn("Wikimedia category failed", "category", category, "error", err)
		}
		slog.Info("Category", "source", w.Name(), "category", category, "files", len(found))
		titles = append(titles, found...)
		if err := sleep(ctx, w.Pause); err != nil {
			return err
		}
	}

	titles = unique(titles)
	slog.Info("Fetching image info", "source", w.Name(), "unique_files", len(titles))

	for start := 0; start < len(titles); start += wikimediaBatch {
		end := min(start+wikimediaBatch, len(titles))
		cands, err := w.imageInfo(ctx, titles[start:end])
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Warn("Wikimedia image info failed", "batch", start/wikimediaBatch, "error", err)
			continue
		}
		for _, cand := range cands {
			if !emit(cand) {
				return ctx.Err()
			}
		}
	}
	return nil
}

func (w *Wikimedia) search(ctx context.Context, term string) ([]string, error) {
	q := url.Values{}
	q.Set("action", "query")
	q.Set("list", "search")
	q.Set("srsearch", term)
	q.Set("srnamespace", "6")
	q.Set("srlimit", strconv.Itoa(min(w.limit(), 50)))
	q.Set("format", "json")

	var resp struct {
		Query struct {
			Search []struct {
				Title string `json:"title"`
			} `json:"search"`
		} `json:"query"`
	}
	if err := getJSON(ctx, w.HTTPClient, w.BaseURL+"?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}

	titles := make([]string, 0, len(resp.Query.Search))
	for _, hit := range resp.Query.Search {
		titles = append(titles, hit.Title)
	}
	return titles, nil
}

func (w *Wikimedia) categoryMembers(ctx context.Context, category string) ([]string, error) {
	var titles []string
	cmcontinue := ""

	for len(titles) < w.limit() {
		q := url.Values{}
		q.Set("action", "query")
		q.Set("list", "categorymembers")
		q.Set("cmtitle", "Category:"+category)
		q.Set("cmtype", "file")
		q.Set("cmlimit", strconv.Itoa(min(50, w.limit()-len(titles))))
		q.Set("format", "json")
		if cmcontinue != "" {
			q.Set("cmcontinue", cmcontinue)
		}

		var resp struct {
			Query struct {
				CategoryMembers []struct {
					Title string `json:"title"`
				} `json:"categorymembers"`
			} `json:"query"`
			Continue struct {
				CMContinue string `json:"cmcontinue"`
			} `json:"continue"`
		}
		if err := getJSON(ctx, w.HTTPClient, w.BaseURL+"?"+q.Encode(), nil, &resp); err != nil {
			return titles, err
		}

		for _, m := range resp.Query.CategoryMembers {
			titles = append(titles, m.Title)
		}
		cmcontinue = resp.Continue.CMContinue
		if cmcontinue == "" {
			break
		}
	}
	return titles, nil
}

type imageInfoResponse struct {
	Query struct {
		Pages map[string]struct {
			Title     string `json:"title"`
			ImageInfo []struct {
				URL         string `json:"url"`
				ThumbURL    string `json:"thumburl"`
				Width       int    `json:"width"`
				Height      int    `json:"height"`
				Mime        string `json:"mime"`
				ExtMetadata map[string]struct {
					Value interface{} `json:"value"`
				} `json:"extmetadata"`
			} `json:"imageinfo"`
		} `json:"pages"`
	} `json:"query"`
}

// imageInfo resolves up to 50 titles to downloadable candidates, keeping
// the order of titles.
func (w *Wikimedia) imageInfo(ctx context.Context, titles []string) ([]Candidate, error) {
	q := url.Values{}
	q.Set("action", "query")
	q.Set("titles", strings.Join(titles, "|"))
	q.Set("prop", "imageinfo")
	q.Set("iiprop", "url|size|extmetadata|mime")
	q.Set("iiurlwidth", "1024")
	q.Set("format", "json")

	var resp imageInfoResponse
	if err := getJSON(ctx, w.HTTPClient, w.BaseURL+"?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}

	byTitle := make(map[string]int, len(resp.Query.Pages))
	pages := make([]Candidate, 0, len(resp.Query.Pages))
	for id, page := range resp.Query.Pages {
		if id == "-1" || len(page.ImageInfo) == 0 {
			continue
		}
		info := page.ImageInfo[0]
		if !acceptedMime(info.Mime) {
			continue
		}
		if info.Width < w.MinWidth || info.Height < w.MinHeight {
			continue
		}
		download := firstNonEmpty(info.ThumbURL, info.URL)
		if download == "" {
			continue
		}

		license := ""
		if v, ok := info.ExtMetadata["LicenseShortName"]; ok {
			if s, ok := v.Value.(string); ok {
				license = s
			}
		}

		byTitle[page.Title] = len(pages)
		pages = append(pages, Candidate{
			Source:   w.Name(),
			ID:       page.Title,
			Title:    page.Title,
			Filename: WikimediaFilename(page.Title),
			URL:      download,
			PageURL:  wikimediaPageBase + url.PathEscape(page.Title),
			License:  license,
			Width:    info.Width,
			Height:   info.Height,
		})
	}

	ordered := make([]Candidate, 0, len(pages))
	for _, title := range titles {
		if i, ok := byTitle[title]; ok {
			ordered = append(ordered, pages[i])
			delete(byTitle, title)
		}
	}
	// Titles the API normalized come last, in a stable order.
	var rest []string
	for title := range byTitle {
		rest = append(rest, title)
	}
	sort.Strings(rest)
	for _, title := range rest {
		ordered = append(ordered, pages[byTitle[title]])
	}
	return ordered, nil
}

func (w *Wikimedia) limit() int {
	if w.Limit <= 0 {
		return 50
	}
	return w.Limit
}

func acceptedMime(mime string) bool {
	if !strings.HasPrefix(mime, "image/") {
		return false
	}
	return mime != "image/svg+xml" && mime != "image/gif"
}

// WikimediaFilename derives a local name from a "File:" title.
func WikimediaFilename(title string) string {
	stem := strings.NewReplacer("File:", "", " ", "_", "/", "_").Replace(title)
	name := []rune("wikimedia_" + stem)
	if len(name) > maxWikimediaStem {
		name = name[:maxWikimediaStem]
	}
	return fmt.Sprintf("%s.jpg", string(name))
}

func unique(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := values[:0:0]
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
