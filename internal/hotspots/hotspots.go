// Package hotspots turns the map hotspot seed CSV into SQL INSERT
// statements for the map_hotspots table.
package hotspots

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Columns required in the CSV header. status and priority are optional.
var required = []string{"lat", "lng", "location_name", "category", "title", "description", "url", "circle_slug"}

// Hotspot is one map pin.
type Hotspot struct {
	Lat          float64
	Lng          float64
	LocationName string
	Category     string
	Title        string
	Description  string
	URL          string
	CircleSlug   string
	Status       string
	Priority     int
}

// Global entries have no pin on the map.
func (h Hotspot) Global() bool {
	return h.Lat == 0 && h.Lng == 0
}

// ReadCSV parses hotspots from a CSV with a header row.
func ReadCSV(r io.Reader) ([]Hotspot, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, name := range required {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("CSV is missing column %q", name)
		}
	}

	field := func(record []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}

	var hotspots []Hotspot
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV line %d: %w", line, err)
		}

		h := Hotspot{
			LocationName: field(record, "location_name"),
			Category:     field(record, "category"),
			Title:        field(record, "title"),
			Description:  field(record, "description"),
			URL:          field(record, "url"),
			CircleSlug:   field(record, "circle_slug"),
			Status:       field(record, "status"),
			Priority:     1,
		}
		if h.Lat, err = strconv.ParseFloat(strings.TrimSpace(field(record, "lat")), 64); err != nil {
			return nil, fmt.Errorf("line %d: invalid lat: %w", line, err)
		}
		if h.Lng, err = strconv.ParseFloat(strings.TrimSpace(field(record, "lng")), 64); err != nil {
			return nil, fmt.Errorf("line %d: invalid lng: %w", line, err)
		}
		if h.Status == "" {
			h.Status = "active"
		}
		if p := strings.TrimSpace(field(record, "priority")); p != "" {
			if h.Priority, err = strconv.Atoi(p); err != nil {
				return nil, fmt.Errorf("line %d: invalid priority: %w", line, err)
			}
		}
		hotspots = append(hotspots, h)
	}
	return hotspots, nil
}

// SkipGlobal drops entries at 0,0 and returns them separately.
func SkipGlobal(hotspots []Hotspot) (kept, skipped []Hotspot) {
	for _, h := range hotspots {
		if h.Global() {
			skipped = append(skipped, h)
			continue
		}
		kept = append(kept, h)
	}
	return kept, skipped
}

// Quote renders a SQL string literal; empty values become NULL.
func Quote(v string) string {
	if v == "" {
		return "NULL"
	}
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

// SQL renders a single multi-row INSERT. source names the CSV in the header
// comment.
func SQL(hotspots []Hotspot, source string) string {
	var b strings.Builder
	b.WriteString("-- map_hotspots seed data\n")
	fmt.Fprintf(&b, "-- Generated from %s\n", source)
	b.WriteString("-- Run after the map schema has been applied\n\n")

	if len(hotspots) == 0 {
		b.WriteString("-- 0 hotspots inserted\n")
		return b.String()
	}

	b.WriteString("INSERT INTO public.map_hotspots\n")
	b.WriteString("  (latitude, longitude, location_name, category, title,\n")
	b.WriteString("   description, url, circle_slug, status, priority, is_visible)\n")
	b.WriteString("VALUES\n")

	for i, h := range hotspots {
		fmt.Fprintf(&b, "  (%s, %s, %s, %s, %s, %s, %s, %s, %s, %d, true)",
			strconv.FormatFloat(h.Lat, 'f', -1, 64),
			strconv.FormatFloat(h.Lng, 'f', -1, 64),
			Quote(h.LocationName),
			Quote(h.Category),
			Quote(h.Title),
			Quote(h.Description),
			Quote(h.URL),
			Quote(h.CircleSlug),
			Quote(h.Status),
			h.Priority,
		)
		if i < len(hotspots)-1 {
			b.WriteString(",\n")
		} else {
			b.WriteString(";\n")
		}
	}

	fmt.Fprintf(&b, "\n-- %d hotspots inserted\n", len(hotspots))
	return b.String()
}

// Preview cuts sql to at most limit bytes for printing.
func Preview(sql string, limit int) string {
	if len(sql) <= limit {
		return sql
	}
	return sql[:limit]
}
