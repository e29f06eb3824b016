// Package imagemeta reads rights and authorship fields embedded in
// downloaded images so collected files keep their attribution.
package imagemeta

import (
	"bytes"
	"strings"

	"github.com/bep/imagemeta"
)

// Info holds the EXIF, IPTC and XMP fields relevant to licensing.
type Info struct {
	Copyright    string `json:"copyright,omitempty"`
	Artist       string `json:"artist,omitempty"`
	Credit       string `json:"credit,omitempty"`
	Source       string `json:"source,omitempty"`
	License      string `json:"license,omitempty"`
	WebStatement string `json:"web_statement,omitempty"`
	UsageTerms   string `json:"usage_terms,omitempty"`
	Rights       string `json:"rights,omitempty"`
	Creator      string `json:"creator,omitempty"`
}

// Empty reports whether no field was found.
func (i Info) Empty() bool {
	return i == Info{}
}

// Attribution is the best single copyright line available.
func (i Info) Attribution() string {
	for _, s := range []string{i.Copyright, i.Rights, i.Credit, i.Creator, i.Artist} {
		if s != "" {
			return s
		}
	}
	return ""
}

// LicenseURL is the first license-like field found.
func (i Info) LicenseURL() string {
	for _, s := range []string{i.License, i.WebStatement, i.UsageTerms} {
		if s != "" {
			return s
		}
	}
	return ""
}

var stockKeywords = []string{
	"shutterstock",
	"gettyimages",
	"getty images",
	"istock",
	"alamy",
	"depositphotos",
	"dreamstime",
	"123rf",
	"adobe stock",
	"adobestock",
}

// IsStock reports whether an authorship field names a stock agency. Such
// images carry watermarks or restrictive terms and are poor training data.
func (i Info) IsStock() bool {
	for _, f := range []string{i.Copyright, i.Artist, i.Credit, i.Source, i.Rights, i.Creator} {
		lower := strings.ToLower(f)
		for _, kw := range stockKeywords {
			if lower != "" && strings.Contains(lower, kw) {
				return true
			}
		}
	}
	return false
}

var wantedTags = map[imagemeta.Source]map[string]bool{
	imagemeta.IPTC: {
		"CopyrightNotice": true,
		"Credit":          true,
		"Byline":          true,
		"Source":          true,
	},
	imagemeta.EXIF: {
		"Copyright": true,
		"Artist":    true,
	},
	imagemeta.XMP: {
		"WebStatement": true,
		"UsageTerms":   true,
		"License":      true,
		"Rights":       true,
		"Creator":      true,
	},
}

// Extract parses embedded metadata from image bytes. Unparseable or
// metadata-free images give an empty Info.
func Extract(data []byte) Info {
	var info Info
	if len(data) == 0 {
		return info
	}

	_, err := imagemeta.Decode(imagemeta.Options{
		R:       bytes.NewReader(data),
		Sources: imagemeta.EXIF | imagemeta.IPTC | imagemeta.XMP,
		ShouldHandleTag: func(ti imagemeta.TagInfo) bool {
			return wantedTags[ti.Source][ti.Tag]
		},
		HandleTag: func(ti imagemeta.TagInfo) error {
			set(&info, ti)
			return nil
		},
	})
	if err != nil {
		return Info{}
	}
	return info
}

func set(info *Info, ti imagemeta.TagInfo) {
	s := strings.TrimSpace(valueString(ti.Value))
	if s == "" {
		return
	}

	switch ti.Source {
	case imagemeta.EXIF:
		switch ti.Tag {
		case "Copyright":
			info.Copyright = s
		case "Artist":
			info.Artist = s
		}
	case imagemeta.IPTC:
		switch ti.Tag {
		case "CopyrightNotice":
			if info.Copyright == "" {
				info.Copyright = s
			}
		case "Byline":
			if info.Artist == "" {
				info.Artist = s
			}
		case "Credit":
			info.Credit = s
		case "Source":
			info.Source = s
		}
	case imagemeta.XMP:
		switch ti.Tag {
		case "License":
			info.License = s
		case "WebStatement":
			info.WebStatement = s
		case "UsageTerms":
			info.UsageTerms = s
		case "Rights":
			info.Rights = s
		case "Creator":
			info.Creator = s
		}
	}
}

// XMP values may be lists.
func valueString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []string:
		if len(val) > 0 {
			return val[0]
		}
	case []any:
		if len(val) > 0 {
			if s, ok := val[0].(string); ok {
				return s
			}
		}
	}
	return ""
}
