// Package parser turns user input into job identifiers.
package parser

import (
	"net/url"
	"regexp"
	"strings"
)

var youtubeIDRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{6,}$`)

// SplitIdentifiers splits raw text on newlines, whitespace and commas.
// Lines may be of any length. Lines starting with '#' are comments. URLs of
// known video hosts are reduced to their video id; everything else is kept
// verbatim.
func SplitIdentifiers(text string) []string {
	var ids []string

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.FieldsFunc(line, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		})
		for _, f := range fields {
			ids = append(ids, ExtractVideoID(f))
		}
	}
	return ids
}

// ExtractVideoID returns the video id of a YouTube URL (watch?v=, youtu.be/
// and shorts/ forms). Any other input is returned trimmed and unchanged.
func ExtractVideoID(s string) string {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "youtu") {
		return s
	}

	raw := s
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return s
	}

	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	host = strings.TrimPrefix(host, "m.")
	path := strings.Trim(u.Path, "/")

	var id string
	switch host {
	case "youtu.be":
		id = path
	case "youtube.com", "music.youtube.com":
		switch {
		case path == "watch":
			id = u.Query().Get("v")
		case strings.HasPrefix(path, "shorts/"):
			id = strings.TrimPrefix(path, "shorts/")
		case strings.HasPrefix(path, "embed/"):
			id = strings.TrimPrefix(path, "embed/")
		}
	}

	if i := strings.Index(id, "/"); i >= 0 {
		id = id[:i]
	}
	if !youtubeIDRegex.MatchString(id) {
		return s
	}
	return id
}
