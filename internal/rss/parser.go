package rss

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
	"golang.org/x/net/html/charset"

	"episodegrid/internal/episode"
)

const videoGUIDPrefix = "yt:video:"

// Parse turns raw feed bytes into episode candidates, keeping only episode
// titles and stripping their date annotations. A document without a feed or
// without entries yields an empty slice and no error.
func Parse(data []byte) ([]episode.Episode, error) {
	if err := checkWellFormed(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []episode.Episode{}, nil
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if errors.Is(err, gofeed.ErrFeedTypeNotDetected) {
		return []episode.Episode{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	episodes := make([]episode.Episode, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil || !episode.IsEpisodeTitle(item.Title) {
			continue
		}
		id := pickVideoID(item)
		if id == "" || item.PublishedParsed == nil {
			continue
		}
		episodes = append(episodes, episode.Episode{
			ID:          id,
			Title:       episode.CleanTitle(item.Title),
			Published:   item.Published,
			Thumbnail:   pickThumbnail(item),
			PublishedAt: item.PublishedParsed.UTC(),
		})
	}
	return episodes, nil
}

func pickVideoID(item *gofeed.Item) string {
	if v := extensionValue(item.Extensions, "yt", "videoId"); v != "" {
		return v
	}
	return strings.TrimPrefix(strings.TrimSpace(item.GUID), videoGUIDPrefix)
}

func pickThumbnail(item *gofeed.Item) string {
	for _, group := range item.Extensions["media"]["group"] {
		for _, thumb := range group.Children["thumbnail"] {
			if u := thumb.Attrs["url"]; u != "" {
				return u
			}
		}
	}
	for _, thumb := range item.Extensions["media"]["thumbnail"] {
		if u := thumb.Attrs["url"]; u != "" {
			return u
		}
	}
	if item.Image != nil {
		return item.Image.URL
	}
	return ""
}

func extensionValue(exts ext.Extensions, prefix, name string) string {
	for _, e := range exts[prefix][name] {
		if v := strings.TrimSpace(e.Value); v != "" {
			return v
		}
	}
	return ""
}

// checkWellFormed walks the whole document with a strict decoder. gofeed's
// own pull parser is lenient about unclosed and mismatched tags.
func checkWellFormed(data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charset.NewReaderLabel
	dec.Entity = xml.HTMLEntity
	sawElement := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if _, ok := tok.(xml.StartElement); ok {
			sawElement = true
		}
	}
	if !sawElement {
		return errors.New("no root element")
	}
	return nil
}
