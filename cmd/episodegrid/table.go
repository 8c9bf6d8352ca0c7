package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"

	"episodegrid/internal/episode"
)

const titleWidth = 60

// printEpisodes writes one aligned row per episode. Widths are measured in
// terminal cells so wide titles do not break the columns.
func printEpisodes(w io.Writer, episodes []episode.Episode) {
	if len(episodes) == 0 {
		fmt.Fprintln(w, "No episodes found at the moment.")
		return
	}

	idWidth := len("ID")
	for _, ep := range episodes {
		if n := runewidth.StringWidth(ep.ID); n > idWidth {
			idWidth = n
		}
	}

	fmt.Fprintf(w, "%s  %-10s  %s\n", runewidth.FillRight("ID", idWidth), "DAY", "TITLE")
	fmt.Fprintf(w, "%s  %s  %s\n", strings.Repeat("-", idWidth), strings.Repeat("-", 10), strings.Repeat("-", titleWidth))
	for _, ep := range episodes {
		title := runewidth.Truncate(ep.Title, titleWidth, "…")
		fmt.Fprintf(w, "%s  %-10s  %s\n", runewidth.FillRight(ep.ID, idWidth), episode.BucketDate(ep), title)
	}
}
