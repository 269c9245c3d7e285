package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/himanishpuri/VinylKeeper/internal/session"
	"github.com/himanishpuri/VinylKeeper/internal/storage"
	"github.com/himanishpuri/VinylKeeper/pkg/models"
	"github.com/himanishpuri/VinylKeeper/pkg/vinylkeeper"
)

func printSortKeys(w io.Writer) {
	for i, k := range models.SortKeys {
		fmt.Fprintf(w, "  %d) %-22s (%s)\n", i+1, k.Label(), k)
	}
}

func printMetadata(w io.Writer, meta models.SongMetadata) {
	fmt.Fprintf(w, "   Title:   %s\n", meta.Name)
	fmt.Fprintf(w, "   Artist:  %s\n", meta.Artist)
	if meta.Album != "" {
		fmt.Fprintf(w, "   Album:   %s\n", meta.Album)
	}
	if meta.Genre != "" {
		fmt.Fprintf(w, "   Genre:   %s\n", meta.Genre)
	}
}

func printSummary(w io.Writer, sum session.Summary) {
	if sum.ID == "" {
		return
	}
	fmt.Fprintf(w, "\nSession %s finished\n", sum.ID)
	fmt.Fprintf(w, "   Listened: %s (%s windows)\n", sum.Duration.Round(100*time.Millisecond), humanize.Comma(int64(sum.Windows)))
	fmt.Fprintf(w, "   Matched:  %s, skipped %s\n", humanize.Comma(int64(sum.Matched)), humanize.Comma(int64(sum.Skipped())))
	if len(sum.Plays) == 0 {
		fmt.Fprintln(w, "   No plays recorded.")
		return
	}
	fmt.Fprintf(w, "   Recorded %s:\n", pluralPlays(len(sum.Plays)))
	for _, p := range sum.Plays {
		fmt.Fprintf(w, "     %s by %s\n", p.Name, p.Artist)
	}
}

func printResult(w io.Writer, res *storage.QueryResult) {
	if res == nil {
		return
	}
	fmt.Fprintf(w, "\n%s\n", res.Key.Label())
	if res.Key.Counted() {
		printCounts(w, res.Counts)
		return
	}
	printEvents(w, res.Events)
}

func printEvents(w io.Writer, events []models.PlayEvent) {
	if len(events) == 0 {
		fmt.Fprintln(w, "No plays recorded yet.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SONG\tARTIST\tALBUM\tGENRE\tPLAYED")
	for _, ev := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", ev.Name, ev.Artist, ev.Album, ev.Genre, humanize.Time(ev.Timestamp))
	}
	tw.Flush()
}

func printCounts(w io.Writer, counts []models.PlayCount) {
	if len(counts) == 0 {
		fmt.Fprintln(w, "No plays recorded yet.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VALUE\tPLAYS")
	for _, c := range counts {
		value := c.Value
		if value == "" {
			value = "(unknown)"
		}
		fmt.Fprintf(tw, "%s\t%s\n", value, humanize.Comma(int64(c.Count)))
	}
	tw.Flush()
}

func printMatches(w io.Writer, matches []vinylkeeper.MatchResult) {
	if len(matches) == 0 {
		fmt.Fprintln(w, "❌ No match found.")
		return
	}
	fmt.Fprintf(w, "\n✅ Found %d candidate(s):\n", len(matches))
	for i, m := range matches {
		fmt.Fprintf(w, "\n#%d  %.1f%% confidence (%d aligned hashes, at %s)\n",
			i+1, m.Confidence, m.Score, humanizeOffset(m.OffsetMs))
		fmt.Fprintf(w, "   ID:      %s\n", m.TrackID)
		printMetadata(w, m.SongMetadata)
	}
}

func printTracks(w io.Writer, tracks []storage.Track) {
	if len(tracks) == 0 {
		fmt.Fprintln(w, "The index is empty.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tARTIST\tALBUM\tLENGTH\tINDEXED")
	for _, t := range tracks {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.Title, t.Artist, t.Album, humanizeOffset(int32(t.DurationMs)), humanize.Time(t.CreatedAt))
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%s track(s)\n", humanize.Comma(int64(len(tracks))))
}

func humanizeOffset(ms int32) string {
	if ms < 0 {
		ms = 0
	}
	s := ms / 1000
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

func pluralPlays(n int) string {
	if n == 1 {
		return "1 play"
	}
	return humanize.Comma(int64(n)) + " plays"
}
