// cmd/cli/main.go inspects the bot's datastore without starting the bot.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/keshon/domme-music/internal/storage"
	"github.com/rs/zerolog"
)

var (
	header = color.New(color.FgHiMagenta, color.Bold)
	dim    = color.New(color.FgHiBlack)
)

func main() {
	path := flag.String("storage", "datastore.json", "datastore file")
	guild := flag.String("guild", "", "show one guild's history")
	flag.Parse()

	store, err := storage.New(*path, zerolog.Nop())
	if err != nil {
		fmt.Fprintln(os.Stderr, "open storage:", err)
		os.Exit(1)
	}
	defer store.Close()

	if *guild == "" {
		err = printSummary(os.Stdout, store)
	} else {
		err = printGuild(os.Stdout, store, *guild, time.Now())
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func printSummary(w io.Writer, store *storage.Storage) error {
	st := store.Stats()
	header.Fprintf(w, "%s\n", st.FilePath)
	fmt.Fprintf(w, "%d guilds, %s\n", st.Keys, humanize.Bytes(uint64(st.Size)))
	for _, id := range store.Guilds() {
		channel, err := store.MusicChannel(id)
		if err != nil {
			return err
		}
		history, err := store.TrackHistory(id)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "  %s  %d tracks played", id, len(history))
		if channel != "" {
			dim.Fprintf(w, "  music channel %s", channel)
		}
		fmt.Fprintln(w)
	}
	return nil
}

func printGuild(w io.Writer, store *storage.Storage, guildID string, now time.Time) error {
	tracks, err := store.TrackHistory(guildID)
	if err != nil {
		return err
	}
	header.Fprintln(w, "Tracks")
	for _, t := range tracks {
		fmt.Fprintf(w, "  %s ", t.Title)
		dim.Fprintf(w, "%s by %s, %s\n", t.Kind, t.RequesterID, humanize.RelTime(t.PlayedAt, now, "ago", "from now"))
	}

	cmds, err := store.CommandsHistory(guildID)
	if err != nil {
		return err
	}
	header.Fprintln(w, "Commands")
	for _, c := range cmds {
		fmt.Fprintf(w, "  /%s %s ", c.Command, c.Param)
		dim.Fprintf(w, "%s in #%s, %s\n", c.Username, c.ChannelName, humanize.Time(c.Datetime))
	}

	disabled, err := store.DisabledGroups(guildID)
	if err != nil {
		return err
	}
	if len(disabled) > 0 {
		header.Fprintln(w, "Disabled groups")
		for _, g := range disabled {
			fmt.Fprintf(w, "  %s\n", g)
		}
	}
	return nil
}
