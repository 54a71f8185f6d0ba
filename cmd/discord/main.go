// cmd/discord/main.go
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/keshon/domme-music/internal/config"
	"github.com/keshon/domme-music/internal/discord"
	"github.com/keshon/domme-music/internal/logging"
	"github.com/keshon/domme-music/internal/music/adapter"
	"github.com/keshon/domme-music/internal/music/queue"
	"github.com/keshon/domme-music/internal/music/sources"
	"github.com/keshon/domme-music/internal/music/sources/spotify"
	"github.com/keshon/domme-music/internal/music/sources/upload"
	"github.com/keshon/domme-music/internal/music/sources/youtube"
	"github.com/keshon/domme-music/internal/music/track"
	"github.com/keshon/domme-music/internal/storage"
	v "github.com/keshon/domme-music/internal/version"
	"github.com/keshon/domme-music/pkg/cmd"
	"github.com/keshon/domme-music/pkg/jobmgr"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		// the logger depends on config, so this one goes to a bare logger
		zerolog.New(os.Stderr).Fatal().Err(err).Msg("config")
	}

	log := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	log.Info().Str("app", v.AppName).Str("go", v.GoVersion).Msg("starting")

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("exited with error")
	}
	log.Info().Msg("exited cleanly")
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.New(cfg.StoragePath, logging.Component(log, "storage"))
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("close storage")
		}
	}()

	jobs := jobmgr.NewManager(ctx, jobmgr.LogReporter(logging.Component(log, "jobs")))

	mux := adapter.NewMux(logging.Component(log, "adapter"))
	link := adapter.NewLink(adapter.LinkConfig{URL: cfg.RendererURL, Token: cfg.RendererToken}, mux, logging.Component(log, "link"))
	if err := jobs.StartAsync("renderer", link.Run); err != nil {
		return err
	}

	resolver := newResolver(cfg, log)

	reg := cmd.NewRegistry()
	b, err := discord.New(cfg, store, reg, logging.Component(log, "discord"))
	if err != nil {
		return err
	}
	notifier := discord.NewNotifier(b.Session(), logging.Component(log, "notifier"))

	queueLog := logging.Component(log, "queue")
	queues := queue.NewRegistry(func(guildID string) *queue.Queue {
		client := mux.Client(guildID)
		if err := client.Connect(); err != nil {
			queueLog.Error().Err(err).Str("guild", guildID).Msg("renderer client connect")
		}
		client.OnError(func(e *adapter.TransportError) {
			queueLog.Warn().Str("guild", e.GuildID).Int("code", e.Code).Msg(e.Message)
		})
		return queue.New(queue.Config{
			GuildID:         guildID,
			Renderer:        client,
			Notifier:        notifier,
			Logger:          queueLog,
			JoinSettleDelay: cfg.JoinSettleDelay,
			StatusTimeout:   cfg.StatusTimeout,
			OnPlay: func(guildID string, t track.Track) {
				if err := store.AddTrackHistory(guildID, storage.NewTrackRecord(t, time.Now())); err != nil {
					queueLog.Warn().Err(err).Str("guild", guildID).Msg("save track history")
				}
			},
		})
	}, logging.Component(log, "registry"))
	defer queues.Close()

	discord.RegisterCommands(reg, cfg, discord.Services{
		Queues:   queues,
		Resolver: resolver,
		Voice:    b,
		Status:   &runtimeStatus{mux: mux, queues: queues, jobs: jobs},
		Syncer:   b,
	})

	err = jobs.StartSync("discord", b.Run)

	jobs.StopAll()
	waitJobs(jobs, log)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func newResolver(cfg *config.Config, log zerolog.Logger) *sources.Resolver {
	srcLog := logging.Component(log, "sources")

	details := youtube.NewDataAPI(cfg.YouTubeAPIKey)
	search := youtube.NewSearch(details, srcLog)
	yt := youtube.New(youtube.NewClient(cfg.YouTubeProxy, srcLog), search, details, srcLog)
	uploads := upload.New(upload.NewFFProbe(), srcLog)

	return sources.NewResolver(search, uploads, srcLog,
		yt,
		spotify.New(search, spotify.NewCatalog(cfg.SpotifyID, cfg.SpotifySecret), srcLog),
		uploads,
	)
}

func waitJobs(jobs *jobmgr.Manager, log zerolog.Logger) {
	done := make(chan struct{})
	go func() {
		jobs.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		log.Warn().Str("jobs", jobs.Status()).Msg("jobs still running at shutdown")
	}
}

// runtimeStatus answers /maintenance status.
type runtimeStatus struct {
	mux    *adapter.Mux
	queues *queue.Registry
	jobs   *jobmgr.Manager
}

func (s *runtimeStatus) RendererConnected() bool { return s.mux.Connected() }
func (s *runtimeStatus) Jobs() string            { return s.jobs.Status() }

func (s *runtimeStatus) ActiveQueues(ctx context.Context) int { return s.queues.Active(ctx) }
