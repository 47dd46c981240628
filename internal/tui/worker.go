package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/handiism/naip-downloader/internal/config"
	"github.com/handiism/naip-downloader/internal/download"
)

// Job is one download requested from the input screen.
type Job struct {
	// Ctx is cancelled when the user aborts the download.
	Ctx context.Context

	Year     *int
	State    string
	Settings *config.Settings
}

// sender delivers messages to the running program. *tea.Program satisfies it.
type sender interface {
	Send(msg tea.Msg)
}

// Run starts the TUI application.
//
// The renderer and the downloader run on separate goroutines: the model
// hands jobs to the downloader over a channel and the downloader reports
// back with program messages. Quitting the UI cancels a running download.
func Run(ctx context.Context, settings *config.Settings, logger zerolog.Logger) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	jobs := make(chan Job)
	p := tea.NewProgram(NewModel(settings, jobs), tea.WithAltScreen(), tea.WithContext(ctx))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer stop()
		_, err := p.Run()
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	})
	g.Go(func() error {
		return work(gctx, p, logger, jobs)
	})

	return g.Wait()
}

// work runs jobs one at a time until ctx is done.
func work(ctx context.Context, s sender, logger zerolog.Logger, jobs <-chan Job) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case job := <-jobs:
			s.Send(runJob(ctx, s, logger, job))
		}
	}
}

func runJob(ctx context.Context, s sender, logger zerolog.Logger, job Job) DownloadDoneMsg {
	jobCtx, cancel := context.WithCancel(job.Ctx)
	defer cancel()
	defer context.AfterFunc(ctx, cancel)()

	manager, err := download.NewManager(job.Settings, logger, func(event download.ProgressEvent) {
		s.Send(ProgressMsg{Event: event})
	})
	if err != nil {
		return DownloadDoneMsg{Err: err}
	}
	s.Send(JobStartedMsg{Manager: manager})

	report, err := manager.Download(jobCtx, job.Year, job.State)
	return DownloadDoneMsg{Report: report, Progress: manager.GetProgress(), Err: err}
}
