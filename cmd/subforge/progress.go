package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"

	"github.com/subforge/subforge/internal/catalog"
	"github.com/subforge/subforge/internal/installer"
)

// progressRenderer draws one bar per dependency on a terminal and plain
// lines otherwise. handle is never called concurrently.
type progressRenderer struct {
	out  io.Writer
	tty  bool
	bars map[catalog.ID]*progressbar.ProgressBar
	// last remembers the last printed percentage per dependency in line mode.
	last map[catalog.ID]int
}

func newProgressRenderer(out io.Writer, tty bool) *progressRenderer {
	return &progressRenderer{
		out:  out,
		tty:  tty,
		bars: make(map[catalog.ID]*progressbar.ProgressBar),
		last: make(map[catalog.ID]int),
	}
}

func (r *progressRenderer) handle(ev installer.Event) {
	switch ev.Type {
	case installer.EventStarted:
		if !r.tty {
			fmt.Fprintf(r.out, "%s: starting\n", ev.Dependency)
		}
	case installer.EventStrategy:
		if r.tty {
			r.bar(ev.Dependency).Describe(describe(ev.Dependency, ev.Strategy))
			return
		}
		fmt.Fprintf(r.out, "%s: trying %s\n", ev.Dependency, ev.Strategy)
	case installer.EventProgress:
		r.progress(ev)
	case installer.EventCompleted:
		r.finish(ev.Dependency)
		fmt.Fprintf(r.out, "%s: installed %s via %s\n", ev.Dependency, ev.Version, ev.Strategy)
		if ev.Path != "" {
			fmt.Fprintf(r.out, "  %s\n", ev.Path)
		}
	case installer.EventFailed:
		r.finish(ev.Dependency)
		fmt.Fprintf(r.out, "%s: failed (%s)\n", ev.Dependency, ev.Kind)
	}
}

func (r *progressRenderer) progress(ev installer.Event) {
	if r.tty {
		bar := r.bar(ev.Dependency)
		switch {
		case ev.Total > 0:
			if bar.GetMax64() != ev.Total {
				bar.ChangeMax64(ev.Total)
			}
			_ = bar.Set64(ev.Written)
		case ev.Percent >= 0:
			_ = bar.Set(ev.Percent)
		}
		return
	}

	if ev.Percent < 0 || (ev.Percent-r.last[ev.Dependency] < 10 && ev.Percent != 100) {
		return
	}
	r.last[ev.Dependency] = ev.Percent
	if ev.Total > 0 {
		fmt.Fprintf(r.out, "%s: %d%% (%s of %s)\n", ev.Dependency, ev.Percent,
			humanize.IBytes(uint64(ev.Written)), humanize.IBytes(uint64(ev.Total)))
		return
	}
	fmt.Fprintf(r.out, "%s: %d%% %s\n", ev.Dependency, ev.Percent, ev.Message)
}

func (r *progressRenderer) bar(id catalog.ID) *progressbar.ProgressBar {
	if bar, ok := r.bars[id]; ok {
		return bar
	}
	bar := progressbar.NewOptions64(100,
		progressbar.OptionSetWriter(r.out),
		progressbar.OptionSetDescription(describe(id, "")),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowBytes(true),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
	r.bars[id] = bar
	return bar
}

func (r *progressRenderer) finish(id catalog.ID) {
	if bar, ok := r.bars[id]; ok {
		_ = bar.Finish()
		delete(r.bars, id)
	}
	delete(r.last, id)
}

func (r *progressRenderer) close() {
	for id := range r.bars {
		r.finish(id)
	}
}

func describe(id catalog.ID, strategy string) string {
	if strategy == "" {
		return string(id)
	}
	return fmt.Sprintf("%s [%s]", id, strategy)
}
