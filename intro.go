package main

import (
	"context"
	"io"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Zachkp/folio/internal/clock"
	"github.com/Zachkp/folio/internal/content"
	"github.com/Zachkp/folio/internal/metrics"
	"github.com/Zachkp/folio/internal/session"
	"github.com/Zachkp/folio/internal/typewriter"
)

// introHub runs at most one intro per session. Opening a new stream for a
// session cancels the previous run before the new one starts.
type introHub struct {
	catalog *content.Catalog
	flags   session.Store
	clk     clock.Clock
	log     zerolog.Logger
	opts    []typewriter.Option

	mu   sync.Mutex
	runs map[string]*introRun
}

type introRun struct {
	lang    content.Lang
	player  *typewriter.Player
	frames  chan typewriter.Frame
	done    chan struct{}
	stopped chan struct{}
	cancel  context.CancelFunc
	skipped atomic.Bool
}

func newIntroHub(catalog *content.Catalog, flags session.Store, clk clock.Clock, log zerolog.Logger) *introHub {
	return &introHub{
		catalog: catalog,
		flags:   flags,
		clk:     clk,
		log:     log,
		runs:    make(map[string]*introRun),
	}
}

// start replaces the session's run with a fresh one for lang.
func (h *introHub) start(sid string, lang content.Lang) *introRun {
	tbl := h.catalog.Get(lang)
	ctx, cancel := context.WithCancel(context.Background())
	run := &introRun{
		lang:    tbl.Lang,
		frames:  make(chan typewriter.Frame, 32),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		cancel:  cancel,
	}
	var once sync.Once
	run.player = typewriter.NewPlayer(
		tbl.Machine(h.opts...),
		session.NewFlag(h.flags, sid, session.IntroSeen, h.log),
		typewriter.OnFrame(run.push),
		typewriter.OnComplete(func() {
			once.Do(func() {
				outcome := "played"
				if run.skipped.Load() {
					outcome = "skipped"
				}
				metrics.IntroOutcomes.WithLabelValues(string(run.lang), outcome).Inc()
				close(run.done)
			})
		}),
	)

	h.mu.Lock()
	if old, ok := h.runs[sid]; ok {
		old.cancel()
		<-old.stopped
	}
	h.runs[sid] = run
	h.mu.Unlock()

	go func() {
		defer close(run.stopped)
		if err := run.player.Run(ctx, h.clk); err != nil && err != context.Canceled {
			h.log.Error().Err(err).Str("session", sid).Msg("intro run")
		}
	}()
	return run
}

// stop ends run and forgets it unless a newer run replaced it.
func (h *introHub) stop(sid string, run *introRun) {
	run.cancel()
	<-run.stopped

	h.mu.Lock()
	if h.runs[sid] == run {
		delete(h.runs, sid)
	}
	h.mu.Unlock()
}

// skip completes the session's intro. Without a running intro it only sets
// the seen flag.
func (h *introHub) skip(ctx context.Context, sid string) error {
	h.mu.Lock()
	run := h.runs[sid]
	h.mu.Unlock()

	if run != nil {
		st := run.player.State()
		h.log.Debug().Str("session", sid).Str("phase", string(st.Phase)).
			Int("revealed", st.Revealed()).Msg("skip intro")
		run.skipped.Store(true)
		run.player.Skip()
		return nil
	}
	return h.flags.SetFlag(ctx, sid, session.IntroSeen)
}

// push keeps the newest frames; a slow client drops the oldest ones. Every
// frame is a full snapshot, so nothing is lost but intermediate steps.
func (r *introRun) push(f typewriter.Frame) {
	for {
		select {
		case r.frames <- f:
			return
		default:
		}
		select {
		case <-r.frames:
		default:
		}
	}
}

func (h *introHub) handleStream(c *gin.Context) {
	sid := sessionID(c)
	run := h.start(sid, requestLang(c))
	defer h.stop(sid, run)

	metrics.IntroStreams.Inc()
	defer metrics.IntroStreams.Dec()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	if run.player.State().Phase == typewriter.PhaseComplete {
		metrics.IntroOutcomes.WithLabelValues(string(run.lang), "seen").Inc()
		c.SSEvent("complete", run.player.Frame())
		return
	}

	c.SSEvent("frame", run.player.Frame())
	c.Writer.Flush()
	if c.Query("visible") == "1" {
		run.player.Trigger(h.clk.Now())
	}

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case f := <-run.frames:
			c.SSEvent("frame", f)
			return true
		case <-run.done:
			c.SSEvent("complete", run.player.Frame())
			return false
		case <-run.stopped:
			// replaced by a newer stream, unless it just completed
			select {
			case <-run.done:
				c.SSEvent("complete", run.player.Frame())
			default:
			}
			return false
		case <-ctx.Done():
			return false
		}
	})
}

func (h *introHub) handleSkip(c *gin.Context) {
	if err := h.skip(c.Request.Context(), sessionID(c)); err != nil {
		h.log.Warn().Err(err).Msg("skip intro")
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Status(http.StatusNoContent)
}
