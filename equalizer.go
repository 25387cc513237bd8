package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gopxl/beep"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Zachkp/folio/internal/equalizer"
	"github.com/Zachkp/folio/internal/metrics"
)

const padSampleRate = beep.SampleRate(44100)

type barsMessage struct {
	Bars []float64 `json:"bars"`
}

// equalizerHub serves bar heights for the ambient track. Each socket gets its
// own deck, the way each browser plays its own copy of the track.
type equalizerHub struct {
	track    string
	fps      int
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

func newEqualizerHub(track string, fps int, log zerolog.Logger) *equalizerHub {
	return &equalizerHub{
		track: track,
		fps:   fps,
		log:   log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// openTrack decodes the configured track, or synthesizes a pad when none is
// set.
func (h *equalizerHub) openTrack() (*equalizer.Track, error) {
	if h.track == "" {
		return equalizer.SynthPad(padSampleRate)
	}
	return equalizer.OpenTrack(h.track)
}

func (h *equalizerHub) handleSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	metrics.EqualizerClients.Inc()
	defer metrics.EqualizerClients.Dec()

	track, err := h.openTrack()
	if err != nil {
		h.log.Error().Err(err).Msg("open ambient track")
		if err := conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "track unavailable")); err != nil {
			h.log.Debug().Err(err).Msg("send close frame")
		}
		return
	}
	defer track.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// the client only ever closes; any read error ends the stream
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := h.stream(ctx, conn, track); err != nil && !errors.Is(err, context.Canceled) {
		h.log.Debug().Err(err).Msg("equalizer stream ended")
	}
}

func (h *equalizerHub) stream(ctx context.Context, conn *websocket.Conn, track *equalizer.Track) error {
	deck := equalizer.NewDeck(track.Streamer, track.Format.SampleRate, h.fps)
	analyzer := equalizer.NewAnalyzer(deck.Node(), nil)

	ticker := time.NewTicker(time.Second / time.Duration(h.fps))
	defer ticker.Stop()

	return equalizer.Run(ctx, ticker.C, deck, analyzer, func(bars []float64) error {
		conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if err := conn.WriteJSON(barsMessage{Bars: bars}); err != nil {
			return err
		}
		metrics.EqualizerFrames.Inc()
		return nil
	})
}

// handleTrack serves the configured track file. The synthesized pad only
// exists server side.
func (h *equalizerHub) handleTrack(c *gin.Context) {
	if h.track == "" {
		c.Status(http.StatusNotFound)
		return
	}
	c.File(h.track)
}
