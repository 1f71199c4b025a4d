package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"HistFill/internal/repository"
	xhttp "HistFill/pkg/http"
	xlogger "HistFill/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

const (
	defaultStreamSeconds = 1
	maxStreamSeconds     = 30
	streamWriteLimit     = 5 * time.Second
)

// StreamJob upgrades to WebSocket and pushes progress snapshots until the job
// reaches a terminal state or the client goes away. The push interval defaults
// to one second and can be raised with ?interval=<seconds>.
func (h *IngestEchoHandler) StreamJob(c echo.Context) error {
	jobID := c.Param("id")
	ctx := c.Request().Context()

	seconds := xhttp.ParseIntDefault(c.QueryParam("interval"), defaultStreamSeconds)
	if seconds < defaultStreamSeconds || seconds > maxStreamSeconds {
		seconds = defaultStreamSeconds
	}
	interval := time.Duration(seconds) * time.Second

	if _, err := h.manager.Get(ctx, jobID); err != nil {
		return h.jobError(c, jobID, err)
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Drain client frames so close messages are noticed.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		job, err := h.manager.Get(ctx, jobID)
		if err != nil {
			if errors.Is(err, repository.ErrJobNotFound) {
				h.writeClose(conn, websocket.CloseNormalClosure, "job expired")
				return nil
			}
			h.logger.Error("stream job lookup", xlogger.String("job_id", jobID), xlogger.Error(err))
			h.writeClose(conn, websocket.CloseInternalServerErr, "lookup failed")
			return nil
		}

		conn.SetWriteDeadline(time.Now().Add(streamWriteLimit))
		if err := conn.WriteJSON(job.Progress()); err != nil {
			return nil
		}

		if job.Status.Terminal() {
			h.writeClose(conn, websocket.CloseNormalClosure, string(job.Status))
			return nil
		}

		select {
		case <-ticker.C:
		case <-clientGone:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

func (h *IngestEchoHandler) writeClose(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	conn.SetWriteDeadline(time.Now().Add(streamWriteLimit))
	_ = conn.WriteMessage(websocket.CloseMessage, msg)
}
