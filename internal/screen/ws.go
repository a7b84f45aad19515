package screen

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"pubcast/internal/display"
	"pubcast/internal/eventbus"
	"pubcast/internal/render"
	logx "pubcast/pkg/logx"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxClientMsg   = 512
	clientEventBuf = 64
)

// handleScreenWS streams render frames for one screen. The first frame is the
// current state; after that one frame per slot change, skipping anything older
// than what the client already has.
func (s *Server) handleScreenWS(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	sched, ok := s.deps.Hub.Scheduler(name)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown screen")
		return
	}

	// Subscribe before taking the initial snapshot so no change falls in between.
	var events <-chan eventbus.Event
	if s.deps.Bus != nil {
		ch, unsub := s.deps.Bus.Subscribe(display.StateTopic(name), clientEventBuf)
		defer unsub()
		events = ch
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		s.log.Debug("websocket upgrade failed", logx.String("screen", name), logx.Err(err))
		return
	}
	s.clients.Add(1)
	defer s.clients.Done()
	defer conn.Close()

	log := s.log.With(logx.String("screen", name), logx.String("client", uuid.NewString()))
	log.Info("screen client connected", logx.String("remote", r.RemoteAddr))
	defer log.Info("screen client disconnected")

	conn.SetReadLimit(maxClientMsg)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Screens never send anything meaningful; reading only drives control frames and
	// notices the close.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	send := func(f render.Frame) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(f)
	}

	snap := sched.Snapshot()
	lastSeq := snap.Seq
	if err := send(render.FrameOf(snap)); err != nil {
		log.Debug("initial frame write failed", logx.Err(err))
		return
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			return
		case <-s.quit:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(time.Second))
			return
		case e, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			snap, ok := e.Data.(display.Snapshot)
			if !ok || snap.Seq <= lastSeq {
				continue
			}
			lastSeq = snap.Seq
			if err := send(render.FrameOf(snap)); err != nil {
				log.Debug("frame write failed", logx.Err(err))
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
