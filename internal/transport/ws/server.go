package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"mazefire.ai/internal/protocol"
	"mazefire.ai/internal/sim/grid"
	"mazefire.ai/internal/sim/mazegen"
	"mazefire.ai/internal/sim/pathfind"
	"mazefire.ai/internal/sim/scheduler"
	"mazefire.ai/internal/sim/tuning"
)

const outQueue = 32

type Server struct {
	loop   *scheduler.Loop
	tuning tuning.Tuning
	log    *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(loop *scheduler.Loop, t tuning.Tuning, logger *log.Logger) *Server {
	return &Server{
		loop:   loop,
		tuning: t,
		log:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		out := make(chan []byte, outQueue)
		subResp := make(chan uint64, 1)
		s.loop.Subscribe() <- scheduler.Subscription{Out: out, Resp: subResp}
		subID := <-subResp
		s.logf("client %d connected from %s", subID, r.RemoteAddr)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		writeDone := make(chan struct{})
		go func() {
			defer close(writeDone)
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			if reply := s.handle(msg); reply != nil {
				if b, err := json.Marshal(reply); err == nil {
					enqueue(out, b)
				}
			}
			if ctx.Err() != nil {
				break
			}
		}

		// Cleanup.
		s.loop.Unsubscribe() <- subID
		s.logf("client %d disconnected", subID)
		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
		select {
		case <-writeDone:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// handle routes one client message. It returns the ERROR to send back, if any.
// Successful commands are answered through the loop's broadcast.
func (s *Server) handle(msg []byte) *protocol.ErrorMsg {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return errMsg(protocol.ErrProtoBadRequest, "malformed json")
	}
	if base.ProtocolVersion != protocol.Version {
		return errMsg(protocol.ErrProtoBadRequest, "bad protocol_version")
	}
	switch base.Type {
	case protocol.TypeStartRun, protocol.TypePlaceWall, protocol.TypeMoveWall:
	default:
		return errMsg(protocol.ErrProtoBadRequest, fmt.Sprintf("unknown type %q", base.Type))
	}
	if err := protocol.Validate(base.Type, msg); err != nil {
		return errMsg(protocol.ErrProtoBadRequest, err.Error())
	}

	switch base.Type {
	case protocol.TypeStartRun:
		var m protocol.StartRunMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return errMsg(protocol.ErrProtoBadRequest, err.Error())
		}
		cfg, err := StartConfig(s.tuning, m)
		if err != nil {
			return errMsg(protocol.ErrBadRequest, err.Error())
		}
		resp := make(chan scheduler.StartResponse, 1)
		s.loop.Starts() <- scheduler.StartRequest{Config: cfg, Resp: resp}
		if sr := <-resp; sr.Err != nil {
			return startError(sr.Err)
		}
	case protocol.TypePlaceWall:
		var m protocol.PlaceWallMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return errMsg(protocol.ErrProtoBadRequest, err.Error())
		}
		s.loop.Walls() <- scheduler.WallRequest{Command: scheduler.Command{
			Kind: scheduler.CmdPlaceWall,
			At:   cell(m.Pos),
		}}
	case protocol.TypeMoveWall:
		var m protocol.MoveWallMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return errMsg(protocol.ErrProtoBadRequest, err.Error())
		}
		to := cell(m.To)
		s.loop.Walls() <- scheduler.WallRequest{Command: scheduler.Command{
			Kind: scheduler.CmdMoveWall,
			At:   cell(m.From),
			To:   &to,
		}}
	}
	return nil
}

// StartConfig resolves a START_RUN against the server tuning. Explicit fields
// win over named presets, which win over tuning defaults.
func StartConfig(t tuning.Tuning, m protocol.StartRunMsg) (scheduler.Config, error) {
	cfg := scheduler.Config{
		Width:           t.Width,
		Height:          t.Height,
		WallLifespan:    t.WallLifespan,
		Seed:            t.Seed,
		DragRadius:      t.DragRadius,
		TickInterval:    t.TickInterval(),
		CascadeInterval: t.CascadeInterval(),
	}
	if m.Size != "" {
		n, ok := t.Size(m.Size)
		if !ok {
			return cfg, fmt.Errorf("unknown size %q", m.Size)
		}
		cfg.Width, cfg.Height = n, n
	}
	if m.Width != 0 {
		cfg.Width = m.Width
	}
	if m.Height != 0 {
		cfg.Height = m.Height
	}
	if m.WallLifespan != 0 {
		cfg.WallLifespan = m.WallLifespan
	}
	if m.Speed != "" {
		d, ok := t.Speed(m.Speed)
		if !ok {
			return cfg, fmt.Errorf("unknown speed %q (have %s)", m.Speed, strings.Join(t.SpeedNames(), ", "))
		}
		cfg.TickInterval = d
	}
	if m.TickMs != 0 {
		cfg.TickInterval = time.Duration(m.TickMs) * time.Millisecond
	}
	if m.Seed != 0 {
		cfg.Seed = m.Seed
	}
	name := t.Algorithm
	if m.Algorithm != "" {
		name = m.Algorithm
	}
	alg, err := pathfind.ParseAlgorithm(name)
	if err != nil {
		return cfg, err
	}
	cfg.Algorithm = alg
	return cfg, nil
}

func startError(err error) *protocol.ErrorMsg {
	switch {
	case errors.Is(err, mazegen.ErrInvalidDimension):
		return errMsg(protocol.ErrInvalidDimension, err.Error())
	case errors.Is(err, scheduler.ErrInvalidConfig), errors.Is(err, pathfind.ErrUnknownAlgorithm):
		return errMsg(protocol.ErrBadRequest, err.Error())
	default:
		return errMsg(protocol.ErrInternal, err.Error())
	}
}

func (s *Server) logf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}

func errMsg(code, message string) *protocol.ErrorMsg {
	m := protocol.NewError(code, message)
	return &m
}

func cell(p [2]int) grid.Cell { return grid.Cell{X: p[0], Y: p[1]} }

// enqueue drops the frame when the client is not keeping up.
func enqueue(out chan []byte, b []byte) {
	select {
	case out <- b:
	default:
	}
}
