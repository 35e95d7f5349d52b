package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"

	"mazefire.ai/internal/protocol"
	"mazefire.ai/internal/sim/encoding"
	"mazefire.ai/internal/sim/grid"
)

func main() {
	var (
		url       = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		size      = flag.String("size", "", "size preset (small, medium, large)")
		speed     = flag.String("speed", "", "speed preset (slow, fast, turbo)")
		algorithm = flag.String("algorithm", "", "bfs, dfs or astar (default: server tuning)")
		seed      = flag.Int64("seed", 0, "maze seed (0 = server default)")
		every     = flag.Uint64("every", 2, "drag a wall onto the path every N ticks")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	start := protocol.StartRunMsg{
		Type:            protocol.TypeStartRun,
		ProtocolVersion: protocol.Version,
		Size:            *size,
		Speed:           *speed,
		Algorithm:       *algorithm,
		Seed:            *seed,
	}
	if err := conn.WriteJSON(start); err != nil {
		logger.Fatalf("send START_RUN: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	var (
		runID      string
		w, h       int
		dragRadius int
		moves      int
	)
	for {
		select {
		case <-stop:
			return
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			logger.Printf("read: %v", err)
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeStarted:
			var m protocol.StartedMsg
			if err := json.Unmarshal(msg, &m); err != nil {
				continue
			}
			runID, w, h, dragRadius = m.RunID, m.Width, m.Height, m.DragRadius
			logger.Printf("STARTED run=%s %dx%d %s seed=%d", m.RunID, m.Width, m.Height, m.Algorithm, m.Seed)

		case protocol.TypeTick:
			var m protocol.TickMsg
			if err := json.Unmarshal(msg, &m); err != nil || m.RunID != runID {
				continue
			}
			if m.State != "running" || *every == 0 || m.Tick%*every != 0 {
				continue
			}
			if mv, ok := pickMove(&m, w, h, dragRadius); ok {
				if err := conn.WriteJSON(mv); err != nil {
					logger.Printf("send MOVE_WALL: %v", err)
					return
				}
				moves++
			}

		case protocol.TypeSummary:
			var m protocol.SummaryMsg
			if err := json.Unmarshal(msg, &m); err != nil || m.RunID != runID {
				continue
			}
			logger.Printf("SUMMARY run=%s ticks=%s steps=%s samples=%s moves=%s",
				m.RunID, humanize.Comma(int64(m.Ticks)), humanize.Comma(int64(m.Steps)),
				humanize.Comma(int64(len(m.Samples))), humanize.Comma(int64(moves)))
			logger.Printf("  path length   median=%s iqr=%s", humanize.Ftoa(m.PathLength.Median), humanize.Ftoa(m.PathLength.IQR))
			logger.Printf("  tiles checked median=%s iqr=%s", humanize.Ftoa(m.TilesChecked.Median), humanize.Ftoa(m.TilesChecked.IQR))
			logger.Printf("  calc ms       median=%s iqr=%s", humanize.FtoaWithDigits(m.CalcMs.Median, 3), humanize.FtoaWithDigits(m.CalcMs.IQR, 3))
			return

		case protocol.TypeError:
			var m protocol.ErrorMsg
			_ = json.Unmarshal(msg, &m)
			logger.Fatalf("ERROR %s: %s", m.Code, m.Message)
		}
	}
}

// pickMove finds an unplaced wall that can be dragged onto the fire's next
// few steps.
func pickMove(m *protocol.TickMsg, w, h, radius int) (protocol.MoveWallMsg, bool) {
	codes, err := encoding.DecodeTiles(m.Tiles, w*h)
	if err != nil {
		return protocol.MoveWallMsg{}, false
	}
	at := func(c grid.Cell) uint16 { return codes[c.Y*w+c.X] }
	marked := grid.FlagTarget | grid.FlagFire

	// Skip the fire's own cell and the target.
	for i := 1; i < len(m.Path)-1 && i <= 3; i++ {
		to := grid.Cell{X: m.Path[i][0], Y: m.Path[i][1]}
		if at(to)&3 != grid.CodeFloor || at(to)&marked != 0 {
			continue
		}
		for dy := -radius; dy <= radius; dy++ {
			for dx := -radius; dx <= radius; dx++ {
				from := to.Add(dx, dy)
				if from.X < 0 || from.Y < 0 || from.X >= w || from.Y >= h {
					continue
				}
				if c := at(from); c&3 == grid.CodeWall && c&marked == 0 {
					return protocol.MoveWallMsg{
						Type:            protocol.TypeMoveWall,
						ProtocolVersion: protocol.Version,
						From:            [2]int{from.X, from.Y},
						To:              [2]int{to.X, to.Y},
					}, true
				}
			}
		}
	}
	return protocol.MoveWallMsg{}, false
}
