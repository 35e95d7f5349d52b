package protocol

// STARTED (server -> client)
type StartedMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RunID           string `json:"run_id"`
	Seed            int64  `json:"seed"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	WallLifespan    int    `json:"wall_lifespan"`
	TickMs          int    `json:"tick_ms"`
	Algorithm       string `json:"algorithm"`
	DragRadius      int    `json:"drag_radius"`
	Target          [2]int `json:"target"`
	Fire            [2]int `json:"fire"`
}

// TICK (server -> client)
type TickMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RunID           string `json:"run_id"`
	Tick            uint64 `json:"tick"`
	State           string `json:"state"`

	Fire   [2]int     `json:"fire"`
	Target [2]int     `json:"target"`
	Path   [][2]int   `json:"path"`
	Shapes []string   `json:"shapes"`
	Sample *SampleObs `json:"sample,omitempty"`

	Crumbled     [][2]int `json:"crumbled,omitempty"`
	Collapsed    [][2]int `json:"collapsed,omitempty"`
	Ignited      [][2]int `json:"ignited,omitempty"`
	Extinguished [][2]int `json:"extinguished,omitempty"`

	// Tiles is the row-major tile code table, run-length encoded.
	Tiles  string    `json:"tiles"`
	Walls  []WallObs `json:"walls"`
	Digest string    `json:"digest"`
}

type SampleObs struct {
	Tick         uint64  `json:"tick"`
	PathLength   int     `json:"path_length"`
	TilesChecked int     `json:"tiles_checked"`
	CalcMs       float64 `json:"calc_ms"`
}

type WallObs struct {
	Pos     [2]int `json:"pos"`
	Counter int    `json:"counter"`
}

type SpreadObs struct {
	Median float64 `json:"median"`
	IQR    float64 `json:"iqr"`
}

// SUMMARY (server -> client)
type SummaryMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	RunID           string      `json:"run_id"`
	Algorithm       string      `json:"algorithm"`
	Ticks           uint64      `json:"ticks"`
	Steps           int         `json:"steps"`
	Samples         []SampleObs `json:"samples"`
	PathLength      SpreadObs   `json:"path_length"`
	TilesChecked    SpreadObs   `json:"tiles_checked"`
	CalcMs          SpreadObs   `json:"calc_ms"`
}
