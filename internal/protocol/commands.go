package protocol

// START_RUN (client -> server). Zero fields fall back to server tuning;
// Size and Speed name presets and lose to explicit values.
type StartRunMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
	Size         string `json:"size,omitempty"`
	WallLifespan int    `json:"wall_lifespan,omitempty"`
	TickMs       int    `json:"tick_ms,omitempty"`
	Speed        string `json:"speed,omitempty"`
	Algorithm    string `json:"algorithm,omitempty"`
	Seed         int64  `json:"seed,omitempty"`
}

// PLACE_WALL (client -> server)
type PlaceWallMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Pos             [2]int `json:"pos"`
}

// MOVE_WALL (client -> server)
type MoveWallMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	From            [2]int `json:"from"`
	To              [2]int `json:"to"`
}
