package clients

// UpdateSource represents the channels auction updates can arrive on
type UpdateSource string

const (
	// UpdateSourcePolling re-fetches status and highest bid on an interval
	UpdateSourcePolling UpdateSource = "poll"

	// UpdateSourceWebSocket receives pushed events over a WebSocket
	UpdateSourceWebSocket UpdateSource = "websocket"

	// UpdateSourceNATS receives pushed events from a NATS subject
	UpdateSourceNATS UpdateSource = "nats"
)

// UpdateSourceConfig describes an update source
type UpdateSourceConfig struct {
	Source      UpdateSource `json:"source"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Priority    int          `json:"priority"` // Higher priority sources are preferred when several are active
	Push        bool         `json:"push"`
}

// GetUpdateSources returns all known update sources
func GetUpdateSources() map[UpdateSource]UpdateSourceConfig {
	return map[UpdateSource]UpdateSourceConfig{
		UpdateSourcePolling: {
			Source:      UpdateSourcePolling,
			Name:        "Polling",
			Description: "Periodic REST fetch of auction status and highest bid",
			Priority:    10,
			Push:        false,
		},
		UpdateSourceWebSocket: {
			Source:      UpdateSourceWebSocket,
			Name:        "WebSocket",
			Description: "Auction events pushed over /ws/auctions/{id}",
			Priority:    90,
			Push:        true,
		},
		UpdateSourceNATS: {
			Source:      UpdateSourceNATS,
			Name:        "NATS",
			Description: "Auction events published on a NATS subject per auction",
			Priority:    80,
			Push:        true,
		},
	}
}

// ValidateUpdateSource checks if the source is known
func ValidateUpdateSource(source UpdateSource) bool {
	_, exists := GetUpdateSources()[source]
	return exists
}

// IsPushSource reports whether source delivers updates without polling
func IsPushSource(source UpdateSource) bool {
	return GetUpdateSources()[source].Push
}
