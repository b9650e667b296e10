package stratux

// Header holds the fields every parsed report carries.
type Header struct {
	Kind    string   `json:"type"`
	Station string   `json:"station"`
	Time    string   `json:"time"`
	Raw     string   `json:"raw"`
	Lat     *float64 `json:"lat"`
	Lon     *float64 `json:"lon"`
}

// NewHeader builds the header for env. kind is the canonical type tag and
// raw the cleaned report text.
func NewHeader(env *Envelope, kind, station, raw string) Header {
	return Header{
		Kind:    kind,
		Station: station,
		Time:    env.Time,
		Raw:     raw,
	}
}

// Type returns the report type tag.
func (h *Header) Type() string { return h.Kind }

// StationID returns the normalised station identifier.
func (h *Header) StationID() string { return h.Station }

// SetPosition records the station's coordinates.
func (h *Header) SetPosition(lat, lon float64) {
	h.Lat = &lat
	h.Lon = &lon
}
