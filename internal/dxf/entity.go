package dxf

// Point is a 2-D coordinate. Z values present in the source file are dropped;
// the consumers of extracted geometry are strictly planar.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Layer describes a drawing layer. Color 0 means "not set" in DXF; the zero
// value is passed through untouched.
type Layer struct {
	Name       string `json:"name"`
	Color      int    `json:"color"`
	Lineweight int    `json:"lineweight"`
}

// Entity is the closed set of extracted entity kinds. The unexported method
// seals the interface; adding a kind means touching every type switch.
type Entity interface {
	entity()
}

// Polyline covers both POLYLINE and LWPOLYLINE records.
type Polyline struct {
	Type       string  `json:"type"`
	LayerName  string  `json:"layer"`
	Vertices   []Point `json:"vertices"`
	Closed     bool    `json:"closed"`
	Color      int     `json:"color"`
	Lineweight int     `json:"lineweight"`
}

type Line struct {
	Type       string `json:"type"`
	LayerName  string `json:"layer"`
	Start      Point  `json:"start"`
	End        Point  `json:"end"`
	Color      int    `json:"color"`
	Lineweight int    `json:"lineweight"`
}

type Circle struct {
	Type       string  `json:"type"`
	LayerName  string  `json:"layer"`
	Center     Point   `json:"center"`
	Radius     float64 `json:"radius"`
	Color      int     `json:"color"`
	Lineweight int     `json:"lineweight"`
}

type Arc struct {
	Type       string  `json:"type"`
	LayerName  string  `json:"layer"`
	Center     Point   `json:"center"`
	Radius     float64 `json:"radius"`
	StartAngle float64 `json:"start_angle"`
	EndAngle   float64 `json:"end_angle"`
	Color      int     `json:"color"`
	Lineweight int     `json:"lineweight"`
}

type Text struct {
	Type       string  `json:"type"`
	LayerName  string  `json:"layer"`
	Value      string  `json:"text"`
	Position   Point   `json:"position"`
	Height     float64 `json:"height"`
	Color      int     `json:"color"`
	Lineweight int     `json:"lineweight"`
}

func (*Polyline) entity() {}
func (*Line) entity()     {}
func (*Circle) entity()   {}
func (*Arc) entity()      {}
func (*Text) entity()     {}

// Statistics summarizes a decoded document. TotalEntities counts every
// modelspace entity found in the file, including kinds that are not
// extracted into the typed lists.
type Statistics struct {
	LayerCount    int `json:"layer_count"`
	PolylineCount int `json:"polyline_count"`
	LineCount     int `json:"line_count"`
	CircleCount   int `json:"circle_count"`
	ArcCount      int `json:"arc_count"`
	TextCount     int `json:"text_count"`
	TotalEntities int `json:"total_entities"`
}

// Document is the normalized entity collection handed to the rest of the
// system. It is only ever returned whole: a decode either yields a complete
// Document or a *DecodeError, never partial data.
type Document struct {
	Layers     []Layer     `json:"layers"`
	Polylines  []*Polyline `json:"polylines"`
	Lines      []*Line     `json:"lines"`
	Circles    []*Circle   `json:"circles"`
	Arcs       []*Arc      `json:"arcs"`
	Texts      []*Text     `json:"texts"`
	Statistics Statistics  `json:"statistics"`
}

// newDocument buckets entities by kind and fills in statistics. The switch is
// exhaustive over the sealed Entity set.
func newDocument(layers []Layer, entities []Entity, total int) *Document {
	doc := &Document{
		Layers:    layers,
		Polylines: []*Polyline{},
		Lines:     []*Line{},
		Circles:   []*Circle{},
		Arcs:      []*Arc{},
		Texts:     []*Text{},
	}

	for _, e := range entities {
		switch v := e.(type) {
		case *Polyline:
			doc.Polylines = append(doc.Polylines, v)
		case *Line:
			doc.Lines = append(doc.Lines, v)
		case *Circle:
			doc.Circles = append(doc.Circles, v)
		case *Arc:
			doc.Arcs = append(doc.Arcs, v)
		case *Text:
			doc.Texts = append(doc.Texts, v)
		}
	}

	doc.Statistics = Statistics{
		LayerCount:    len(doc.Layers),
		PolylineCount: len(doc.Polylines),
		LineCount:     len(doc.Lines),
		CircleCount:   len(doc.Circles),
		ArcCount:      len(doc.Arcs),
		TextCount:     len(doc.Texts),
		TotalEntities: total,
	}
	return doc
}
