package dxf

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// DecodeError reports a malformed or unsupported drawing. Cause is a
// human-readable description safe to surface to the client.
type DecodeError struct {
	Cause string
}

func (e *DecodeError) Error() string { return fmt.Sprintf("dxf decode: %s", e.Cause) }

func decodeErrf(format string, args ...any) *DecodeError {
	return &DecodeError{Cause: fmt.Sprintf(format, args...)}
}

var binarySentinel = []byte("AutoCAD Binary DXF")

// Decode parses an ASCII DXF document from r and returns the extracted entity
// collection. Layers whose name starts with '*' are system-reserved and are
// filtered from the layer table, but entities placed on them are kept.
func Decode(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, decodeErrf("read: %v", err)
	}
	if bytes.HasPrefix(data, binarySentinel) {
		return nil, decodeErrf("binary DXF is not supported")
	}

	tags, err := readTags(data)
	if err != nil {
		return nil, err
	}
	if len(tags) == 0 {
		return nil, decodeErrf("empty document")
	}

	var (
		layers     []Layer
		entities   []Entity
		total      int
		sawSection bool
	)

	i := 0
	for i < len(tags) {
		t := tags[i]
		if t.code != 0 || t.value != "SECTION" {
			i++
			continue
		}
		sawSection = true
		if i+1 >= len(tags) || tags[i+1].code != 2 {
			return nil, decodeErrf("SECTION without a name tag")
		}
		name := tags[i+1].value
		body, next := sectionBody(tags, i+2)
		switch name {
		case "TABLES":
			layers = append(layers, readLayerTable(body)...)
		case "ENTITIES":
			entities, total, err = readEntities(body)
			if err != nil {
				return nil, err
			}
		}
		i = next
	}

	if !sawSection {
		return nil, decodeErrf("not a DXF document: no SECTION found")
	}

	kept := make([]Layer, 0, len(layers))
	for _, l := range layers {
		if strings.HasPrefix(l.Name, "*") {
			continue
		}
		kept = append(kept, l)
	}

	return newDocument(kept, entities, total), nil
}

// tag is one DXF group code / value pair.
type tag struct {
	code  int
	value string
}

func readTags(data []byte) ([]tag, error) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var tags []tag
	lineNo := 0
	for sc.Scan() {
		lineNo++
		codeLine := strings.TrimSpace(sc.Text())
		if !sc.Scan() {
			return nil, decodeErrf("truncated tag at line %d: group code without value", lineNo)
		}
		lineNo++
		code, err := strconv.Atoi(codeLine)
		if err != nil {
			return nil, decodeErrf("line %d: invalid group code %q", lineNo-1, codeLine)
		}
		tags = append(tags, tag{code: code, value: strings.TrimSpace(sc.Text())})
	}
	if err := sc.Err(); err != nil {
		return nil, decodeErrf("read: %v", err)
	}
	return tags, nil
}

// sectionBody returns the tags between a section header and its ENDSEC, and
// the index just past the ENDSEC.
func sectionBody(tags []tag, start int) ([]tag, int) {
	for i := start; i < len(tags); i++ {
		if tags[i].code == 0 && tags[i].value == "ENDSEC" {
			return tags[start:i], i + 1
		}
	}
	return tags[start:], len(tags)
}

// readLayerTable extracts LAYER records from a TABLES section body.
func readLayerTable(body []tag) []Layer {
	var layers []Layer
	for i := 0; i < len(body); i++ {
		if body[i].code != 0 || body[i].value != "LAYER" {
			continue
		}
		layer := Layer{}
		for j := i + 1; j < len(body) && body[j].code != 0; j++ {
			switch body[j].code {
			case 2:
				layer.Name = body[j].value
			case 62:
				layer.Color, _ = strconv.Atoi(body[j].value)
			case 370:
				layer.Lineweight, _ = strconv.Atoi(body[j].value)
			}
		}
		if layer.Name != "" {
			layers = append(layers, layer)
		}
	}
	return layers
}

// readEntities walks an ENTITIES section body. VERTEX and SEQEND records
// belong to their enclosing POLYLINE and are not counted as entities of
// their own.
func readEntities(body []tag) ([]Entity, int, error) {
	var (
		entities []Entity
		total    int
	)

	i := 0
	for i < len(body) {
		if body[i].code != 0 {
			i++
			continue
		}
		kind := body[i].value
		record, next := entityRecord(body, i+1)

		switch kind {
		case "POLYLINE":
			p := polylineFrom(kind, record)
			p.Vertices, next = readVertices(body, next)
			entities = append(entities, p)
			total++
		case "LWPOLYLINE":
			p := polylineFrom(kind, record)
			p.Vertices = inlineVertices(record)
			entities = append(entities, p)
			total++
		case "LINE":
			l := &Line{Type: kind}
			applyCommon(record, &l.LayerName, &l.Color, &l.Lineweight)
			l.Start = pointAt(record, 10, 20)
			l.End = pointAt(record, 11, 21)
			entities = append(entities, l)
			total++
		case "CIRCLE":
			c := &Circle{Type: kind}
			applyCommon(record, &c.LayerName, &c.Color, &c.Lineweight)
			c.Center = pointAt(record, 10, 20)
			c.Radius = floatAt(record, 40)
			entities = append(entities, c)
			total++
		case "ARC":
			a := &Arc{Type: kind}
			applyCommon(record, &a.LayerName, &a.Color, &a.Lineweight)
			a.Center = pointAt(record, 10, 20)
			a.Radius = floatAt(record, 40)
			a.StartAngle = floatAt(record, 50)
			a.EndAngle = floatAt(record, 51)
			entities = append(entities, a)
			total++
		case "TEXT":
			t := &Text{Type: kind}
			applyCommon(record, &t.LayerName, &t.Color, &t.Lineweight)
			t.Value = stringAt(record, 1)
			t.Position = pointAt(record, 10, 20)
			t.Height = floatAt(record, 40)
			entities = append(entities, t)
			total++
		case "VERTEX", "SEQEND":
			// Stray vertex outside a POLYLINE; skip.
		default:
			// Unsupported entity kinds still count toward the total.
			total++
		}
		i = next
	}

	return entities, total, nil
}

// entityRecord collects the tags of one entity (everything up to the next
// code-0 tag) and returns the index of that next tag.
func entityRecord(body []tag, start int) ([]tag, int) {
	for i := start; i < len(body); i++ {
		if body[i].code == 0 {
			return body[start:i], i
		}
	}
	return body[start:], len(body)
}

func polylineFrom(kind string, record []tag) *Polyline {
	p := &Polyline{Type: kind, Vertices: []Point{}}
	applyCommon(record, &p.LayerName, &p.Color, &p.Lineweight)
	// Bit 1 of the flags group marks a closed polyline.
	if flags, ok := intAt(record, 70); ok && flags&1 != 0 {
		p.Closed = true
	}
	return p
}

// readVertices consumes the VERTEX records following a POLYLINE up to and
// including its SEQEND.
func readVertices(body []tag, start int) ([]Point, int) {
	points := []Point{}
	i := start
	for i < len(body) {
		if body[i].code != 0 {
			i++
			continue
		}
		switch body[i].value {
		case "VERTEX":
			record, next := entityRecord(body, i+1)
			points = append(points, pointAt(record, 10, 20))
			i = next
		case "SEQEND":
			_, next := entityRecord(body, i+1)
			return points, next
		default:
			return points, i
		}
	}
	return points, i
}

// inlineVertices reads the repeated 10/20 pairs of an LWPOLYLINE record.
func inlineVertices(record []tag) []Point {
	points := []Point{}
	var cur *Point
	for _, t := range record {
		switch t.code {
		case 10:
			x, _ := strconv.ParseFloat(t.value, 64)
			points = append(points, Point{X: x})
			cur = &points[len(points)-1]
		case 20:
			if cur != nil {
				cur.Y, _ = strconv.ParseFloat(t.value, 64)
			}
		}
	}
	return points
}

func applyCommon(record []tag, layer *string, color, lineweight *int) {
	for _, t := range record {
		switch t.code {
		case 8:
			*layer = t.value
		case 62:
			*color, _ = strconv.Atoi(t.value)
		case 370:
			*lineweight, _ = strconv.Atoi(t.value)
		}
	}
}

func pointAt(record []tag, xCode, yCode int) Point {
	return Point{X: floatAt(record, xCode), Y: floatAt(record, yCode)}
}

func floatAt(record []tag, code int) float64 {
	for _, t := range record {
		if t.code == code {
			v, _ := strconv.ParseFloat(t.value, 64)
			return v
		}
	}
	return 0
}

func intAt(record []tag, code int) (int, bool) {
	for _, t := range record {
		if t.code == code {
			v, err := strconv.Atoi(t.value)
			return v, err == nil
		}
	}
	return 0, false
}

func stringAt(record []tag, code int) string {
	for _, t := range record {
		if t.code == code {
			return t.value
		}
	}
	return ""
}
