package dxf

import (
	"strings"
	"testing"
)

// buildDXF joins group code / value pairs into the two-line wire form.
func buildDXF(pairs ...string) string {
	return strings.Join(pairs, "\n") + "\n"
}

const sampleDrawing = `0
SECTION
2
TABLES
0
TABLE
2
LAYER
0
LAYER
2
Walls
62
1
370
25
0
LAYER
2
Dimensions
62
3
0
LAYER
2
*Model_Space
62
7
0
ENDTAB
0
ENDSEC
0
SECTION
2
ENTITIES
0
CIRCLE
8
Walls
10
1.0
20
2.0
40
5.0
0
LINE
8
Walls
10
0.0
20
0.0
11
10.0
21
0.0
0
ENDSEC
0
EOF
`

func TestDecodeSampleDrawing(t *testing.T) {
	doc, err := Decode(strings.NewReader(sampleDrawing))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if got := doc.Statistics.LayerCount; got != 2 {
		t.Fatalf("expected 2 layers after filtering, got %d", got)
	}
	for _, l := range doc.Layers {
		if strings.HasPrefix(l.Name, "*") {
			t.Fatalf("system layer %q leaked into layer list", l.Name)
		}
	}
	if doc.Layers[0].Name != "Walls" || doc.Layers[0].Color != 1 || doc.Layers[0].Lineweight != 25 {
		t.Fatalf("unexpected first layer: %+v", doc.Layers[0])
	}

	if len(doc.Circles) != 1 {
		t.Fatalf("expected 1 circle, got %d", len(doc.Circles))
	}
	c := doc.Circles[0]
	if c.Radius != 5.0 || c.Center.X != 1.0 || c.Center.Y != 2.0 || c.LayerName != "Walls" {
		t.Fatalf("unexpected circle: %+v", c)
	}

	if len(doc.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(doc.Lines))
	}
	l := doc.Lines[0]
	if l.Start.X != 0 || l.End.X != 10.0 {
		t.Fatalf("unexpected line: %+v", l)
	}

	if doc.Statistics.TotalEntities != 2 {
		t.Fatalf("expected total_entities 2, got %d", doc.Statistics.TotalEntities)
	}
}

func TestDecodePolylineWithVertices(t *testing.T) {
	input := buildDXF(
		"0", "SECTION", "2", "ENTITIES",
		"0", "POLYLINE", "8", "Walls", "70", "1",
		"0", "VERTEX", "10", "0.0", "20", "0.0",
		"0", "VERTEX", "10", "5.0", "20", "0.0",
		"0", "VERTEX", "10", "5.0", "20", "5.0",
		"0", "SEQEND",
		"0", "ENDSEC",
	)

	doc, err := Decode(strings.NewReader(input))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(doc.Polylines) != 1 {
		t.Fatalf("expected 1 polyline, got %d", len(doc.Polylines))
	}
	p := doc.Polylines[0]
	if !p.Closed {
		t.Fatalf("expected closed polyline (flags bit 1)")
	}
	if len(p.Vertices) != 3 {
		t.Fatalf("expected 3 vertices, got %d", len(p.Vertices))
	}
	if p.Vertices[2].X != 5.0 || p.Vertices[2].Y != 5.0 {
		t.Fatalf("unexpected last vertex: %+v", p.Vertices[2])
	}
	// VERTEX and SEQEND are part of the polyline, not entities of their own.
	if doc.Statistics.TotalEntities != 1 {
		t.Fatalf("expected total_entities 1, got %d", doc.Statistics.TotalEntities)
	}
}

func TestDecodeLWPolylineInlineVertices(t *testing.T) {
	input := buildDXF(
		"0", "SECTION", "2", "ENTITIES",
		"0", "LWPOLYLINE", "8", "0",
		"10", "1.0", "20", "2.0",
		"10", "3.0", "20", "4.0",
		"0", "ENDSEC",
	)

	doc, err := Decode(strings.NewReader(input))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(doc.Polylines) != 1 {
		t.Fatalf("expected 1 polyline, got %d", len(doc.Polylines))
	}
	v := doc.Polylines[0].Vertices
	if len(v) != 2 || v[1].X != 3.0 || v[1].Y != 4.0 {
		t.Fatalf("unexpected vertices: %+v", v)
	}
}

func TestDecodeArcAndText(t *testing.T) {
	input := buildDXF(
		"0", "SECTION", "2", "ENTITIES",
		"0", "ARC", "8", "0", "10", "1.0", "20", "1.0", "40", "2.5", "50", "0.0", "51", "90.0",
		"0", "TEXT", "8", "Notes", "1", "hello", "10", "4.0", "20", "4.0", "40", "0.2",
		"0", "ENDSEC",
	)

	doc, err := Decode(strings.NewReader(input))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(doc.Arcs) != 1 || doc.Arcs[0].EndAngle != 90.0 {
		t.Fatalf("unexpected arcs: %+v", doc.Arcs)
	}
	if len(doc.Texts) != 1 || doc.Texts[0].Value != "hello" || doc.Texts[0].Height != 0.2 {
		t.Fatalf("unexpected texts: %+v", doc.Texts)
	}
}

func TestDecodeUnsupportedEntitiesStillCounted(t *testing.T) {
	input := buildDXF(
		"0", "SECTION", "2", "ENTITIES",
		"0", "CIRCLE", "10", "0", "20", "0", "40", "1.0",
		"0", "SPLINE", "8", "0",
		"0", "INSERT", "2", "Block",
		"0", "ENDSEC",
	)

	doc, err := Decode(strings.NewReader(input))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if doc.Statistics.CircleCount != 1 {
		t.Fatalf("expected 1 circle, got %d", doc.Statistics.CircleCount)
	}
	if doc.Statistics.TotalEntities != 3 {
		t.Fatalf("expected total_entities 3, got %d", doc.Statistics.TotalEntities)
	}
}

func TestDecodeEntitiesOnSystemLayerKept(t *testing.T) {
	input := buildDXF(
		"0", "SECTION", "2", "TABLES",
		"0", "LAYER", "2", "*Paper_Space",
		"0", "ENDSEC",
		"0", "SECTION", "2", "ENTITIES",
		"0", "LINE", "8", "*Paper_Space", "10", "0", "20", "0", "11", "1", "21", "1",
		"0", "ENDSEC",
	)

	doc, err := Decode(strings.NewReader(input))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(doc.Layers) != 0 {
		t.Fatalf("expected system layer filtered, got %+v", doc.Layers)
	}
	if len(doc.Lines) != 1 {
		t.Fatalf("entity on system layer must be kept, got %d lines", len(doc.Lines))
	}
}

func TestDecodeRejectsBinary(t *testing.T) {
	_, err := Decode(strings.NewReader("AutoCAD Binary DXF\x1a\x00rest"))
	if err == nil {
		t.Fatalf("expected error for binary DXF")
	}
	if _, ok := err.(*DecodeError); !ok {
		t.Fatalf("expected *DecodeError, got %T", err)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	cases := map[string]string{
		"empty":           "",
		"no section":      buildDXF("0", "EOF"),
		"bad group code":  buildDXF("zero", "SECTION"),
		"truncated tag":   "0\n",
		"unnamed section": buildDXF("0", "SECTION", "0", "ENDSEC"),
		"plain text":      "this is not a drawing\nat all\n",
	}
	for name, input := range cases {
		if _, err := Decode(strings.NewReader(input)); err == nil {
			t.Errorf("%s: expected decode error", name)
		}
	}
}
