package chart

import (
	"encoding/json"
	"io"

	"github.com/wcharczuk/go-chart/v2/drawing"
)

// OpKind is the primitive a recorded op stands for.
type OpKind string

const (
	OpLine OpKind = "line"
	OpRect OpKind = "rect"
	OpText OpKind = "text"
)

// Op is one recorded drawing call. Lines use (X, Y)-(X2, Y2); rects use X, Y, W, H.
type Op struct {
	Kind     OpKind
	X, Y     float64
	X2, Y2   float64
	W, H     float64
	Color    drawing.Color
	Width    float64
	Dash     []float64
	Text     string
	FontSize float64
	Bold     bool
}

// Recorder is an in-memory Surface that keeps the draw calls of the last frame.
// Its encoded form is a JSON draw list a browser canvas can replay.
type Recorder struct {
	width, height int
	frameW        int
	frameH        int
	clears        int
	ops           []Op
}

var _ EncodingSurface = (*Recorder)(nil)

func NewRecorder(width, height int) *Recorder {
	return &Recorder{width: width, height: height}
}

func (r *Recorder) Size() (int, int) { return r.width, r.height }

func (r *Recorder) SetSize(width, height int) { r.width, r.height = width, height }

func (r *Recorder) Clear(width, height int) {
	r.frameW, r.frameH = width, height
	r.clears++
	r.ops = nil
}

func (r *Recorder) Line(x1, y1, x2, y2 float64, s Stroke) {
	r.ops = append(r.ops, Op{Kind: OpLine, X: x1, Y: y1, X2: x2, Y2: y2, Color: s.Color, Width: s.Width, Dash: s.Dash})
}

func (r *Recorder) Rect(x, y, w, h float64, fill drawing.Color) {
	r.ops = append(r.ops, Op{Kind: OpRect, X: x, Y: y, W: w, H: h, Color: fill})
}

func (r *Recorder) Text(body string, x, y float64, f Font) {
	r.ops = append(r.ops, Op{Kind: OpText, X: x, Y: y, Text: body, Color: f.Color, FontSize: f.Size, Bold: f.Bold})
}

// Ops returns the draw calls since the last Clear.
func (r *Recorder) Ops() []Op { return r.ops }

// Clears returns how many frames were started.
func (r *Recorder) Clears() int { return r.clears }

// OfKind filters the recorded ops.
func (r *Recorder) OfKind(k OpKind) []Op {
	var out []Op
	for _, op := range r.ops {
		if op.Kind == k {
			out = append(out, op)
		}
	}
	return out
}

func (r *Recorder) Format() Format { return FormatJSON }

type opJSON struct {
	Kind     OpKind    `json:"kind"`
	X        float64   `json:"x"`
	Y        float64   `json:"y"`
	X2       float64   `json:"x2,omitempty"`
	Y2       float64   `json:"y2,omitempty"`
	W        float64   `json:"w,omitempty"`
	H        float64   `json:"h,omitempty"`
	Color    string    `json:"color"`
	Width    float64   `json:"line_width,omitempty"`
	Dash     []float64 `json:"dash,omitempty"`
	Text     string    `json:"text,omitempty"`
	FontSize float64   `json:"font_size,omitempty"`
	Bold     bool      `json:"bold,omitempty"`
}

// Encode writes {"width", "height", "ops"} for the last frame.
func (r *Recorder) Encode(w io.Writer) error {
	ops := make([]opJSON, 0, len(r.ops))
	for _, op := range r.ops {
		ops = append(ops, opJSON{
			Kind: op.Kind, X: op.X, Y: op.Y, X2: op.X2, Y2: op.Y2, W: op.W, H: op.H,
			Color: op.Color.String(), Width: op.Width, Dash: op.Dash,
			Text: op.Text, FontSize: op.FontSize, Bold: op.Bold,
		})
	}
	return json.NewEncoder(w).Encode(struct {
		Width  int      `json:"width"`
		Height int      `json:"height"`
		Ops    []opJSON `json:"ops"`
	}{r.frameW, r.frameH, ops})
}
