package layout

// Figure is a Plotly figure document: one line trace per edge followed by a
// single marker trace holding every node.
type Figure struct {
	Data   []Trace      `json:"data"`
	Layout FigureLayout `json:"layout"`
}

// Trace is a Plotly scatter trace. A nil coordinate encodes as null, which
// Plotly treats as a line break.
type Trace struct {
	Type         string     `json:"type"`
	X            []*float64 `json:"x"`
	Y            []*float64 `json:"y"`
	Mode         string     `json:"mode"`
	HoverInfo    string     `json:"hoverinfo"`
	Text         []string   `json:"text,omitempty"`
	TextPosition string     `json:"textposition,omitempty"`
	Line         *Line      `json:"line,omitempty"`
	Marker       *Marker    `json:"marker,omitempty"`
}

type Line struct {
	Width float64 `json:"width"`
	Color string  `json:"color,omitempty"`
}

type Marker struct {
	ShowScale bool    `json:"showscale"`
	Color     string  `json:"color"`
	Size      float64 `json:"size"`
	Line      Line    `json:"line"`
}

type FigureLayout struct {
	Title      Title  `json:"title"`
	ShowLegend bool   `json:"showlegend"`
	HoverMode  string `json:"hovermode"`
	Margin     Margin `json:"margin"`
	XAxis      Axis   `json:"xaxis"`
	YAxis      Axis   `json:"yaxis"`
}

type Title struct {
	Text string `json:"text"`
}

type Margin struct {
	B int `json:"b"`
	L int `json:"l"`
	R int `json:"r"`
	T int `json:"t"`
}

type Axis struct {
	ShowGrid       bool `json:"showgrid"`
	ZeroLine       bool `json:"zeroline"`
	ShowTickLabels bool `json:"showticklabels"`
}

// DefaultTitle is the figure title used by the visualize page.
const DefaultTitle = "Customer Journey Map"

// NewFigure draws r as grey edge segments and light-blue labelled markers.
func NewFigure(r Render, title string) Figure {
	data := make([]Trace, 0, len(r.Edges)+1)
	for _, e := range r.Edges {
		data = append(data, Trace{
			Type:      "scatter",
			X:         []*float64{ptr(e.FromXY[0]), ptr(e.ToXY[0]), nil},
			Y:         []*float64{ptr(e.FromXY[1]), ptr(e.ToXY[1]), nil},
			Mode:      "lines",
			HoverInfo: "none",
			Line:      &Line{Width: 1, Color: "#888"},
		})
	}

	nodes := Trace{
		Type:         "scatter",
		X:            make([]*float64, 0, len(r.Nodes)),
		Y:            make([]*float64, 0, len(r.Nodes)),
		Text:         make([]string, 0, len(r.Nodes)),
		Mode:         "markers+text",
		TextPosition: "top center",
		HoverInfo:    "text",
		Marker: &Marker{
			Color: "lightblue",
			Size:  20,
			Line:  Line{Width: 2},
		},
	}
	for _, n := range r.Nodes {
		nodes.X = append(nodes.X, ptr(n.X))
		nodes.Y = append(nodes.Y, ptr(n.Y))
		nodes.Text = append(nodes.Text, n.Label)
	}
	data = append(data, nodes)

	return Figure{
		Data: data,
		Layout: FigureLayout{
			Title:     Title{Text: title},
			HoverMode: "closest",
			Margin:    Margin{B: 20, L: 5, R: 5, T: 40},
		},
	}
}

func ptr(v float64) *float64 { return &v }
