package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/ayusman/mudra/internal/field"
	"github.com/ayusman/mudra/internal/store"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// SnapshotFunc returns the current field state.
type SnapshotFunc func() (field.Snapshot, error)

// viridis is the colour ramp for intensity.
var viridis = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

var forceColors = map[field.ForceKind]string{
	field.ForceRepulsion:  "#ff5252",
	field.ForceAttraction: "#40c4ff",
	field.ForceVortex:     "#e040fb",
}

// ChartHandler renders debug charts with go-echarts:
//
//	GET /api/debug/field                 mesh scatter coloured by intensity
//	GET /api/debug/events?session={id}   started events per gesture type
type ChartHandler struct {
	snapshot SnapshotFunc
	store    *store.Store
}

// NewChartHandler creates a ChartHandler. Either argument may be nil, which
// disables the corresponding chart.
func NewChartHandler(snapshot SnapshotFunc, s *store.Store) *ChartHandler {
	return &ChartHandler{snapshot: snapshot, store: s}
}

// ServeHTTP implements the http.Handler interface.
func (h *ChartHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	switch r.URL.Path {
	case "/api/debug/field":
		h.fieldChart(w)
	case "/api/debug/events":
		h.eventsChart(w, r)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

func (h *ChartHandler) fieldChart(w http.ResponseWriter) {
	if h.snapshot == nil {
		writeError(w, http.StatusNotFound, "no field available")
		return
	}

	snap, err := h.snapshot()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	points := make([]opts.ScatterData, 0, snap.Count)
	for i := 0; i < snap.Count; i++ {
		// Screen y grows downwards; flip it so the chart matches the view.
		x := snap.Positions[2*i]
		y := float32(snap.Height) - snap.Positions[2*i+1]
		points = append(points, opts.ScatterData{Value: []interface{}{x, y, snap.Intensities[i]}})
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Field", Theme: "dark", Width: "900px", Height: "700px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Field mesh",
			Subtitle: fmt.Sprintf("%dx%d lattice, %d points, %d ripples", snap.Cols, snap.Rows, snap.Count, snap.ActiveRipples),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: 0, Max: snap.Width, Name: "x (px)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: snap.Height, Name: "y (px)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        1,
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: viridis},
		}),
	)
	scatter.AddSeries("mesh", points, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))

	for _, f := range snap.Forces {
		if f.Kind == field.ForceNone {
			continue
		}
		y := float64(snap.Height) - f.Center.Y
		scatter.AddSeries(f.Kind.String(),
			[]opts.ScatterData{{Value: []interface{}{f.Center.X, y}}},
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 18}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: forceColors[f.Kind]}),
		)
	}

	render(w, scatter)
}

func (h *ChartHandler) eventsChart(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusNotFound, "no store available")
		return
	}

	id := r.URL.Query().Get("session")
	if id == "" {
		writeError(w, http.StatusBadRequest, "session is required")
		return
	}

	session, err := h.store.Sessions().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return
	}

	state := r.URL.Query().Get("state")
	if state == "" {
		state = "started"
	}
	counts, err := h.store.Events().CountByType(id, state)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count events")
		return
	}

	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Strings(types)

	bars := make([]opts.BarData, 0, len(types))
	for _, t := range types {
		bars = append(bars, opts.BarData{Value: counts[t]})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Gesture events", Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("Gestures (%s)", state),
			Subtitle: fmt.Sprintf("session=%s frames=%d events=%d", session.ID, session.Frames, session.Events),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(types).
		AddSeries("events", bars,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	render(w, bar)
}

type renderer interface {
	Render(w io.Writer) error
}

func render(w http.ResponseWriter, chart renderer) {
	var buf bytes.Buffer
	if err := chart.Render(&buf); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
