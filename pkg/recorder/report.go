package recorder

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/gwillem/pursuitbot/pkg/robot"
)

// Summary condenses a session into the numbers used when retuning.
type Summary struct {
	Ticks           int
	Duration        time.Duration
	VisibleFraction float64
	SearchTicks     int
	SearchTime      time.Duration

	// HasTrackingError is false for binary sensor sessions, which carry no
	// error magnitudes; the error fields are then zero and meaningless.
	HasTrackingError bool

	MeanDistanceError float64
	StdDistanceError  float64
	MeanPositionError float64
	StdPositionError  float64
	PeakCommand       float64
}

// Summarize computes a Summary for a session recorded in mode. Search time
// is the summed tick spacing of samples whose state is a scan state. Error
// statistics cover visible samples of continuous (non-line) sessions only.
func Summarize(mode string, samples []Sample) Summary {
	var s Summary
	s.HasTrackingError = mode != robot.ModeLine
	s.Ticks = len(samples)
	if len(samples) == 0 {
		return s
	}
	s.Duration = samples[len(samples)-1].Time.Sub(samples[0].Time)

	var dist, pos, peaks []float64
	visible := 0
	for i, smp := range samples {
		if smp.Visible {
			visible++
		}
		if smp.Visible && s.HasTrackingError {
			dist = append(dist, smp.DistanceError)
			pos = append(pos, smp.PositionError)
		}
		if strings.HasPrefix(smp.State, "SCAN") {
			s.SearchTicks++
			if i+1 < len(samples) {
				s.SearchTime += samples[i+1].Time.Sub(smp.Time)
			}
		}
		peaks = append(peaks, math.Max(math.Abs(smp.Left), math.Abs(smp.Right)))
	}
	s.VisibleFraction = float64(visible) / float64(len(samples))
	s.PeakCommand = floats.Max(peaks)

	if len(dist) > 0 {
		s.MeanDistanceError = stat.Mean(dist, nil)
		s.MeanPositionError = stat.Mean(pos, nil)
	}
	if len(dist) > 1 {
		s.StdDistanceError = stat.StdDev(dist, nil)
		s.StdPositionError = stat.StdDev(pos, nil)
	}
	return s
}

// WriteText prints the summary in a fixed two-column layout.
func (s Summary) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w,
		"ticks:          %d\n"+
			"duration:       %s\n"+
			"visible:        %.1f%%\n"+
			"searching:      %d ticks (%s)\n",
		s.Ticks, s.Duration.Round(time.Millisecond), s.VisibleFraction*100,
		s.SearchTicks, s.SearchTime.Round(time.Millisecond),
	)
	if err != nil {
		return err
	}
	if s.HasTrackingError {
		_, err = fmt.Fprintf(w,
			"distance error: mean %+.4f  sd %.4f\n"+
				"position error: mean %+.4f  sd %.4f\n",
			s.MeanDistanceError, s.StdDistanceError,
			s.MeanPositionError, s.StdPositionError,
		)
	} else {
		_, err = fmt.Fprintln(w, "tracking error: n/a (binary line sensor)")
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "peak command:   %.1f\n", s.PeakCommand)
	return err
}

// RenderHTML writes an interactive page with the wheel commands and the
// tracking errors of a session.
func RenderHTML(w io.Writer, title string, samples []Sample) error {
	x := make([]string, len(samples))
	var t0 time.Time
	if len(samples) > 0 {
		t0 = samples[0].Time
	}
	left := make([]opts.LineData, len(samples))
	right := make([]opts.LineData, len(samples))
	dist := make([]opts.LineData, len(samples))
	pos := make([]opts.LineData, len(samples))
	for i, s := range samples {
		x[i] = fmt.Sprintf("%.2f", s.Time.Sub(t0).Seconds())
		left[i] = opts.LineData{Value: s.Left}
		right[i] = opts.LineData{Value: s.Right}
		dist[i] = opts.LineData{Value: s.DistanceError}
		pos[i] = opts.LineData{Value: s.PositionError}
	}

	commands := charts.NewLine()
	commands.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "Wheel commands", Subtitle: fmt.Sprintf("%s, %d ticks", title, len(samples))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "t (s)"}),
	)
	commands.SetXAxis(x).
		AddSeries("left", left).
		AddSeries("right", right)

	errs := charts.NewLine()
	errs.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "Tracking error"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "t (s)"}),
	)
	errs.SetXAxis(x).
		AddSeries("distance", dist).
		AddSeries("position", pos)

	page := components.NewPage()
	page.PageTitle = title
	page.AddCharts(commands, errs)
	return page.Render(w)
}
