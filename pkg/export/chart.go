package export

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/kilianp07/fleetpulse/core/model"
)

// WriteHTML renders a fleet report page: status distribution, speed per
// valid vehicle and vehicle positions.
func WriteHTML(w io.Writer, res *model.PipelineResult) error {
	page := components.NewPage()
	page.PageTitle = "Fleet report"
	page.AddCharts(statusPie(res.Summary), speedBar(res), positionScatter(res))
	if err := page.Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}

func statusPie(s model.FleetSummary) *charts.Pie {
	pie := charts.NewPie()
	pie.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Vehicle status",
			Subtitle: fmt.Sprintf("%d vehicles, %d valid, generated %s", s.TotalVehicles, s.ValidVehicles, s.GeneratedAt.Format("2006-01-02 15:04:05")),
		}),
	)
	items := make([]opts.PieData, 0, len(model.Statuses))
	for _, st := range model.Statuses {
		items = append(items, opts.PieData{Name: st.String(), Value: s.StatusCounts[st]})
	}
	pie.AddSeries("Status", items)
	return pie
}

func speedBar(res *model.PipelineResult) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Speed per vehicle",
			Subtitle: fmt.Sprintf("fleet average %.1f km/h", res.Summary.AverageSpeed),
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Vehicle"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Speed (km/h)"}),
	)
	var ids []string
	var speeds []opts.BarData
	for _, v := range res.Vehicles {
		if !v.Valid() {
			continue
		}
		ids = append(ids, v.ID)
		speeds = append(speeds, opts.BarData{Name: v.Status.String(), Value: v.Speed})
	}
	bar.SetXAxis(ids).AddSeries("Speed", speeds)
	return bar
}

func positionScatter(res *model.PipelineResult) *charts.Scatter {
	sc := charts.NewScatter()
	sc.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Positions"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Longitude", Type: "value"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Latitude", Type: "value"}),
	)
	byStatus := map[model.Status][]opts.ScatterData{}
	for _, v := range res.Vehicles {
		if !v.Valid() {
			continue
		}
		byStatus[v.Status] = append(byStatus[v.Status], opts.ScatterData{
			Name:  v.ID,
			Value: []interface{}{v.Longitude, v.Latitude},
		})
	}
	for _, st := range []model.Status{model.StatusNormal, model.StatusWarning} {
		sc.AddSeries(st.String(), byStatus[st])
	}
	c := res.Summary.Centroid
	sc.AddSeries("Centroid", []opts.ScatterData{{Name: "centroid", Value: []interface{}{c.Lon, c.Lat}}})
	return sc
}
