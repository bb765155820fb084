package views

import (
	"math"
	"time"

	"github.com/harrisonrobin/taskmaster/pkg/model"
)

// Breakdown counts tasks per category and per priority. Every known key is
// present, zero or not.
type Breakdown struct {
	Categories map[model.Category]int `json:"categories"`
	Priorities map[model.Priority]int `json:"priorities"`
}

func ComputeBreakdown(tasks []model.Task) Breakdown {
	b := Breakdown{
		Categories: make(map[model.Category]int, len(model.Categories)),
		Priorities: make(map[model.Priority]int, len(model.Priorities)),
	}
	for _, c := range model.Categories {
		b.Categories[c] = 0
	}
	for _, p := range model.Priorities {
		b.Priorities[p] = 0
	}
	for _, t := range tasks {
		if _, ok := b.Categories[t.Category]; ok {
			b.Categories[t.Category]++
		}
		if _, ok := b.Priorities[t.Priority]; ok {
			b.Priorities[t.Priority]++
		}
	}
	return b
}

// ProductivityScore is the completed share as a rounded percentage.
func ProductivityScore(st Stats) int {
	if st.Total == 0 {
		return 0
	}
	return int(math.Round(float64(st.Completed) / float64(st.Total) * 100))
}

type Analytics struct {
	Range             Range     `json:"range"`
	Total             int       `json:"total"`
	Completed         int       `json:"completed"`
	Overdue           int       `json:"overdue"`
	ProductivityScore int       `json:"productivityScore"`
	Trend             []Bucket  `json:"trend"`
	Breakdown         Breakdown `json:"breakdown"`
}

func ComputeAnalytics(tasks []model.Task, now time.Time, r Range, opts TrendOptions) (Analytics, error) {
	trend, err := Trend(tasks, now, r, opts)
	if err != nil {
		return Analytics{}, err
	}
	st := ComputeStats(tasks, now)
	return Analytics{
		Range:             r,
		Total:             st.Total,
		Completed:         st.Completed,
		Overdue:           st.Overdue,
		ProductivityScore: ProductivityScore(st),
		Trend:             trend,
		Breakdown:         ComputeBreakdown(tasks),
	}, nil
}
