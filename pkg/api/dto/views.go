package dto

import "github.com/harrisonrobin/taskmaster/pkg/views"

type Dashboard struct {
	Stats    views.Stats `json:"stats"`
	Priority []TaskItem  `json:"priority"`
	Upcoming []TaskItem  `json:"upcoming"`
}

type CalendarDay struct {
	Date  string     `json:"date"`
	Tasks []TaskItem `json:"tasks"`
}
