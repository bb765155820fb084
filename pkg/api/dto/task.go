package dto

type TaskItem struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Priority     string   `json:"priority"`
	Category     string   `json:"category"`
	Deadline     string   `json:"deadline"`
	Status       string   `json:"status"`
	Effort       string   `json:"effort"`
	Tags         []string `json:"tags"`
	Dependencies []string `json:"dependencies"`
	Overdue      bool     `json:"overdue"`
	CreatedAt    string   `json:"createdAt"`
	UpdatedAt    string   `json:"updatedAt"`
}

// CreateTaskRequest accepts the deadline as RFC 3339 or as a
// datetime-local value (2006-01-02T15:04).
type CreateTaskRequest struct {
	Name         string   `json:"name" binding:"required,max=255"`
	Description  *string  `json:"description" binding:"omitempty,max=65535"`
	Priority     string   `json:"priority" binding:"required,oneof=urgent high medium low"`
	Category     string   `json:"category" binding:"required,oneof=personal work learning health"`
	Deadline     string   `json:"deadline" binding:"required"`
	Status       *string  `json:"status" binding:"omitempty,oneof=todo in-progress blocked completed"`
	Effort       *string  `json:"effort" binding:"omitempty,max=64"`
	Tags         []string `json:"tags" binding:"omitempty,dive,max=64"`
	Dependencies []string `json:"dependencies"`
}

type UpdateTaskRequest struct {
	Name         *string   `json:"name" binding:"omitempty,max=255"`
	Description  *string   `json:"description" binding:"omitempty,max=65535"`
	Priority     *string   `json:"priority" binding:"omitempty,oneof=urgent high medium low"`
	Category     *string   `json:"category" binding:"omitempty,oneof=personal work learning health"`
	Deadline     *string   `json:"deadline"`
	Status       *string   `json:"status" binding:"omitempty,oneof=todo in-progress blocked completed"`
	Effort       *string   `json:"effort" binding:"omitempty,max=64"`
	Tags         *[]string `json:"tags"`
	Dependencies *[]string `json:"dependencies"`
}
