package dto

type FocusSettings struct {
	WorkMinutes            int `json:"workMinutes" binding:"required,min=1,max=60"`
	ShortBreakMinutes      int `json:"shortBreakMinutes" binding:"required,min=1,max=30"`
	LongBreakMinutes       int `json:"longBreakMinutes" binding:"required,min=1,max=60"`
	SessionsUntilLongBreak int `json:"sessionsUntilLongBreak" binding:"required,min=2,max=10"`
}

type FocusState struct {
	Phase            string        `json:"phase"`
	Session          int           `json:"session"`
	Running          bool          `json:"running"`
	Paused           bool          `json:"paused"`
	RemainingSeconds int           `json:"remainingSeconds"`
	TotalSeconds     int           `json:"totalSeconds"`
	Progress         float64       `json:"progress"`
	Settings         FocusSettings `json:"settings"`
}
