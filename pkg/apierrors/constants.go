package apierrors

const (
	MsgFailListTask         = "errorListTask"
	MsgInvalidTaskPayload   = "invalidTaskPayload"
	MsgTaskNotFound         = "taskNotFound"
	MsgFailCreateTask       = "failCreateTask"
	MsgFailUpdateTask       = "failUpdateTask"
	MsgFailDeleteTask       = "failDeleteTask"
	MsgInvalidRange         = "invalidRange"
	MsgInvalidMonth         = "invalidMonth"
	MsgInvalidDate          = "invalidDate"
	MsgInvalidFocusSettings = "invalidFocusSettings"
	MsgInvalidFocusState    = "invalidFocusState"
	MsgInvalidView          = "invalidView"
)
