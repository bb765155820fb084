package apierrors

import (
	"fmt"

	"github.com/harrisonrobin/taskmaster/pkg/translator"
)

// JsonErr is the body of every failed API response.
type JsonErr struct {
	ErrDetails Err `json:"error"`
}

type Err struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e JsonErr) Error() string {
	return fmt.Sprintf("Code: %d, Message: %s", e.ErrDetails.Code, e.ErrDetails.Message)
}

// CreateError builds a JsonErr whose message is translated into lang.
func CreateError(code int, msgKey string, lang string) JsonErr {
	return JsonErr{ErrDetails: Err{code, GetTransErrorMsg(msgKey, lang)}}
}

// GetTransErrorMsg translates msgKey, falling back to the key itself.
func GetTransErrorMsg(msgKey string, lang string) string {
	return translator.Default.For(lang).Localize(msgKey, nil, nil)
}
