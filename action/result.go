package action

import "encoding/json"

// Result is the outcome of one dispatched command. Action is empty when no
// action was resolved and encodes as JSON null.
type Result struct {
	Success bool   `json:"success"`
	Action  string `json:"action"`
	Message string `json:"message"`
}

// MarshalJSON implements json.Marshaler.
func (r Result) MarshalJSON() ([]byte, error) {
	var id *string
	if r.Action != "" {
		id = &r.Action
	}
	return json.Marshal(struct {
		Success bool    `json:"success"`
		Action  *string `json:"action"`
		Message string  `json:"message"`
	}{r.Success, id, r.Message})
}

// UnrecognizedMessage is reported when no strategy resolved the input.
const UnrecognizedMessage = "No recognized command. Try again."

// Succeeded builds a successful result.
func Succeeded(id ID, message string) Result {
	return Result{Success: true, Action: string(id), Message: message}
}

// Failed builds a failed result.
func Failed(id ID, message string) Result {
	return Result{Success: false, Action: string(id), Message: message}
}

// Unrecognized builds the result for input nothing could resolve.
func Unrecognized() Result {
	return Result{Success: false, Message: UnrecognizedMessage}
}
