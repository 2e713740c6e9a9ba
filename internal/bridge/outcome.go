package bridge

// Outcome is the terminal result of a pending request. It is either a
// success carrying a value or a failure carrying a message.
type Outcome struct {
	ok      bool
	value   any
	message string
}

// Success returns an Outcome that resolves a request with v.
func Success(v any) Outcome {
	return Outcome{ok: true, value: v}
}

// Failure returns an Outcome that rejects a request with message.
func Failure(message string) Outcome {
	return Outcome{message: message}
}

func (o Outcome) OK() bool {
	return o.ok
}

// Payload is the value sent to the surface: the result on success and the
// error message on failure.
func (o Outcome) Payload() any {
	if o.ok {
		return o.value
	}
	return o.message
}

func (o Outcome) String() string {
	if o.ok {
		return "resolved"
	}
	return "rejected"
}
