package streamerr

// Option is an Error option function
type Option func(*Error)

func WithText(text string) Option { return func(e *Error) { e.Text = text } }
