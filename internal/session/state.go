package session

type State int

const (
	Idle State = iota
	Recording
	Sending
	Processing
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Sending:
		return "sending"
	case Processing:
		return "processing"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

const (
	TextIdle       = "Idle"
	TextRecording  = "Recording..."
	TextSending    = "Sending..."
	TextProcessing = "Processing..."
	TextProcessed  = "Response Processed"
	errorPrefix    = "Error: "
)

// Status is what the indicator shows.
type Status struct {
	State State
	Text  string
}

func (s State) defaultText() string {
	switch s {
	case Recording:
		return TextRecording
	case Sending:
		return TextSending
	case Processing:
		return TextProcessing
	default:
		return TextIdle
	}
}
