package core

// GenerationRequest is built once per user message and never changed after submission
type GenerationRequest struct {
	ModelId        string
	PositivePrompt string
	NegativePrompt string
}

// JobHandle is the provider's fetch key for an in-flight job
type JobHandle string

type PollState int

const (
	PollPending PollState = iota
	PollReady
	PollFailed
)

func (s PollState) String() string {
	switch s {
	case PollPending:
		return "pending"
	case PollReady:
		return "ready"
	case PollFailed:
		return "failed"
	}
	return "unknown"
}

type PollResult struct {
	State  PollState
	Url    string
	Reason string
}

func Pending() PollResult {
	return PollResult{State: PollPending}
}

func Ready(url string) PollResult {
	return PollResult{State: PollReady, Url: url}
}

func Failed(reason string) PollResult {
	return PollResult{State: PollFailed, Reason: reason}
}
