package provider

import (
	"time"

	"github.com/google/uuid"
)

// Descriptor identifies one image-generation backend. The configured order
// of descriptors is the fallback priority, first entry most preferred. The
// list is read-only after startup.
type Descriptor struct {
	Id            string
	Endpoint      string
	AuthToken     string
	Timeout       time.Duration
	MaxRetries    int
	MinImageBytes int
}

type GenerationRequest struct {
	Id          string
	UserId      int64
	Prompt      string
	RequestedAt time.Time
}

func NewGenerationRequest(userId int64, prompt string) GenerationRequest {
	return GenerationRequest{
		Id:          uuid.NewString(),
		UserId:      userId,
		Prompt:      prompt,
		RequestedAt: time.Now(),
	}
}

type GenerationResult struct {
	Success      bool
	ImageBytes   []byte
	ProviderUsed string
	UserMessage  string
}

type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	// OutcomeRetry: transient failure, retry the same provider after backoff
	OutcomeRetry
	// OutcomeFailover: the provider cannot serve this request, move to the next
	OutcomeFailover
	OutcomeFatalUser
	OutcomeFatalInternal
)

// Outcome is the classified result of one provider call. Exactly the fields
// relevant to the kind are set.
type Outcome struct {
	Kind    OutcomeKind
	Payload []byte // Success
	Reason  string // Retry, Failover
	Message string // FatalUser
	Err     error  // FatalInternal
}

// Attempt records one provider call for diagnostics. Never persisted.
type Attempt struct {
	Provider      string
	AttemptNumber int
	StartedAt     time.Time
	Elapsed       time.Duration
	Outcome       OutcomeKind
	Reason        string
}
