package party

import "time"

type (
	// UserRegistered is emitted when an identity completes registration.
	UserRegistered struct {
		Address Identity `json:"address"`
	}

	// RoundStarted is emitted when a new round opens. Number is 1-based,
	// unlike the zero-based round index used for lookups.
	RoundStarted struct {
		Number int       `json:"number"`
		Start  time.Time `json:"start"`
		End    time.Time `json:"end"`
	}

	// RoundEnded is emitted the first time a finished round is observed,
	// which happens when its successor is started. Number is 1-based.
	RoundEnded struct {
		Number int `json:"number"`
	}

	// VoteCast is emitted after a ballot has been applied in full.
	VoteCast struct {
		Voter      Identity   `json:"voter"`
		RoundIndex int        `json:"round_index"`
		Recipients []Identity `json:"recipients"`
	}

	// CandidateEliminated is emitted the first time the elimination predicate
	// is observed to hold for a candidate. RoundIndex is the zero-based index
	// of the round whose cut removed them.
	CandidateEliminated struct {
		Address    Identity `json:"address"`
		RoundIndex int      `json:"round_index"`
	}
)

// Notifier receives engine events synchronously, in the order the state
// transitions occurred. Implementations must not call back into the engine:
// the re-entrancy guard will reject such calls.
type Notifier interface {
	OnUserRegistered(UserRegistered)
	OnRoundStarted(RoundStarted)
	OnRoundEnded(RoundEnded)
	OnVoteCast(VoteCast)
	OnCandidateEliminated(CandidateEliminated)
}

// NopNotifier discards every event. It is the default.
type NopNotifier struct{}

var _ Notifier = NopNotifier{}

func (NopNotifier) OnUserRegistered(UserRegistered)           {}
func (NopNotifier) OnRoundStarted(RoundStarted)               {}
func (NopNotifier) OnRoundEnded(RoundEnded)                   {}
func (NopNotifier) OnVoteCast(VoteCast)                       {}
func (NopNotifier) OnCandidateEliminated(CandidateEliminated) {}

// CombineNotifiers fans each event out to every given notifier in order.
func CombineNotifiers(notifiers ...Notifier) Notifier {
	return multiNotifier(notifiers)
}

type multiNotifier []Notifier

func (m multiNotifier) OnUserRegistered(ev UserRegistered) {
	for _, n := range m {
		n.OnUserRegistered(ev)
	}
}

func (m multiNotifier) OnRoundStarted(ev RoundStarted) {
	for _, n := range m {
		n.OnRoundStarted(ev)
	}
}

func (m multiNotifier) OnRoundEnded(ev RoundEnded) {
	for _, n := range m {
		n.OnRoundEnded(ev)
	}
}

func (m multiNotifier) OnVoteCast(ev VoteCast) {
	for _, n := range m {
		n.OnVoteCast(ev)
	}
}

func (m multiNotifier) OnCandidateEliminated(ev CandidateEliminated) {
	for _, n := range m {
		n.OnCandidateEliminated(ev)
	}
}
