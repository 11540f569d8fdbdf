package orchestrator

// #region imports
import (
	"sync"

	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/analysis"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/provider"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/state"
)

// #endregion

// #region observer

// maxConversation caps the messages replayed to the model each turn.
const maxConversation = 20

// TurnObserver is notified around every turn; the nudge scheduler
// implements it to track busy periods and the idle TTL. trigger is
// logging.TriggerLearnerTurn or logging.TriggerNudge.
type TurnObserver interface {
	TurnStarted(trigger string)
	TurnFinished(a analysis.TurnAnalysis, err error)
}

// #endregion

// #region session

// Session is one learner dialogue. ProcessTurn and ProcessNudge hold its
// turn lock; a second concurrent turn gets ErrSessionBusy.
type Session struct {
	ID string

	turn sync.Mutex // held for the whole turn

	mu           sync.RWMutex // guards the fields below
	state        state.LearnerState
	conversation []provider.Message
	profile      Profile // last profile seen, reused by nudges
	observer     TurnObserver
}

func newSession(st state.LearnerState) *Session {
	return &Session{ID: st.SessionID, state: st}
}

// State returns a copy of the committed learner state.
func (s *Session) State() state.LearnerState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Conversation returns a copy of the retained dialogue.
func (s *Session) Conversation() []provider.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]provider.Message(nil), s.conversation...)
}

// SetObserver registers the turn observer. nil removes it.
func (s *Session) SetObserver(o TurnObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = o
}

func (s *Session) currentObserver() TurnObserver {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.observer
}

func (s *Session) lastProfile() Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile
}

func (s *Session) setProfile(p Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = p
}

// apply installs a committed state and appends the finalized exchange.
func (s *Session) apply(st state.LearnerState, msgs ...provider.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
	s.conversation = append(s.conversation, msgs...)
	if over := len(s.conversation) - maxConversation; over > 0 {
		s.conversation = append([]provider.Message(nil), s.conversation[over:]...)
	}
}

// #endregion
