package session

// DefaultHistoryLimit is the number of turns retained per session.
const DefaultHistoryLimit = 20

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one authored message in a conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserTurn and AssistantTurn are shorthands for building turns.
func UserTurn(content string) Turn      { return Turn{Role: RoleUser, Content: content} }
func AssistantTurn(content string) Turn { return Turn{Role: RoleAssistant, Content: content} }

// Ledger is the bounded, insertion-ordered history of a session.
type Ledger []Turn

// Append adds one turn to the end of the ledger.
func (l *Ledger) Append(t Turn) {
	*l = append(*l, t)
}

// AppendPair appends a user/assistant exchange and then trims the ledger to
// limit turns. Trimming is plain FIFO: it may cut through a pair.
func (l *Ledger) AppendPair(user, assistant Turn, limit int) {
	l.Append(user)
	l.Append(assistant)
	l.Trim(limit)
}

// Trim drops turns from the front until at most limit remain.
// A non-positive limit leaves the ledger untouched.
func (l *Ledger) Trim(limit int) {
	if limit <= 0 || len(*l) <= limit {
		return
	}
	kept := make(Ledger, limit)
	copy(kept, (*l)[len(*l)-limit:])
	*l = kept
}

// Turns returns a copy of the ledger contents.
func (l Ledger) Turns() []Turn {
	out := make([]Turn, len(l))
	copy(out, l)
	return out
}

func (l Ledger) Len() int { return len(l) }
