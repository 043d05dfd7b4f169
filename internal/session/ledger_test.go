package session

import (
	"fmt"
	"testing"
)

func TestLedger_AppendPairKeepsMostRecent(t *testing.T) {
	for _, pairs := range []int{10, 11, 15, 40} {
		var l Ledger
		for i := 0; i < pairs; i++ {
			l.AppendPair(UserTurn(fmt.Sprintf("q%d", i)), AssistantTurn(fmt.Sprintf("a%d", i)), DefaultHistoryLimit)
		}

		want := 2 * pairs
		if want > DefaultHistoryLimit {
			want = DefaultHistoryLimit
		}
		if l.Len() != want {
			t.Fatalf("pairs=%d: len = %d, want %d", pairs, l.Len(), want)
		}

		// The last turn is always the newest reply and order is preserved.
		first := pairs - want/2
		for i, turn := range l {
			n := first + i/2
			expect := UserTurn(fmt.Sprintf("q%d", n))
			if i%2 == 1 {
				expect = AssistantTurn(fmt.Sprintf("a%d", n))
			}
			if turn != expect {
				t.Errorf("pairs=%d: turn %d = %+v, want %+v", pairs, i, turn, expect)
			}
		}
	}
}

func TestLedger_TrimIsFIFONotPairAware(t *testing.T) {
	var l Ledger
	l.Append(UserTurn("orphan"))
	for i := 0; i < 10; i++ {
		l.AppendPair(UserTurn("q"), AssistantTurn("a"), DefaultHistoryLimit)
	}
	// 21 turns trimmed to 20 drops only "orphan".
	if l.Len() != DefaultHistoryLimit {
		t.Fatalf("len = %d, want %d", l.Len(), DefaultHistoryLimit)
	}
	if l[0] != UserTurn("q") {
		t.Errorf("first = %+v", l[0])
	}

	// An odd limit cuts through a pair and leaves a dangling reply at the front.
	l.AppendPair(UserTurn("q-last"), AssistantTurn("a-last"), 3)
	if l.Len() != 3 {
		t.Fatalf("len = %d, want 3", l.Len())
	}
	if l[0].Role != RoleAssistant {
		t.Errorf("expected FIFO trim to leave an assistant turn first, got %+v", l[0])
	}
}

func TestLedger_TurnsIsSnapshot(t *testing.T) {
	var l Ledger
	l.Append(UserTurn("x"))
	snap := l.Turns()
	snap[0].Content = "changed"
	if l[0].Content != "x" {
		t.Error("Turns returned an alias of the ledger")
	}
}
