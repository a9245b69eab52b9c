package signal

import (
	"fmt"
	"testing"
)

func mustParse(t *testing.T, msg string) *Signal {
	t.Helper()
	sig, err := Parse([]byte(msg))
	if err != nil {
		t.Fatalf("parse %q: %v", msg, err)
	}
	return sig
}

func TestDeduper_SameMessageTwice(t *testing.T) {
	d := NewDeduper(16)
	sig1 := mustParse(t, "ENTER-LONG_0.4")
	sig2 := mustParse(t, "ENTER-LONG_0.4")

	if d.Seen(sig1) {
		t.Fatal("first occurrence must not be a duplicate")
	}
	if !d.Seen(sig2) {
		t.Fatal("replay must be flagged as duplicate")
	}
}

func TestDeduper_DifferentSignalIDs(t *testing.T) {
	d := NewDeduper(16)
	a := mustParse(t, "ENTER-LONG_BINGX_ETHUSDT_BOT1_5M_100")
	b := mustParse(t, "ENTER-LONG_BINGX_ETHUSDT_BOT1_5M_101")

	if d.Seen(a) {
		t.Fatal("first id must pass")
	}
	if d.Seen(b) {
		t.Fatal("different signal id must pass")
	}
	if !d.Seen(mustParse(t, "ENTER-LONG_BINGX_ETHUSDT_BOT1_5M_100")) {
		t.Fatal("same signal id must be suppressed")
	}
}

// 连字符和下划线写法携带同一个信号id时按同一条信号去重
func TestDeduper_UnderscoreAndHyphenShareID(t *testing.T) {
	d := NewDeduper(16)
	if d.Seen(mustParse(t, "ENTER-LONG_BINGX_ETHUSDT_BOT1_5M_83749")) {
		t.Fatal("first occurrence must not be a duplicate")
	}
	if !d.Seen(mustParse(t, "ENTER_LONG_BINGX_ETHUSDT_BOT1_5M_83749")) {
		t.Fatal("underscore replay of the same id must be suppressed")
	}
}

// 集合有界：塞满之后老记录被淘汰，但不会无限增长
func TestDeduper_Bounded(t *testing.T) {
	d := NewDeduper(8)
	for i := 0; i < 100; i++ {
		sig := mustParse(t, fmt.Sprintf("ENTER-LONG_BINGX_ETHUSDT_BOT1_5M_%d", i+1000))
		if d.Seen(sig) {
			t.Fatalf("fresh id %d flagged as duplicate", i)
		}
	}
	// 最老的早被淘汰，重放不再被拦 —— 有界换宽容，符合约定
	old := mustParse(t, "ENTER-LONG_BINGX_ETHUSDT_BOT1_5M_1000")
	if d.Seen(old) {
		t.Fatal("evicted id should no longer be flagged")
	}
}

func TestDeduper_Concurrent(t *testing.T) {
	d := NewDeduper(128)
	sig := mustParse(t, "EXIT-ALL_BINGX_ETHUSDT_BOT1_5M_777")

	hits := make(chan bool, 16)
	for i := 0; i < 16; i++ {
		go func() {
			hits <- d.Seen(sig)
		}()
	}
	dupes := 0
	for i := 0; i < 16; i++ {
		if <-hits {
			dupes++
		}
	}
	// 并发下最多一个 goroutine 能抢到"首见"
	if dupes != 15 {
		t.Fatalf("dupes = %d, want 15 (exactly one first-seen)", dupes)
	}
}
