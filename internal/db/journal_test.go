package db

import (
	"path/filepath"
	"testing"
	"time"

	"shieldline/internal/model"
)

func testJournal(t *testing.T) *Journal {
	t.Helper()
	database, err := Connect(filepath.Join(t.TempDir(), "nested", "sessions.db"))
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	if err := Migrate(database); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	t.Cleanup(func() { Close(database) })
	return NewJournal(database)
}

func TestJournalLifecycle(t *testing.T) {
	j := testJournal(t)

	if rec, err := j.Active(); err != nil || rec != nil {
		t.Fatalf("empty journal should have no active session: %#v %v", rec, err)
	}

	p := model.NewProfile("edge", "vless://id@1.2.3.4:443")
	opened, err := j.Open(p, "/tmp/config.json")
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	active, err := j.Active()
	if err != nil || active == nil || active.ID != opened.ID {
		t.Fatalf("unexpected active session: %#v %v", active, err)
	}
	if active.ProfileID != p.ID || active.Protocol != "vless" || active.ConfigPath != "/tmp/config.json" {
		t.Fatalf("record fields not stored: %#v", active)
	}

	n, err := j.CloseActive("stopped")
	if err != nil || n != 1 {
		t.Fatalf("close failed: %d %v", n, err)
	}
	if n, _ := j.CloseActive("again"); n != 0 {
		t.Fatalf("closing twice should touch nothing, got %d", n)
	}
	if rec, _ := j.Active(); rec != nil {
		t.Fatalf("session should be closed: %#v", rec)
	}
}

func TestJournalRecentOrder(t *testing.T) {
	j := testJournal(t)

	for _, name := range []string{"first", "second", "third"} {
		if _, err := j.Open(model.NewProfile(name, "socks5://1.2.3.4:1080"), ""); err != nil {
			t.Fatalf("open failed: %v", err)
		}
		j.CloseActive("stopped")
		time.Sleep(2 * time.Millisecond)
	}

	recs, err := j.Recent(2)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(recs) != 2 || recs[0].ProfileName != "third" || recs[1].ProfileName != "second" {
		t.Fatalf("unexpected order: %#v", recs)
	}
	if recs[0].StoppedAt == nil || recs[0].ExitReason != "stopped" {
		t.Fatalf("close not recorded: %#v", recs[0])
	}
}
