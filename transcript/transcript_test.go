package transcript

import (
	"context"
	"path/filepath"
	"testing"
)

func TestAppendAndStreamFill(t *testing.T) {
	tr := New(nil, Assistant)
	tr.AppendUser("아들에게 전화 걸어줘")
	first := tr.AppendAssistant("", StatusSuccess)

	for _, partial := range []string{"네, ", "네, 아들에게", "네, 아들에게 전화 걸겠습니다."} {
		if !tr.UpdateLastAssistant(partial) {
			t.Fatal("UpdateLastAssistant found no assistant entry")
		}
	}
	tr.AppendUser("고마워")

	msgs := tr.Messages()
	if len(msgs) != 3 {
		t.Fatalf("len = %d, want 3", len(msgs))
	}
	if msgs[1].ID != first.ID || msgs[1].Text != "네, 아들에게 전화 걸겠습니다." {
		t.Errorf("assistant entry = %+v", msgs[1])
	}
	if !msgs[0].IsUser || !msgs[2].IsUser {
		t.Error("user entries lost their role")
	}
	if msgs[0].ID == msgs[2].ID {
		t.Error("message ids must be unique")
	}

	// Filling targets the newest assistant entry even when a user entry follows it.
	tr.UpdateLastAssistant("바뀐 답")
	if got := tr.Messages()[1].Text; got != "바뀐 답" {
		t.Errorf("text = %q", got)
	}
}

func TestUpdateWithoutAssistant(t *testing.T) {
	tr := New(nil, Assistant)
	tr.AppendUser("hi")
	if tr.UpdateLastAssistant("x") {
		t.Fatal("expected false without an assistant entry")
	}
}

func TestMessagesIsACopy(t *testing.T) {
	tr := New(nil, Conversion)
	tr.AppendAssistant("원문", StatusSuccess)
	msgs := tr.Messages()
	msgs[0].Text = "changed"
	if tr.Messages()[0].Text != "원문" {
		t.Fatal("Messages exposed internal state")
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "db", "transcript.db")
	store, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}

	tr := New(store, Assistant)
	tr.AppendUser("날씨 알려줘")
	tr.AppendAssistant("", StatusSuccess)
	tr.UpdateLastAssistant("맑아요")
	tr.AppendAssistant("액션 실패: contact not found", StatusError)
	New(store, Conversion).AppendAssistant("변환된 텍스트", StatusSuccess)
	store.Close()

	store, err = OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()

	restored := New(store, Assistant)
	if err := restored.Restore(ctx, 0); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	msgs := restored.Messages()
	if len(msgs) != 3 {
		t.Fatalf("len = %d, want 3", len(msgs))
	}
	if msgs[0].Text != "날씨 알려줘" || !msgs[0].IsUser {
		t.Errorf("msgs[0] = %+v", msgs[0])
	}
	if msgs[1].Text != "맑아요" || msgs[1].IsUser {
		t.Errorf("msgs[1] = %+v", msgs[1])
	}
	if msgs[2].Status != StatusError {
		t.Errorf("msgs[2].Status = %q", msgs[2].Status)
	}

	last, err := store.Load(ctx, Assistant, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(last) != 2 || last[0].Text != "맑아요" {
		t.Errorf("Load(limit=2) = %+v", last)
	}

	if err := restored.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if left, _ := store.Load(ctx, Assistant, 0); len(left) != 0 {
		t.Errorf("assistant messages left after Clear: %d", len(left))
	}
	if conv, _ := store.Load(ctx, Conversion, 0); len(conv) != 1 {
		t.Errorf("Clear touched another conversation: %d left", len(conv))
	}
}

func TestSQLiteMemory(t *testing.T) {
	store, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	m := NewMessage("hello", true, StatusSuccess)
	if err := store.Save(context.Background(), Assistant, m); err != nil {
		t.Fatal(err)
	}
	got, err := store.Load(context.Background(), Assistant, 10)
	if err != nil || len(got) != 1 || got[0].ID != m.ID {
		t.Fatalf("Load = %+v, %v", got, err)
	}
}
