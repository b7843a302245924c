package outputparser

import "testing"

func TestParseLineUpdatesOnNonEmpty(t *testing.T) {
	p := New()
	p.ParseLine("  installing foo.msi  \n")
	if !p.Updated() {
		t.Fatal("expected Updated() true for non-empty line")
	}
	if got := p.GetFormattedLine(); got != "installing foo.msi" {
		t.Fatalf("got %q", got)
	}
}

func TestParseLineNoUpdateOnEmpty(t *testing.T) {
	p := New()
	p.ParseLine("first")
	p.ParseLine("   \n")
	if p.Updated() {
		t.Fatal("expected Updated() false for blank line")
	}
	if got := p.GetFormattedLine(); got != "first" {
		t.Fatalf("expected previous line retained, got %q", got)
	}
}

func TestReset(t *testing.T) {
	p := New()
	p.ParseLine("x")
	p.Reset()
	if p.Updated() || p.GetFormattedLine() != "" {
		t.Fatal("expected Reset to clear state")
	}
}

func TestCleanQueryLinesExcludesAndCollapses(t *testing.T) {
	raw := []string{
		"ID: 12",
		"  Foo Package  ",
		"Revision:  1.2.3",
		"Action:  Installation pending",
		"",
	}
	got := CleanQueryLines(raw)
	want := []string{"Foo Package", "1.2.3", "install"}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index %d: got %q want %q", i, got[i], want[i])
		}
	}
}

// TestCleanQueryLinesSingleSpace exercises spec.md E3 literally: a
// single space after the "Revision:"/"Action:" prefix (as opposed to
// the 2+-space run the generic collapse test above exercises) must not
// leave a stray leading space in the extracted value, since that would
// both break the Action: map lookup and double the space in the
// resulting REVISION frame.
func TestCleanQueryLinesSingleSpace(t *testing.T) {
	raw := []string{
		"  Foo",
		"  Revision: 1.0",
		"  Action: Installation pending",
		"  Bar",
		"  Revision (new): 2.1",
		"  Action: Upgrade pending",
	}
	got := CleanQueryLines(raw)
	want := []string{"Foo", "1.0", "install", "Bar", "2.1", "update"}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index %d: got %q want %q", i, got[i], want[i])
		}
	}
	tasks := GroupQueryTasks(got)
	if len(tasks) != 2 {
		t.Fatalf("expected 2 triples, got %d", len(tasks))
	}
	if tasks[0] != (QueryTask{Name: "Foo", Version: "1.0", Action: "install"}) {
		t.Fatalf("unexpected first task: %+v", tasks[0])
	}
	if tasks[1] != (QueryTask{Name: "Bar", Version: "2.1", Action: "update"}) {
		t.Fatalf("unexpected second task: %+v", tasks[1])
	}
}

func TestGroupQueryTasks(t *testing.T) {
	cleaned := []string{"Foo", "1.0", "install", "Bar", "2.0", "update", "leftover"}
	tasks := GroupQueryTasks(cleaned)
	if len(tasks) != 2 {
		t.Fatalf("expected 2 full triples, got %d", len(tasks))
	}
	if tasks[0] != (QueryTask{Name: "Foo", Version: "1.0", Action: "install"}) {
		t.Fatalf("unexpected first task: %+v", tasks[0])
	}
	if tasks[1] != (QueryTask{Name: "Bar", Version: "2.0", Action: "update"}) {
		t.Fatalf("unexpected second task: %+v", tasks[1])
	}
}
