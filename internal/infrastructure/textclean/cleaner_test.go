package textclean

import "testing"

func TestCleanFixesKnownArtifacts(t *testing.T) {
	got := Clean("visit our websitelapp to changelmodify settings")
	want := "visit our website/app to change/modify settings"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestCleanCollapsesWhitespace(t *testing.T) {
	got := Clean("too   many    spaces\n\n\n\nand blank lines")
	want := "too many spaces\n\nand blank lines"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestCleanRemovesSpaceBeforePunctuation(t *testing.T) {
	got := Clean("hello , world ; fine .")
	want := "hello, world; fine."
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestCleanSplitsSectionMarkers(t *testing.T) {
	got := Clean("Welcome text S1. First rule S3. Third rule")
	want := "Welcome text\n\nS1. First rule\n\nS3. Third rule"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestCleanRepairsTrailingColon(t *testing.T) {
	got := Clean("the following items:\ncontinue here")
	want := "the following items.\ncontinue here"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestCleanEmptyInput(t *testing.T) {
	if got := Clean(""); got != "" {
		t.Fatalf("expected empty output, got %q", got)
	}
	if got := Clean("   \n  "); got != "" {
		t.Fatalf("expected trimmed-empty output, got %q", got)
	}
}

func TestSectionsLabelsChunks(t *testing.T) {
	sections := Sections("Welcome text S1. First rule S3. Third rule")
	if len(sections) != 3 {
		t.Fatalf("expected 3 sections, got %d: %+v", len(sections), sections)
	}
	if sections[0].Label != "Intro" || sections[0].Text != "Welcome text" {
		t.Fatalf("unexpected intro section %+v", sections[0])
	}
	if sections[1].Label != "S1" || sections[1].Text != "First rule" {
		t.Fatalf("unexpected first section %+v", sections[1])
	}
	if sections[2].Label != "S3" || sections[2].Text != "Third rule" {
		t.Fatalf("unexpected third section %+v", sections[2])
	}
}

func TestSectionsWithoutMarkers(t *testing.T) {
	sections := Sections("just a plain paragraph")
	if len(sections) != 1 {
		t.Fatalf("expected single section, got %d", len(sections))
	}
	if sections[0].Label != "Intro" {
		t.Fatalf("expected Intro label, got %q", sections[0].Label)
	}
}

func TestSectionsEmptyInput(t *testing.T) {
	if sections := Sections(""); sections != nil {
		t.Fatalf("expected nil sections, got %+v", sections)
	}
}
