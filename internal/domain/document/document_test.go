package document

import (
	"testing"
	"time"
)

func TestNew_Valid(t *testing.T) {
	issued := time.Date(2021, 6, 14, 0, 0, 0, 0, time.UTC)
	doc, err := New(
		"go-54-2021", "gos", "G.O.Ms.No.54 School Education",
		"Transfers of headmasters shall ...", "School Education Dept",
		"para 4(b)", "https://goir.ap.gov.in/go/54", issued, 0.82,
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.ID() != "go-54-2021" {
		t.Errorf("ID() = %q", doc.ID())
	}
	if doc.EngineID() != "gos" {
		t.Errorf("EngineID() = %q", doc.EngineID())
	}
	if doc.CanonicalID() != "gos/go-54-2021" {
		t.Errorf("CanonicalID() = %q", doc.CanonicalID())
	}
	if doc.RawScore() != 0.82 {
		t.Errorf("RawScore() = %g", doc.RawScore())
	}
	if !doc.SourceDate().Equal(issued) {
		t.Errorf("SourceDate() = %v", doc.SourceDate())
	}
}

func TestNew_RequiresID(t *testing.T) {
	if _, err := New("", "gos", "t", "s", "", "", "", time.Time{}, 0); err == nil {
		t.Fatal("expected error")
	}
}

func TestNew_RequiresEngine(t *testing.T) {
	if _, err := New("d1", "", "t", "s", "", "", "", time.Time{}, 0); err == nil {
		t.Fatal("expected error")
	}
}

func TestNew_RequiresTitleOrSnippet(t *testing.T) {
	if _, err := New("d1", "gos", "", "", "", "", "", time.Time{}, 0); err == nil {
		t.Fatal("expected error")
	}
	if _, err := New("d1", "gos", "title only", "", "", "", "", time.Time{}, 0); err != nil {
		t.Fatalf("title-only should pass: %v", err)
	}
}

func TestReconstruct_SkipsValidation(t *testing.T) {
	doc := Reconstruct("d1", "legal", "", "", "", "", "", time.Time{}, -1)
	if doc.RawScore() != -1 {
		t.Errorf("Reconstruct should keep raw score, got %g", doc.RawScore())
	}
}
