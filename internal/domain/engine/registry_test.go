package engine

import (
	"testing"
)

func mustDescriptor(t *testing.T, id string, priority int) Descriptor {
	t.Helper()
	d, err := NewDescriptor(DescriptorConfig{
		ID:       id,
		CorpusID: "corpora/" + id,
		Priority: priority,
	})
	if err != nil {
		t.Fatalf("descriptor %s: %v", id, err)
	}
	return d
}

func TestNewRegistry_DeterministicOrder(t *testing.T) {
	reg, err := NewRegistry([]Descriptor{
		mustDescriptor(t, "schemes", 5),
		mustDescriptor(t, "judicial", 2),
		mustDescriptor(t, "gos", 2),
		mustDescriptor(t, "legal", 1),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"legal", "gos", "judicial", "schemes"}
	got := reg.IDs()
	if len(got) != len(want) {
		t.Fatalf("IDs() = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("IDs()[%d] = %q, want %q (priority then id)", i, got[i], want[i])
		}
	}

	all := reg.All()
	for i := range all {
		if all[i].ID() != want[i] {
			t.Errorf("All()[%d].ID() = %q, want %q", i, all[i].ID(), want[i])
		}
	}
}

func TestNewRegistry_RejectsDuplicates(t *testing.T) {
	_, err := NewRegistry([]Descriptor{
		mustDescriptor(t, "legal", 1),
		mustDescriptor(t, "legal", 2),
	})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestRegistry_Get(t *testing.T) {
	reg, err := NewRegistry([]Descriptor{mustDescriptor(t, "gos", 1)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := reg.Get("gos"); !ok {
		t.Error("Get(gos) not found")
	}
	if _, ok := reg.Get("missing"); ok {
		t.Error("Get(missing) found")
	}
	if reg.Len() != 1 {
		t.Errorf("Len() = %d", reg.Len())
	}
}
