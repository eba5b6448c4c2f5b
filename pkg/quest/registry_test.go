package quest_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/MrWong99/questpack/pkg/quest"
)

func TestRegistry_GetOrCreate(t *testing.T) {
	t.Parallel()

	reg := quest.NewRegistry[*quest.Event]("pkg", quest.KindEvent)

	first, err := reg.GetOrCreate("give_sword", quest.NewEvent)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if first.Index != quest.Unindexed {
		t.Errorf("new entity index = %d, want %d", first.Index, quest.Unindexed)
	}
	first.SetInstruction("give sword")

	again, err := reg.GetOrCreate("give_sword", quest.NewEvent)
	if err != nil {
		t.Fatalf("GetOrCreate (again): %v", err)
	}
	if again != first {
		t.Fatal("GetOrCreate returned a different entity for the same id")
	}
	if again.Instruction() != "give sword" {
		t.Errorf("instruction = %q, want %q", again.Instruction(), "give sword")
	}
	if reg.Len() != 1 {
		t.Errorf("Len = %d, want 1", reg.Len())
	}
}

func TestRegistry_GetOrCreate_InvalidIdentifier(t *testing.T) {
	t.Parallel()

	reg := quest.NewRegistry[*quest.Event]("pkg", quest.KindEvent)
	for _, id := range []string{"", "   ", "\t"} {
		if _, err := reg.GetOrCreate(id, quest.NewEvent); !errors.Is(err, quest.ErrInvalidIdentifier) {
			t.Errorf("GetOrCreate(%q) error = %v, want ErrInvalidIdentifier", id, err)
		}
	}
	if reg.Len() != 0 {
		t.Errorf("Len = %d after failed creations, want 0", reg.Len())
	}
}

func TestRegistry_Define_FirstWriterWins(t *testing.T) {
	t.Parallel()

	reg := quest.NewRegistry[*quest.NpcOption]("pkg", quest.KindNpcOption)

	// "later" is referenced before anything is defined.
	later, _ := reg.GetOrCreate("later", quest.NewNpcOption)

	a, _ := reg.Define("a", quest.NewNpcOption)
	b, _ := reg.Define("b", quest.NewNpcOption)
	a2, _ := reg.Define("a", quest.NewNpcOption)
	l2, _ := reg.Define("later", quest.NewNpcOption)

	if a.Index != 0 || b.Index != 1 {
		t.Errorf("indices a=%d b=%d, want 0 and 1", a.Index, b.Index)
	}
	if a2.Index != 0 {
		t.Errorf("redefining a changed its index to %d", a2.Index)
	}
	if l2 != later || later.Index != 2 {
		t.Errorf("placeholder index = %d, want 2", later.Index)
	}
}

func TestRegistry_Normalize(t *testing.T) {
	t.Parallel()

	reg := quest.NewRegistry[*quest.Condition]("pkg", quest.KindCondition)
	for _, tc := range []struct {
		id    string
		index int
	}{
		{"c", 7}, {"a", 2}, {"tie1", 5}, {"tie2", 5}, {"placeholder", quest.Unindexed},
	} {
		c, err := reg.GetOrCreate(tc.id, quest.NewCondition)
		if err != nil {
			t.Fatalf("GetOrCreate(%q): %v", tc.id, err)
		}
		c.Index = tc.index
	}

	reg.Normalize()

	want := []string{"placeholder", "a", "tie1", "tie2", "c"}
	if got := reg.IDs(); !slices.Equal(got, want) {
		t.Fatalf("order after Normalize = %v, want %v", got, want)
	}
	for i, c := range reg.All() {
		if c.Index != i {
			t.Errorf("%s index = %d, want %d", c.ID, c.Index, i)
		}
	}

	before := reg.IDs()
	reg.Normalize()
	if got := reg.IDs(); !slices.Equal(got, before) {
		t.Errorf("second Normalize changed order: %v -> %v", before, got)
	}
	for i, c := range reg.All() {
		if c.Index != i {
			t.Errorf("after second Normalize %s index = %d, want %d", c.ID, c.Index, i)
		}
	}
}

func TestRegistry_AddRemove(t *testing.T) {
	t.Parallel()

	reg := quest.NewRegistry[*quest.Item]("pkg", quest.KindItem)
	if err := reg.Add(quest.NewItem("sword")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := reg.Add(quest.NewItem("shield")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := reg.Add(quest.NewItem("sword")); !errors.Is(err, quest.ErrDuplicateID) {
		t.Errorf("duplicate Add error = %v, want ErrDuplicateID", err)
	}
	if err := reg.Add(quest.NewItem(" ")); !errors.Is(err, quest.ErrInvalidIdentifier) {
		t.Errorf("blank Add error = %v, want ErrInvalidIdentifier", err)
	}

	shield, _ := reg.Get("shield")
	if shield.Index != 1 {
		t.Errorf("shield index = %d, want 1", shield.Index)
	}

	if err := reg.Remove("sword"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := reg.Remove("sword"); !errors.Is(err, quest.ErrNotFound) {
		t.Errorf("second Remove error = %v, want ErrNotFound", err)
	}
	if _, ok := reg.Get("sword"); ok {
		t.Error("Get found a removed entity")
	}
	if got := reg.IDs(); !slices.Equal(got, []string{"shield"}) {
		t.Errorf("IDs = %v, want [shield]", got)
	}
}
