package registry

import (
	"errors"
	"testing"
)

type fakeCommand struct {
	name     string
	isSystem bool
}

func (c fakeCommand) Name() string  { return c.name }
func (c fakeCommand) IsSystem() bool { return c.isSystem }

func TestRegistry_PublishLookupUnpublish(t *testing.T) {
	r := New(nil)
	cmd := fakeCommand{name: "chat"}

	if err := r.Publish(cmd); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	got, ok := r.Lookup("chat")
	if !ok || got.Name() != "chat" {
		t.Fatalf("Lookup(chat) = (%v, %v), want (chat, true)", got, ok)
	}

	if err := r.Unpublish("chat"); err != nil {
		t.Fatalf("Unpublish: %v", err)
	}
	if _, ok := r.Lookup("chat"); ok {
		t.Fatal("expected chat to be gone after Unpublish")
	}
}

func TestRegistry_DuplicatePublish(t *testing.T) {
	r := New(nil)
	cmd := fakeCommand{name: "chat"}
	if err := r.Publish(cmd); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := r.Publish(cmd); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("second Publish err = %v, want ErrDuplicate", err)
	}
}

func TestRegistry_ReservedNameRejectedForUserCommands(t *testing.T) {
	r := New(nil)
	cmd := fakeCommand{name: "_hb"}
	if err := r.Publish(cmd); !errors.Is(err, ErrReserved) {
		t.Fatalf("Publish(_hb) err = %v, want ErrReserved", err)
	}
}

func TestRegistry_PublishSystemBypassesReservedCheck(t *testing.T) {
	r := New(nil)
	cmd := fakeCommand{name: "_hb", isSystem: true}
	if err := r.PublishSystem(cmd); err != nil {
		t.Fatalf("PublishSystem: %v", err)
	}
	if _, ok := r.Lookup("_hb"); !ok {
		t.Fatal("expected _hb to be published")
	}
}

func TestRegistry_UnpublishUnknown(t *testing.T) {
	r := New(nil)
	if err := r.Unpublish("ghost"); !errors.Is(err, ErrUnknown) {
		t.Fatalf("Unpublish(ghost) err = %v, want ErrUnknown", err)
	}
}

func TestRegistry_PublishedNamesExcludesSystemCommands(t *testing.T) {
	r := New(nil)
	_ = r.PublishSystem(fakeCommand{name: "_hb", isSystem: true})
	_ = r.Publish(fakeCommand{name: "chat"})
	_ = r.Publish(fakeCommand{name: "presence"})

	names := r.PublishedNames()
	if len(names) != 2 {
		t.Fatalf("PublishedNames() = %v, want 2 non-system names", names)
	}
}

func TestRegistry_OnChangeFiresOnlyForUserCommands(t *testing.T) {
	calls := 0
	r := New(func() { calls++ })

	_ = r.PublishSystem(fakeCommand{name: "_hb", isSystem: true})
	if calls != 0 {
		t.Fatalf("onChange fired %d times for a system publish, want 0", calls)
	}

	_ = r.Publish(fakeCommand{name: "chat"})
	if calls != 1 {
		t.Fatalf("onChange fired %d times after a user publish, want 1", calls)
	}

	_ = r.Unpublish("chat")
	if calls != 2 {
		t.Fatalf("onChange fired %d times after a user unpublish, want 2", calls)
	}
}
