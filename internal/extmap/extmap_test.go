package extmap

import "testing"

func TestLookupDefaultMapping(t *testing.T) {
	m := New()
	got, ok := m.Lookup("/images/boot.hds")
	if !ok || got != "fixed disk" {
		t.Fatalf("got %q ok=%v, want fixed disk", got, ok)
	}
	got, ok = m.Lookup("/images/game.ISO")
	if !ok || got != "cd-rom" {
		t.Fatalf("expected case-insensitive match for .ISO, got %q ok=%v", got, ok)
	}
}

func TestLookupUnknownExtension(t *testing.T) {
	m := New()
	if _, ok := m.Lookup("/images/disk.xyz"); ok {
		t.Fatal("expected no mapping for an unknown extension")
	}
	if _, ok := m.Lookup("noextension"); ok {
		t.Fatal("expected no mapping for a filename without an extension")
	}
}

func TestAddExtensionMappingOverridesDefault(t *testing.T) {
	m := New()
	m.AddExtensionMapping("HDS", "removable disk")
	got, ok := m.Lookup("a.hds")
	if !ok || got != "removable disk" {
		t.Fatalf("expected override to take effect, got %q ok=%v", got, ok)
	}
}
