// Package modepage implements the custom mode-page override table from
// spec.md §3/§6: a process-wide mapping from (vendor, product, page code)
// to a byte vector, read lock-free after startup as spec.md §5 requires.
// A present-but-empty vector means "suppress this page for this product".
package modepage

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// key is vendor/product with "-" treated as a wildcard, per spec.md §6.
type key struct {
	vendor  string
	product string
	page    byte
}

// CustomTable is built once at startup from the properties file's
// mode_page.<code>.<vendor>:<product> = hex:hex:... entries and read
// without locking; OverrideFunc adapts it to a
// ModePageDevice.CustomOverride. No device constructor in this repository
// installs such an override.
type CustomTable struct {
	entries map[key][]byte
}

func NewCustomTable() *CustomTable {
	return &CustomTable{entries: map[key][]byte{}}
}

// Set installs an override; data may be empty to suppress the page.
func (t *CustomTable) Set(page byte, vendor, product string, data []byte) {
	t.entries[key{vendor, product, page}] = data
}

// ParseValue decodes a "hex:hex:hex" properties-file value into bytes.
func ParseValue(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ":")
	out := make([]byte, 0, len(parts))
	for _, p := range parts {
		b, err := hex.DecodeString(p)
		if err != nil || len(b) != 1 {
			return nil, fmt.Errorf("modepage: invalid hex byte %q", p)
		}
		out = append(out, b[0])
	}
	return out, nil
}

// Lookup finds an override for (vendor, product, page), honoring the "-"
// wildcard on either field, per spec.md §6. present is true only when an
// override entry exists (even if its data is empty, meaning suppress).
func (t *CustomTable) Lookup(page byte, vendor, product string) (data []byte, present bool) {
	candidates := []key{
		{vendor, product, page},
		{"-", product, page},
		{vendor, "-", page},
		{"-", "-", page},
	}
	for _, k := range candidates {
		if v, ok := t.entries[k]; ok {
			return v, true
		}
	}
	return nil, false
}

// OverrideFunc returns a device.ModePageDevice.CustomOverride closure
// scoped to one device's identity.
func (t *CustomTable) OverrideFunc(vendor, product string) func(byte) ([]byte, bool) {
	return func(page byte) ([]byte, bool) {
		return t.Lookup(page, vendor, product)
	}
}
