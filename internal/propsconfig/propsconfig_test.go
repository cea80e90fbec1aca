package propsconfig

import (
	"os"
	"testing"
)

func writeTempProps(t *testing.T, contents string) string {
	f, err := os.CreateTemp("", "s2pd-*.properties")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(contents); err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })
	return f.Name()
}

func TestLoadParsesDevicesAndReservedIDs(t *testing.T) {
	path := writeTempProps(t, `
reserved_ids=3,5
device.0:0.type=fixed disk
device.0:0.block_size=512
device.1:0.type=cd-rom
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.ReservedIDs) != 2 {
		t.Fatalf("expected 2 reserved ids, got %v", cfg.ReservedIDs)
	}
	if len(cfg.Devices) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(cfg.Devices))
	}

	var found bool
	for _, d := range cfg.Devices {
		if d.ID == 0 && d.Lun == 0 {
			found = true
			if d.Type != "fixed disk" || d.BlockSize != 512 {
				t.Errorf("unexpected device spec: %+v", d)
			}
		}
	}
	if !found {
		t.Fatal("expected to find device 0:0 in parsed config")
	}
}

func TestLoadParsesModePageOverrides(t *testing.T) {
	path := writeTempProps(t, `
mode_page.56.s2pgo:fixed disk=00:01:02
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	data, present := cfg.CustomPages.Lookup(56, "s2pgo", "fixed disk")
	if !present || len(data) != 3 {
		t.Fatalf("expected a 3-byte override, got data=%v present=%v", data, present)
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/s2pd.properties"); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}
