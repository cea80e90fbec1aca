// Package propsconfig loads the daemon's key=value properties file (spec.md
// §6) with github.com/spf13/viper in "properties" mode, promoting the
// teacher's dangling transitive magiconair/properties dependency to actual
// use. Default search-path resolution follows the teacher's
// pkg/config.ConfigDir, built on github.com/mitchellh/go-homedir.
package propsconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/s2p-go/s2pd/internal/extmap"
	"github.com/s2p-go/s2pd/internal/modepage"
)

const envConfigDir = "S2PD_CONFIG_DIR"
const defaultConfigDirName = ".s2pd"
const PropertiesFileName = "s2pd.properties"

// DeviceSpec is one device.<id>:<lun>.* group parsed from the properties
// file, per spec.md §6.
type DeviceSpec struct {
	ID        int
	Lun       int
	Type      string
	Product   string
	BlockSize uint32
	Params    map[string]string
}

// Config is the fully parsed properties file plus derived tables.
type Config struct {
	Devices     []DeviceSpec
	ReservedIDs []int
	CustomPages *modepage.CustomTable
	ExtMap      *extmap.Map
}

// ConfigDir resolves the default search path, mirroring the teacher's
// pkg/config.ConfigDir (env override, then $HOME/.s2pd).
func ConfigDir() (string, error) {
	if d := os.Getenv(envConfigDir); d != "" {
		return d, nil
	}
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("propsconfig: resolving home directory: %w", err)
	}
	return filepath.Join(home, defaultConfigDirName), nil
}

// Load parses path as a properties file and builds a Config, per spec.md
// §6: key=value lines, '#' comments, device.<id>:<lun>.<field> groups,
// reserved_ids, and mode_page.<code>.<vendor>:<product> overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("properties")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("propsconfig: reading %s: %w", path, err)
	}

	cfg := &Config{
		CustomPages: modepage.NewCustomTable(),
		ExtMap:      extmap.New(),
	}

	devices := map[[2]int]*DeviceSpec{}
	for _, k := range v.AllKeys() {
		switch {
		case k == "reserved_ids":
			ids, err := parseReservedIDs(v.GetString(k))
			if err != nil {
				return nil, err
			}
			cfg.ReservedIDs = ids
		case strings.HasPrefix(k, "device."):
			if err := parseDeviceKey(devices, k, v.GetString(k)); err != nil {
				return nil, err
			}
		case strings.HasPrefix(k, "mode_page."):
			if err := parseModePageKey(cfg.CustomPages, k, v.GetString(k)); err != nil {
				return nil, err
			}
		}
	}
	for _, d := range devices {
		cfg.Devices = append(cfg.Devices, *d)
	}
	return cfg, nil
}

func parseReservedIDs(s string) ([]int, error) {
	var out []int
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("propsconfig: invalid reserved_ids entry %q: %w", f, err)
		}
		out = append(out, n)
	}
	return out, nil
}

// parseDeviceKey handles device.<id>:<lun>.<field> = value.
func parseDeviceKey(devices map[[2]int]*DeviceSpec, key, value string) error {
	rest := strings.TrimPrefix(key, "device.")
	parts := strings.SplitN(rest, ".", 2)
	if len(parts) != 2 {
		return fmt.Errorf("propsconfig: malformed device key %q", key)
	}
	idLun := strings.SplitN(parts[0], ":", 2)
	if len(idLun) != 2 {
		return fmt.Errorf("propsconfig: malformed device id:lun in %q", key)
	}
	id, err := strconv.Atoi(idLun[0])
	if err != nil {
		return fmt.Errorf("propsconfig: invalid target id in %q: %w", key, err)
	}
	lun, err := strconv.Atoi(idLun[1])
	if err != nil {
		return fmt.Errorf("propsconfig: invalid lun in %q: %w", key, err)
	}
	idx := [2]int{id, lun}
	d, ok := devices[idx]
	if !ok {
		d = &DeviceSpec{ID: id, Lun: lun, Params: map[string]string{}}
		devices[idx] = d
	}
	switch parts[1] {
	case "type":
		d.Type = value
	case "product":
		d.Product = value
	case "block_size":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("propsconfig: invalid block_size in %q: %w", key, err)
		}
		d.BlockSize = uint32(n)
	case "params":
		d.Params["params"] = value
	default:
		d.Params[parts[1]] = value
	}
	return nil
}

// parseModePageKey handles mode_page.<code>.<vendor>:<product> = hex:hex:...
func parseModePageKey(table *modepage.CustomTable, key, value string) error {
	rest := strings.TrimPrefix(key, "mode_page.")
	parts := strings.SplitN(rest, ".", 2)
	if len(parts) != 2 {
		return fmt.Errorf("propsconfig: malformed mode_page key %q", key)
	}
	code, err := strconv.ParseUint(parts[0], 0, 8)
	if err != nil {
		return fmt.Errorf("propsconfig: invalid mode page code in %q: %w", key, err)
	}
	vp := strings.SplitN(parts[1], ":", 2)
	if len(vp) != 2 {
		return fmt.Errorf("propsconfig: malformed vendor:product in %q", key)
	}
	data, err := modepage.ParseValue(value)
	if err != nil {
		return err
	}
	table.Set(byte(code), vp[0], vp[1], data)
	return nil
}
