package cmd

import (
	"os"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/s2p-go/s2pd/internal/controller"
	"github.com/s2p-go/s2pd/internal/executor"
	"github.com/s2p-go/s2pd/internal/extmap"
	"github.com/s2p-go/s2pd/internal/propsconfig"
)

// extmapFor loads just the extension-mapping half of the properties file
// early, since NewDeviceFactory needs it before the executor exists. A
// missing file is not an error: the daemon falls back to extmap's built-in
// defaults, per spec.md §6.
func extmapFor(configPath string, logger *log.Logger) *extmap.Map {
	if _, err := os.Stat(configPath); err != nil {
		return extmap.New()
	}
	cfg, err := propsconfig.Load(configPath)
	if err != nil {
		logger.WithError(err).Warn("failed to parse properties file, using defaults")
		return extmap.New()
	}
	return cfg.ExtMap
}

// applyStartupConfig replays the properties file's device.* entries as
// ATTACH commands and installs reserved IDs, per spec.md §6. The custom
// mode pages the file defines (cfg.CustomPages) are not applied to any
// device. Grounded on the teacher's cmd/daemon.go, which drove
// scsi.InitSCSILUMap from the same kind of parsed config at startup.
func applyStartupConfig(exec *executor.Executor, factory *controller.Factory, configPath string, logger *log.Logger) {
	if _, err := os.Stat(configPath); err != nil {
		logger.WithField("path", configPath).Info("no properties file found, starting with no devices attached")
		return
	}
	cfg, err := propsconfig.Load(configPath)
	if err != nil {
		logger.WithError(err).Warn("failed to parse properties file")
		return
	}

	if len(cfg.ReservedIDs) > 0 {
		idStrs := make([]string, len(cfg.ReservedIDs))
		for i, id := range cfg.ReservedIDs {
			idStrs[i] = strconv.Itoa(id)
		}
		ids := strings.Join(idStrs, ",")
		reply := exec.Process([]executor.Command{{
			Operation: executor.OpReserveIDs,
			Params:    map[string]string{"ids": ids},
		}})
		if !reply.Status {
			logger.WithField("message", reply.Message).Warn("failed to apply reserved_ids from properties file")
		}
	}

	for _, d := range cfg.Devices {
		cmd := executor.Command{
			Operation:  executor.OpAttach,
			ID:         d.ID,
			Lun:        d.Lun,
			DeviceType: d.Type,
			Filename:   d.Params["file"],
			BlockSize:  d.BlockSize,
			Params:     d.Params,
		}
		reply := exec.Process([]executor.Command{cmd})
		if !reply.Status {
			logger.WithField("message", reply.Message).Warnf("failed to attach device %d:%d from properties file", d.ID, d.Lun)
			continue
		}
		logger.Infof("attached device %d:%d (%s) from properties file", d.ID, d.Lun, d.Type)
	}
}
