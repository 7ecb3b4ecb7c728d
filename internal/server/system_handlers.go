package server

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/wilqq-the/stronghodl/internal/reliability"
	"github.com/wilqq-the/stronghodl/internal/scheduler"
)

// SystemHandlers exposes process health and maintenance endpoints
type SystemHandlers struct {
	scheduler     *scheduler.Scheduler
	backupService *reliability.BackupService
	startedAt     time.Time
	log           zerolog.Logger
}

// NewSystemHandlers creates system handlers
func NewSystemHandlers(
	sched *scheduler.Scheduler,
	backupService *reliability.BackupService,
	startedAt time.Time,
	log zerolog.Logger,
) *SystemHandlers {
	return &SystemHandlers{
		scheduler:     sched,
		backupService: backupService,
		startedAt:     startedAt,
		log:           log.With().Str("handler", "system").Logger(),
	}
}

// SystemStatusResponse describes process and scheduler health
type SystemStatusResponse struct {
	UptimeSeconds  int64            `json:"uptime_seconds"`
	CPUPercent     float64          `json:"cpu_percent"`
	MemoryPercent  float64          `json:"memory_percent"`
	MemoryUsedMB   float64          `json:"memory_used_mb"`
	Scheduler      scheduler.Status `json:"scheduler"`
	BackupsEnabled bool             `json:"backups_enabled"`
}

// HandleSystemStatus reports process health
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent, memUsedMB := h.getSystemStats()

	respondJSON(w, http.StatusOK, SystemStatusResponse{
		UptimeSeconds:  int64(time.Since(h.startedAt).Seconds()),
		CPUPercent:     cpuPercent,
		MemoryPercent:  memPercent,
		MemoryUsedMB:   memUsedMB,
		Scheduler:      h.scheduler.Status(),
		BackupsEnabled: h.backupService != nil,
	})
}

// HandleTriggerBackup creates and uploads a backup archive
func (h *SystemHandlers) HandleTriggerBackup(w http.ResponseWriter, r *http.Request) {
	if h.backupService == nil {
		respondError(w, http.StatusNotImplemented, "backups not configured")
		return
	}

	if err := h.backupService.CreateAndUploadBackup(r.Context()); err != nil {
		h.log.Error().Err(err).Msg("Backup failed")
		respondError(w, http.StatusInternalServerError, "backup failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "backup uploaded"})
}

// getSystemStats samples CPU and memory usage
func (h *SystemHandlers) getSystemStats() (cpuPercent, memPercent, memUsedMB float64) {
	if percents, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(percents) > 0 {
		cpuPercent = percents[0]
	} else if err != nil {
		h.log.Debug().Err(err).Msg("Failed to sample CPU usage")
	}

	if memStat, err := mem.VirtualMemory(); err == nil {
		memPercent = memStat.UsedPercent
		memUsedMB = float64(memStat.Used) / 1024 / 1024
	} else {
		h.log.Debug().Err(err).Msg("Failed to sample memory usage")
	}

	return cpuPercent, memPercent, memUsedMB
}
