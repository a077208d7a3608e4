// Package runmeta records what the launcher dispatched.
//
// The metadata file lands next to the run's checkpoints so that a resumed
// or re-examined run can be traced back to the exact argument vector and
// machine that produced it.
package runmeta

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

type Metadata struct {
	RunName         string    `json:"run_name"`
	Method          string    `json:"method"`
	Dataset         string    `json:"dataset"`
	LauncherVersion string    `json:"launcher_version"`
	StartedAt       time.Time `json:"started_at"`

	Hostname      string `json:"hostname,omitempty"`
	OS            string `json:"os"`
	CPUCount      int    `json:"cpu_count,omitempty"`
	CPUModel      string `json:"cpu_model,omitempty"`
	TotalMemoryMB uint64 `json:"total_memory_mb,omitempty"`

	GPUs     string `json:"gpus,omitempty"`
	DataDir  string `json:"data_dir,omitempty"`
	StagedTo string `json:"staged_to,omitempty"`

	Argv []string `json:"argv"`
}

// Collect gathers host information. Probes are best-effort: a field that
// cannot be sampled is simply left empty.
func Collect() Metadata {
	meta := Metadata{
		StartedAt: time.Now().UTC(),
		OS:        runtime.GOOS,
	}

	if info, err := host.Info(); err == nil {
		meta.Hostname = info.Hostname
	}

	if count, err := cpu.Counts(true); err == nil {
		meta.CPUCount = count
	}
	if infos, err := cpu.Info(); err == nil && len(infos) > 0 {
		meta.CPUModel = infos[0].ModelName
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		meta.TotalMemoryMB = vm.Total / 1024 / 1024
	}

	return meta
}

// Write serializes the metadata as JSON at the given path, creating parent
// directories as needed.
func (m Metadata) Write(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("runmeta: unable to create %s: %w", filepath.Dir(path), err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("runmeta: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("runmeta: unable to write %s: %w", path, err)
	}
	return nil
}

// Read loads a previously written metadata file.
func Read(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("runmeta: unable to read %s: %w", path, err)
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("runmeta: %s is not valid metadata: %w", path, err)
	}
	return &meta, nil
}
