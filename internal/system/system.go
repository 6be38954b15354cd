package system

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// Recording headroom floor: refuse to start a capture when the machine is
// this close to the wall.
const (
	minFreeMemoryBytes = 256 << 20 // 256 MiB
	minFreeDiskBytes   = 512 << 20 // 512 MiB
)

// InitResourceLimits raises the open-file limit; the capture pipeline
// keeps several pipes and the embed polling open at once.
func InitResourceLimits(log zerolog.Logger) {
	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		log.Warn().Err(err).Msg("could not read file limit")
		return
	}

	rLimit.Cur = 2048
	if rLimit.Cur > rLimit.Max {
		rLimit.Cur = rLimit.Max
	}

	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		log.Warn().Err(err).Msg("could not raise file limit")
		return
	}
	log.Debug().Uint64("limit", rLimit.Cur).Msg("raised open file limit")
}

// CheckRecordingHeadroom verifies there is enough free memory and disk
// under outDir to start an encode.
func CheckRecordingHeadroom(outDir string) error {
	vm, err := mem.VirtualMemory()
	if err == nil && vm.Available < minFreeMemoryBytes {
		return fmt.Errorf("not enough free memory to record (%d MiB available)", vm.Available>>20)
	}

	probe := outDir
	if probe == "" {
		probe = "."
	}
	usage, err := disk.Usage(probe)
	if err != nil {
		// Directory may not exist yet; fall back to its parent.
		usage, err = disk.Usage(filepath.Dir(probe))
	}
	if err == nil && usage.Free < minFreeDiskBytes {
		return fmt.Errorf("not enough free disk to record (%d MiB free)", usage.Free>>20)
	}
	return nil
}

// FindLatestRecording returns the most recently written recording under
// dir.
func FindLatestRecording(dir string) (string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var latestFile string
	var latestTime time.Time
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(strings.ToLower(f.Name()), ".mp4") {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(latestTime) {
			latestTime = info.ModTime()
			latestFile = filepath.Join(dir, f.Name())
		}
	}

	if latestFile == "" {
		return "", fmt.Errorf("no recordings found in %s", dir)
	}
	return latestFile, nil
}
