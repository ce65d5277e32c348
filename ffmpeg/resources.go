package ffmpeg

import (
	"fmt"
	"log"
	"time"

	"vodgrab/media"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// Thresholds bounds what the host must have free before a mux starts.
// Zero disables the memory and CPU checks; disk is always checked against
// the bytes about to be written.
type Thresholds struct {
	IdleCPU  float64
	FreeMem  int64
	FreeDisk int64
}

// CheckResources verifies the host can take a mux writing need bytes to dir.
// Probe errors are logged and do not block the job.
func CheckResources(dir string, need int64, th Thresholds) error {
	if th.IdleCPU > 0 {
		p, err := cpu.Percent(time.Second, false)
		if err != nil {
			log.Printf("Warning: could not get CPU usage: %v", err)
		} else if len(p) > 0 && p[0] > (100.0-th.IdleCPU) {
			return fmt.Errorf("%w: not enough idle CPU. Current usage: %.2f%%, Idle threshold: %.2f%%",
				media.ErrInsufficientResources, p[0], th.IdleCPU)
		}
	}

	if th.FreeMem > 0 {
		vm, err := mem.VirtualMemory()
		if err != nil {
			log.Printf("Warning: could not get memory usage: %v", err)
		} else if vm.Available < uint64(th.FreeMem) {
			return fmt.Errorf("%w: not enough free memory. Available: %s, Required: %s",
				media.ErrInsufficientResources, humanize.IBytes(vm.Available), humanize.IBytes(uint64(th.FreeMem)))
		}
	}

	required := uint64(need)
	if th.FreeDisk > 0 {
		required += uint64(th.FreeDisk)
	}
	d, err := disk.Usage(dir)
	if err != nil {
		log.Printf("Warning: could not get disk usage for %s: %v", dir, err)
	} else if d.Free < required {
		return fmt.Errorf("%w: not enough free disk space in %s. Available: %s, Required: %s",
			media.ErrInsufficientResources, dir, humanize.IBytes(d.Free), humanize.IBytes(required))
	}
	return nil
}
