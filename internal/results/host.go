package results

import (
	"os"
	"runtime"

	"golang.org/x/sys/cpu"
)

// Host records the machine a sweep ran on. Latency numbers from different
// hosts are not comparable, so every result set carries one.
type Host struct {
	Hostname string          `json:"hostname"`
	GoOS     string          `json:"goos"`
	GoArch   string          `json:"goarch"`
	CPUs     int             `json:"cpus"`
	Features map[string]bool `json:"features,omitempty"`
}

// DetectHost fills a Host for the current machine.
func DetectHost() Host {
	hostname, _ := os.Hostname()
	return Host{
		Hostname: hostname,
		GoOS:     runtime.GOOS,
		GoArch:   runtime.GOARCH,
		CPUs:     runtime.NumCPU(),
		Features: cpuFeatures(),
	}
}

func cpuFeatures() map[string]bool {
	switch runtime.GOARCH {
	case "amd64", "386":
		return map[string]bool{
			"SSE42":   cpu.X86.HasSSE42,
			"AVX":     cpu.X86.HasAVX,
			"AVX2":    cpu.X86.HasAVX2,
			"FMA":     cpu.X86.HasFMA,
			"BMI2":    cpu.X86.HasBMI2,
			"AVX512F": cpu.X86.HasAVX512F,
		}
	case "arm64":
		return map[string]bool{
			"ASIMD":   cpu.ARM64.HasASIMD,
			"ATOMICS": cpu.ARM64.HasATOMICS,
			"SVE":     cpu.ARM64.HasSVE,
			"CRC32":   cpu.ARM64.HasCRC32,
		}
	default:
		return nil
	}
}
