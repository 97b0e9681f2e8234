package flash

import (
	"regexp"
	"strconv"
	"strings"
)

// ProgrammerConfig selects the probe and target for the MCU programmer.
type ProgrammerConfig struct {
	// Model is the programmer tool id, passed as -TP<Model> (e.g. "AICE")
	Model string
	// Device is the target part, passed as -P<Device> (e.g. "ATSAME70N19B")
	Device string
}

// ModuleConfig selects how the module flasher is invoked.
type ModuleConfig struct {
	// Tool is the flasher executable name or path
	Tool string
	// Model is the module family flag value (e.g. "WE310")
	Model string
	// Port is the serial port the module is attached to
	Port string
}

// ProgrammerArgs builds the programmer argument vector: tool, device,
// program action, and hex image.
func ProgrammerArgs(cfg ProgrammerConfig, image string) []string {
	return []string{
		"-TP" + cfg.Model,
		"-P" + cfg.Device,
		"-M",
		"-F" + image,
	}
}

// ModuleArgs builds the module flasher argument vector.
func ModuleArgs(cfg ModuleConfig, image string) []string {
	return []string{
		"-m", cfg.Model,
		"-d", image,
		"-c", cfg.Port,
	}
}

// CommandLine renders argv for display.
func CommandLine(path string, args []string) string {
	return strings.Join(append([]string{path}, args...), " ")
}

var imageMarker = regexp.MustCompile(`Flashing Image (\d+) of (\d+)`)

// ImageMarker is one "Flashing Image N of M" line from the module flasher.
type ImageMarker struct {
	Index int
	Count int
}

func (m ImageMarker) String() string {
	return "Flashing Image " + strconv.Itoa(m.Index) + " of " + strconv.Itoa(m.Count)
}

// ParseImageMarkers returns the image markers found in text, in order.
func ParseImageMarkers(text string) []ImageMarker {
	var out []ImageMarker
	for _, m := range imageMarker.FindAllStringSubmatch(text, -1) {
		idx, err1 := strconv.Atoi(m[1])
		cnt, err2 := strconv.Atoi(m[2])
		if err1 != nil || err2 != nil {
			continue
		}
		out = append(out, ImageMarker{Index: idx, Count: cnt})
	}
	return out
}
