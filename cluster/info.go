package cluster

import (
	"bufio"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	units "github.com/docker/go-units"

	"github.com/projecteru2/shuttle/types"
)

// ErrDescriptorUnavailable is returned when an instance cannot be described,
// either because the cluster manager refused (wrong control node) or because
// its output lacks a mandatory field.
var ErrDescriptorUnavailable = errors.New("instance descriptor unavailable")

var (
	// "- primary: xen01.lan", "- vcpus: 4", "kernel_path: default (/boot/x)"
	fieldRe = regexp.MustCompile(`^\s*(?:-\s+)?([A-Za-z_ ]+?):\s*(.*)$`)
	// "- nic/0:", "- disk/0: lvm, size 10.0G"
	blockRe = regexp.MustCompile(`^(\s*)-\s+(nic|disk)/(\d+):\s*(.*)$`)
	sizeRe  = regexp.MustCompile(`size\s+([0-9.]+\s*[KMGTPkmgtp]?i?[Bb]?)`)
	// "default (128)" -> "128"
	defaultRe = regexp.MustCompile(`^default\s*\((.*)\)$`)
)

// ParseInfo translates the cluster manager's instance info dump into a
// descriptor. Only the first disk is read; instances with more disks are
// rejected. NIC slots 0..MaxNICs-1 are scanned and absent slots skipped.
func ParseInfo(name, dump string) (*types.InstanceDescriptor, error) {
	d := &types.InstanceDescriptor{Name: name}
	var (
		memory, legacyMemory string
		diskHeader           string
		disks                int
		links                = map[int]string{}
	)

	// Current block: kind is "nic" / "disk" / "" and indent is the header's.
	var (
		kind   string
		index  int
		indent int
	)

	sc := bufio.NewScanner(strings.NewReader(dump))
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if m := blockRe.FindStringSubmatch(line); m != nil {
			kind, indent = m[2], len(m[1])
			index, _ = strconv.Atoi(m[3])
			if kind == "disk" {
				disks++
				if index == 0 {
					diskHeader = m[4]
				}
			}
			continue
		}
		if kind != "" && leadingSpace(line) <= indent {
			kind = ""
		}

		m := fieldRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		key, value := strings.TrimSpace(m[1]), resolveDefault(m[2])

		switch kind {
		case "nic":
			if key == "link" && index >= 0 && index < types.MaxNICs && value != "" {
				links[index] = value
			}
			continue
		case "disk":
			if index != 0 {
				continue
			}
			switch key {
			case "logical_id":
				if vg, _, ok := strings.Cut(value, "/"); ok {
					d.VolumeGroup = vg
				}
			case "on primary":
				d.VolumePath = firstColumn(value)
			}
			continue
		}

		switch key {
		case "primary":
			d.Node = firstColumn(value)
		case "vcpus":
			d.CPU, _ = strconv.Atoi(firstColumn(value))
		case "maxmem":
			memory = firstColumn(value)
		case "memory":
			legacyMemory = firstColumn(value)
		case "kernel_path":
			d.KernelPath = firstColumn(value)
		case "initrd_path":
			d.InitrdPath = firstColumn(value)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: read info: %v", ErrDescriptorUnavailable, err)
	}

	if disks > 1 {
		return nil, fmt.Errorf("%w: %s has %d disks, only single-disk instances can be moved", ErrDescriptorUnavailable, name, disks)
	}
	if memory == "" {
		memory = legacyMemory
	}
	var err error
	if memory != "" {
		if d.Memory, err = parseMemory(memory); err != nil {
			return nil, fmt.Errorf("%w: memory %q: %v", ErrDescriptorUnavailable, memory, err)
		}
	}
	if m := sizeRe.FindStringSubmatch(diskHeader); m != nil {
		if d.DiskSize, err = units.RAMInBytes(strings.ReplaceAll(m[1], " ", "")); err != nil {
			return nil, fmt.Errorf("%w: disk size %q: %v", ErrDescriptorUnavailable, m[1], err)
		}
	}

	// The cluster manager numbers NICs from 0, so slots 0..MaxNICs-1 are
	// scanned and an instance's first NIC is nic/0.
	for i := range types.MaxNICs {
		if link, ok := links[i]; ok {
			d.NICs = append(d.NICs, types.NIC{Index: i, Link: link})
		}
	}

	var missing []string
	for field, empty := range map[string]bool{
		"primary node": d.Node == "",
		"memory":       d.Memory <= 0,
		"vcpus":        d.CPU <= 0,
		"disk size":    d.DiskSize <= 0,
		"volume path":  d.VolumePath == "",
		"volume group": d.VolumeGroup == "",
	} {
		if empty {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return nil, fmt.Errorf("%w: %s: missing %s", ErrDescriptorUnavailable, name, strings.Join(missing, ", "))
	}
	return d, nil
}

// parseMemory reads a memory value; bare numbers are MiB.
func parseMemory(s string) (int64, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n * units.MiB, nil
	}
	return units.RAMInBytes(s)
}

func resolveDefault(v string) string {
	v = strings.TrimSpace(v)
	if m := defaultRe.FindStringSubmatch(v); m != nil {
		return strings.TrimSpace(m[1])
	}
	return v
}

func firstColumn(v string) string {
	if f := strings.Fields(v); len(f) > 0 {
		return f[0]
	}
	return ""
}

func leadingSpace(s string) int {
	return len(s) - len(strings.TrimLeft(s, " \t"))
}
