package types

// MaxNetQueues caps the virtio network queue count of the new instance.
const MaxNetQueues = 8

// MigrationPlan is everything derived from a descriptor and the operator's
// destination choice. It is computed once per run.
type MigrationPlan struct {
	// RunID tags resources created by this run (e.g. the hosts-file entry).
	RunID string `json:"run_id"`

	Node   string `json:"node"`   // destination node
	Master string `json:"master"` // control node owning Node

	NetQueues int `json:"net_queues"`

	VolumeName  string `json:"volume_name"`
	VolumeGroup string `json:"volume_group"`

	// OriginalName is what the source instance is renamed to before the copy.
	OriginalName string `json:"original_name"`
}

// DevicePath returns the destination block device path.
func (p *MigrationPlan) DevicePath() string {
	return "/dev/" + p.VolumeGroup + "/" + p.VolumeName
}

// NetQueues returns min(cpu, MaxNetQueues). Non-positive counts yield 0.
func NetQueues(cpu int) int {
	if cpu <= 0 {
		return 0
	}
	return min(cpu, MaxNetQueues)
}
