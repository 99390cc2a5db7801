package types

// MaxNICs is the number of interface slots scanned on the source instance.
const MaxNICs = 8

// NIC is one network interface of an instance: its slot index and the network
// link (bridge) it is attached to.
type NIC struct {
	Index int    `json:"index"`
	Link  string `json:"link"`
}

// InstanceDescriptor is the snapshot of a source instance taken before migration.
// It is built once from the cluster manager's description and never modified.
type InstanceDescriptor struct {
	Name string `json:"name"`
	// Node is the instance's current primary node.
	Node string `json:"node"`

	CPU    int   `json:"cpu"`
	Memory int64 `json:"memory"` // bytes

	DiskSize    int64  `json:"disk_size"` // bytes
	VolumePath  string `json:"volume_path"`
	VolumeGroup string `json:"volume_group"`
	KernelPath  string `json:"kernel_path,omitempty"`
	InitrdPath  string `json:"initrd_path,omitempty"`
	NICs        []NIC  `json:"nics,omitempty"`
}
