package migrate

import (
	"github.com/google/uuid"

	"github.com/projecteru2/shuttle/config"
	"github.com/projecteru2/shuttle/types"
)

// NewPlan derives the destination layout from the source descriptor. The
// volume group defaults to the source one unless configured.
func NewPlan(conf *config.Config, d *types.InstanceDescriptor, node, master string) *types.MigrationPlan {
	vg := conf.Volume.Group
	if vg == "" {
		vg = d.VolumeGroup
	}
	return &types.MigrationPlan{
		RunID:        uuid.NewString(),
		Node:         node,
		Master:       master,
		NetQueues:    types.NetQueues(d.CPU),
		VolumeName:   d.Name + conf.Volume.Suffix,
		VolumeGroup:  vg,
		OriginalName: d.Name + conf.OriginalSuffix,
	}
}
