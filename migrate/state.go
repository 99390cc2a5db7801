package migrate

// State is a point in the migration. States only move forward.
type State int

const (
	StateNew State = iota
	StateValidated
	StateDiskProvisioned
	StateSourcePrepared
	StateInstanceShutdown
	StateInstanceRenamed
	StateSourceMounted
	StateDataCopied
	StateConfigPatched
	StateUnmounted
	StateInstanceRegistered
	StateAwaitingRemovalDecision
	StateDone
)

var stateNames = [...]string{
	StateNew:                     "New",
	StateValidated:               "Validated",
	StateDiskProvisioned:         "DiskProvisioned",
	StateSourcePrepared:          "SourcePrepared",
	StateInstanceShutdown:        "InstanceShutdown",
	StateInstanceRenamed:         "InstanceRenamed",
	StateSourceMounted:           "SourceMounted",
	StateDataCopied:              "DataCopied",
	StateConfigPatched:           "ConfigPatched",
	StateUnmounted:               "Unmounted",
	StateInstanceRegistered:      "InstanceRegistered",
	StateAwaitingRemovalDecision: "AwaitingRemovalDecision",
	StateDone:                    "Done",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

// Registered reports whether the new instance exists on the destination.
// From here on a failure never tears it down.
func (s State) Registered() bool {
	return s >= StateInstanceRegistered
}
