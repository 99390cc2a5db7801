package migrate

import "github.com/spf13/cobra"

// Actions defines the migration entry point.
type Actions interface {
	Migrate(cmd *cobra.Command, args []string) error
}

// Command builds the root "shuttle" command. Both flags are required and no
// positional arguments are accepted.
func Command(h Actions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shuttle --instance NAME --node NODE",
		Short: "Move a cluster instance to another node, switching hypervisor on the way",
		Long: `shuttle copies the root filesystem of a cluster instance onto a new volume
on the destination node and registers it there under the same name. The
original instance is shut down and renamed, and only removed after an
explicit "yes".

Run it on the control node that owns the instance.`,
		Args: cobra.NoArgs,
		RunE: h.Migrate,
	}
	cmd.Flags().StringP("instance", "i", "", "instance to migrate (required)")
	cmd.Flags().StringP("node", "n", "", "destination node (required)")
	_ = cmd.MarkFlagRequired("instance")
	_ = cmd.MarkFlagRequired("node")
	return cmd
}
