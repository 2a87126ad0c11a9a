package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"video-share-service/internal/domain/entities"
	"video-share-service/internal/services"
)

func newReconcileCommand(load configLoader) *cobra.Command {
	var showFailed bool

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Run one share sync reconciliation pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.close()

			out := cmd.OutOrStdout()
			r := services.NewSyncReconciler(a.syncs, a.shares, a.registry.Local(), cfg.Reconciler.Interval, a.metrics, a.log)
			report, err := r.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "scanned=%d created=%d existing=%d failed=%d\n",
				report.Scanned, report.Created, report.Existing, report.Failed)

			if !showFailed {
				return nil
			}
			for _, p := range cfg.Organization.Peers {
				if p.ID == a.registry.Local().String() {
					continue
				}
				failed, err := a.syncs.ListBySourceAndStatus(cmd.Context(), p.ID, entities.SyncStatusFailed)
				if err != nil {
					return err
				}
				for _, s := range failed {
					fmt.Fprintf(out, "%s\t%s\tvideo=%s\tuser=%s\t%s\n",
						p.ID, s.ID, s.VideoID, s.SharedWithUsername, s.ErrorMessage.String)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showFailed, "show-failed", false, "List failed share syncs per source organization after the pass")
	return cmd
}
