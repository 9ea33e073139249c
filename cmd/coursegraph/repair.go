package main

import (
	"coursegraph-backend/infrastructure/di"

	"github.com/spf13/cobra"
)

var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Bring index views back in line with their source of truth",
}

var repairPathwayCmd = &cobra.Command{
	Use:   "pathway [pathway-id]",
	Short: "Rebuild a pathway's type map from its children sequence",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd.Context(), func(c *di.Container) error {
			d, err := c.Courseware.RepairPathway(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printReport(cmd.OutOrStdout(), newPathwayReport(d))
		})
	},
}

var repairParentCmd = &cobra.Command{
	Use:   "parent [child-id] [parent-id]",
	Short: "Complete or drop a half-written parent edge",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd.Context(), func(c *di.Container) error {
			s, err := c.Courseware.RepairParent(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return printReport(cmd.OutOrStdout(), newParentReport(s))
		})
	},
}

func init() {
	repairCmd.AddCommand(repairPathwayCmd, repairParentCmd)
}
