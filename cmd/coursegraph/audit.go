package main

import (
	"coursegraph-backend/infrastructure/di"
	"coursegraph-backend/infrastructure/persistence"

	"github.com/spf13/cobra"
)

// pathwayReport is the printed form of a children list audit
type pathwayReport struct {
	Pathway      string   `yaml:"pathway"`
	Consistent   bool     `yaml:"consistent"`
	MissingTypes []string `yaml:"missing_types,omitempty"`
	OrphanTypes  []string `yaml:"orphan_types,omitempty"`
}

func newPathwayReport(d persistence.Divergence) pathwayReport {
	return pathwayReport{
		Pathway:      d.ParentID,
		Consistent:   d.Consistent(),
		MissingTypes: d.MissingTypes,
		OrphanTypes:  d.OrphanTypes,
	}
}

// parentReport is the printed form of a parent edge audit
type parentReport struct {
	Child           string `yaml:"child"`
	Parent          string `yaml:"parent"`
	Forward         bool   `yaml:"forward"`
	ForwardParentID string `yaml:"forward_parent,omitempty"`
	Reverse         bool   `yaml:"reverse"`
	Consistent      bool   `yaml:"consistent"`
}

func newParentReport(s persistence.EdgeState) parentReport {
	return parentReport{
		Child:           s.ChildID,
		Parent:          s.ParentID,
		Forward:         s.Forward,
		ForwardParentID: s.ForwardParentID,
		Reverse:         s.Reverse,
		Consistent:      s.Consistent() || s.Absent(),
	}
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Report divergence between index views without changing them",
}

var auditPathwayCmd = &cobra.Command{
	Use:   "pathway [pathway-id]",
	Short: "Compare a pathway's children sequence with its type map",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd.Context(), func(c *di.Container) error {
			d, err := c.Courseware.VerifyPathway(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := printReport(cmd.OutOrStdout(), newPathwayReport(d)); err != nil {
				return err
			}
			if !d.Consistent() {
				return errDivergent
			}
			return nil
		})
	},
}

var auditParentCmd = &cobra.Command{
	Use:   "parent [child-id] [parent-id]",
	Short: "Check that a parent edge has both its forward and reverse rows",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd.Context(), func(c *di.Container) error {
			s, err := c.Courseware.VerifyParent(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			report := newParentReport(s)
			if err := printReport(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if !report.Consistent {
				return errDivergent
			}
			return nil
		})
	},
}

func init() {
	auditCmd.AddCommand(auditPathwayCmd, auditParentCmd)
}
