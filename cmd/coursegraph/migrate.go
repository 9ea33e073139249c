package main

import (
	"fmt"

	"coursegraph-backend/infrastructure/di"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the DynamoDB table if it does not exist",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd.Context(), func(c *di.Container) error {
			if c.Dynamo == nil {
				return fmt.Errorf("migrate needs the dynamodb engine, got %q", c.Config.Store.Engine)
			}
			created, err := c.Dynamo.EnsureTable(cmd.Context(), c.Config.Store.CreateTableTimeout)
			if err != nil {
				return err
			}
			c.Logger.Info("Table ready",
				zap.String("table", c.Config.TableName),
				zap.Bool("created", created),
			)
			return nil
		})
	},
}
