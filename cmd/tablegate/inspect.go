package main

import (
	"context"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/koustreak/tablegate/internal/database"
	"github.com/koustreak/tablegate/internal/schema"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print catalog metadata of the configured store",
}

var inspectTablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List tables",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCatalog(cmd.Context(), func(ctx context.Context, c *schema.Catalog, q database.Querier) error {
			tables, err := c.Tables(ctx, q)
			if err != nil {
				return err
			}
			data := pterm.TableData{{"Table", "Label"}}
			for _, t := range tables {
				data = append(data, []string{t.Name, t.Label})
			}
			return renderTable(data)
		})
	},
}

var inspectFieldsCmd = &cobra.Command{
	Use:   "fields <table>",
	Short: "List the fields of a table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCatalog(cmd.Context(), func(ctx context.Context, c *schema.Catalog, q database.Querier) error {
			fields, err := c.Fields(ctx, q, args[0])
			if err != nil {
				return err
			}
			data := pterm.TableData{{"Field", "Type", "Label"}}
			for _, f := range fields {
				data = append(data, []string{f.Name, f.Type, f.Label})
			}
			return renderTable(data)
		})
	},
}

var inspectIndexesCmd = &cobra.Command{
	Use:   "indexes <table>",
	Short: "List the indexes of a table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCatalog(cmd.Context(), func(ctx context.Context, c *schema.Catalog, q database.Querier) error {
			indexes, err := c.Indexes(ctx, q, args[0])
			if err != nil {
				return err
			}
			data := pterm.TableData{{"Index", "Unique", "Primary"}}
			for _, ix := range indexes {
				data = append(data, []string{ix.Name, strconv.FormatBool(ix.Unique), strconv.FormatBool(ix.Primary)})
			}
			return renderTable(data)
		})
	},
}

func init() {
	inspectCmd.AddCommand(inspectTablesCmd, inspectFieldsCmd, inspectIndexesCmd)
}

// withCatalog opens the store and runs fn on one read session.
func withCatalog(ctx context.Context, fn func(context.Context, *schema.Catalog, database.Querier) error) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	db, catalog, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer db.Close()

	sess, err := db.OpenRead(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	return fn(ctx, catalog, sess)
}

func renderTable(data pterm.TableData) error {
	if len(data) == 1 {
		pterm.Info.Println("no rows")
		return nil
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
