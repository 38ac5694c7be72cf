package main

import (
	"fmt"
	"strconv"

	"github.com/myrjola/lifeplan/internal/catalog"
	"github.com/myrjola/lifeplan/internal/errors"
	"github.com/spf13/cobra"
)

var catalogGroup = &cobra.Group{
	ID:    "catalog",
	Title: "Question catalog",
}

const promptColumnRunes = 60

func newCatalogCmd(lookupEnv func(string) (string, bool)) *cobra.Command {
	catalogCmd := &cobra.Command{
		Use:     "catalog",
		GroupID: catalogGroup.ID,
		Short:   "Inspect question catalogs",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the questions of the catalog",
		Long: `Lists the questions in the order they are asked. The catalog is read from --file, then from
LIFEPLAN_CATALOG_PATH, and falls back to the embedded default catalog.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := cmd.Flags().GetString("file")
			if err != nil {
				return errors.Wrap(err, "get file flag")
			}
			if path == "" {
				path, _ = lookupEnv("LIFEPLAN_CATALOG_PATH")
			}
			c, err := loadCatalog(path)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, c.Len())
			for _, q := range c.Questions() {
				rows = append(rows, []string{
					strconv.Itoa(q.Order),
					q.ID,
					q.ModuleTitle,
					yesNo(q.Required),
					yesNo(q.Insight != ""),
					ellipsize(q.Prompt, promptColumnRunes),
				})
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Order", "ID", "Module", "Required", "Insight", "Prompt"},
				rows,
				[]columnAlignment{alignRight},
			))
			return errors.Wrap(err, "write table")
		},
	}
	listCmd.Flags().String("file", "", "path to a YAML catalog")

	checkCmd := &cobra.Command{
		Use:   "check [file]",
		Short: "Validate a YAML catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := catalog.LoadFile(args[0])
			if err != nil {
				return err //nolint:wrapcheck // already annotated with the path
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "ok: %d questions, %d required, %d modules\n",
				c.Len(), len(c.Required()), len(c.Modules()))
			return errors.Wrap(err, "write result")
		},
	}

	catalogCmd.AddCommand(listCmd, checkCmd)
	return catalogCmd
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default(), nil
	}
	c, err := catalog.LoadFile(path)
	if err != nil {
		return nil, err //nolint:wrapcheck // already annotated with the path
	}
	return c, nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
