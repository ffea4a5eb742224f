package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lowercasename/eggcms/pkg/schema"
	"github.com/lowercasename/eggcms/pkg/types"
)

// printJSON writes v as indented JSON to the command's output.
func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return sysError("encode output: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func newSchemasCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schemas",
		Short: "Print the loaded schemas",
		Long:  "Load and validate the schemas and print them. Block schemas are listed\nbut have no table.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			defs, err := loadSchemas(cfg)
			if err != nil {
				return err
			}
			if flags.jsonMode {
				return printJSON(cmd, defs)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tKIND\tLABEL\tFIELDS")
			for _, d := range defs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", d.Name, d.Kind, d.DisplayLabel(), len(d.Fields))
			}
			return w.Flush()
		},
	}
}

func newListCmd() *cobra.Command {
	var drafts bool
	cmd := &cobra.Command{
		Use:   "list <schema>",
		Short: "List the items of a schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer s.close()

			def, err := s.lookup(args[0])
			if err != nil {
				return err
			}
			repo, err := s.backend.Repository()
			if err != nil {
				return sysError("%w", err)
			}

			var items []*types.Item
			if def.Kind == schema.KindSingleton {
				item, ok, err := repo.GetSingleton(cmd.Context(), def)
				if err != nil {
					return sysError("%w", err)
				}
				if ok {
					items = append(items, item)
				}
			} else {
				items, err = repo.List(cmd.Context(), def, drafts)
				if err != nil {
					return sysError("%w", err)
				}
			}

			if flags.jsonMode {
				if items == nil {
					items = []*types.Item{}
				}
				return printJSON(cmd, items)
			}
			printItems(cmd, def, items)
			return nil
		},
	}
	cmd.Flags().BoolVar(&drafts, "drafts", false, "include draft items")
	return cmd
}

func printItems(cmd *cobra.Command, def *schema.Definition, items []*types.Item) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tLABEL\tSTATUS\tUPDATED")
	for _, it := range items {
		status := "published"
		if it.IsDraft() {
			status = "draft"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", it.ID, def.RowLabel(it.Values()), status, it.Meta.UpdatedAt)
	}
	w.Flush()
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <schema> <id>",
		Short: "Print one item as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer s.close()

			def, err := s.lookup(args[0])
			if err != nil {
				return err
			}
			repo, err := s.backend.Repository()
			if err != nil {
				return sysError("%w", err)
			}
			item, ok, err := repo.Get(cmd.Context(), def, args[1])
			if err != nil {
				return sysError("%w", err)
			}
			if !ok {
				return userError("%s %q not found", def.Name, args[1])
			}
			return printJSON(cmd, item)
		},
	}
}

func newMediaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "media",
		Short: "List registered media",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer s.close()

			media, err := s.backend.Media()
			if err != nil {
				return sysError("%w", err)
			}
			items, err := media.List(cmd.Context())
			if err != nil {
				return sysError("%w", err)
			}

			if flags.jsonMode {
				if items == nil {
					items = []*types.Media{}
				}
				return printJSON(cmd, items)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tFILENAME\tMIMETYPE\tSIZE\tPATH")
			for _, m := range items {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", m.ID, m.Filename, m.MimeType, m.Size, m.Path)
			}
			return w.Flush()
		},
	}
}
