package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"customfields/internal/engine"
	"customfields/internal/metadata"
)

func newDefinitionsCmd(load configLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "definitions",
		Short: "Inspect content type definitions",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Parse every definition and report problems",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			reg := metadata.NewRegistry()
			problems := metadata.NewLoader(nil, reg).Initialize(cmd.Context(), cfg.Definitions.Path)
			out := cmd.OutOrStdout()
			for _, name := range reg.Names() {
				def := reg.GetDefinition(name)
				fmt.Fprintf(out, "%s\t%s/%s\tfields=%d metaboxes=%d columns=%d\n",
					name, def.SingularName, def.PluralName, len(def.Fields), len(def.Metaboxes), len(def.Columns))
			}
			for _, p := range problems {
				fmt.Fprintln(out, engine.ConfigNotice(p))
			}
			if len(problems) > 0 {
				return fmt.Errorf("%d definition problem(s)", len(problems))
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "hash",
		Short: "Print the content hash of each definition directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			dirs, err := metadata.FindDefinitions(cfg.Definitions.Path)
			if err != nil {
				return err
			}
			names := make([]string, 0, len(dirs))
			for name := range dirs {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				h, err := metadata.HashDirectory(dirs[name])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", name, h)
			}
			return nil
		},
	})
	return cmd
}
