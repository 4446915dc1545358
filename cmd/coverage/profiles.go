// cmd/coverage/profiles.go
package main

import (
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/David-Botos/aadhaar-coverage/pkg/config"
)

func (a *app) profilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles [name...]",
		Short: "Print the built-in profiles as YAML",
		Long:  "Print built-in profiles as YAML. The output is a valid --profile-file starting point.",
		RunE: func(cmd *cobra.Command, args []string) error {
			builtins := config.Builtin()
			names := args
			if len(names) == 0 {
				for n := range builtins {
					names = append(names, n)
				}
				sort.Strings(names)
			}

			out := cmd.OutOrStdout()
			header := color.New(color.FgCyan, color.Bold)
			for i, name := range names {
				p, err := config.LookupProfile(name)
				if err != nil {
					return err
				}
				data, err := p.Marshal()
				if err != nil {
					return fmt.Errorf("failed to encode profile %s: %w", name, err)
				}
				if i > 0 {
					fmt.Fprintln(out, "---")
				}
				header.Fprintf(out, "# profile: %s\n", name)
				fmt.Fprint(out, string(data))
			}
			return nil
		},
	}
}
