package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"smart0183d/internal/catalog"
)

func catalogCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List and validate the sentence catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			data := catalog.Embedded()
			label := "(built-in)"
			if file != "" {
				var err error
				data, err = os.ReadFile(file)
				if err != nil {
					return err
				}
				label = file
			}

			cat, err := catalog.Parse(data)
			if err != nil {
				return err
			}

			fmt.Printf("catalog: %s\n", label)
			fmt.Printf("sentences: %d\n", cat.Sentences())
			fmt.Printf("fields: %d\n", cat.FieldCount())
			fmt.Printf("types:\n")
			for _, info := range cat.Summary() {
				fmt.Printf("  %-5s %-12s %2d fields  %s\n", info.Type, info.Group, info.Fields, info.Description)
			}

			findings, err := catalog.Validate(data)
			if err != nil {
				return err
			}
			if len(findings) > 0 {
				fmt.Printf("findings:\n")
				for _, f := range findings {
					fmt.Printf("  %s\n", f)
				}
				return fmt.Errorf("%d catalog findings", len(findings))
			}
			fmt.Printf("findings: none\n")
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Catalog JSON file to inspect (default: built-in)")
	return cmd
}
