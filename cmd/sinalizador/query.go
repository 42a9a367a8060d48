package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"

	"github.com/lewtec/sinalizador/internal/domain"
)

func printRow(w io.Writer, columns ...string) {
	fmt.Fprintln(w, strings.Join(columns, "\t"))
}

func cursor(value *string) string {
	if value == nil {
		return "-"
	}
	return *value
}

func sortedKeys[V any](m map[string]V) []string {
	ret := make([]string, 0, len(m))
	for k := range m {
		ret = append(ret, k)
	}
	sort.Strings(ret)
	return ret
}

var queryCmd = &cobra.Command{
	Use:   "query [email] [image]",
	Short: "Queries the stored annotations",
	Long: `Print what is stored, as tab separated rows.

Without arguments every registered user is listed. With an email the images
that user annotated are listed, and with an email and an image every box of
that image is printed with its flag, index, coordinates and referring
expression.`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dump, err := cmd.Flags().GetBool("dump")
		if err != nil {
			return err
		}
		s, closeStore, err := openStore(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer closeStore()
		out := cmd.OutOrStdout()

		switch len(args) {
		case 0:
			users := s.Users()
			if dump {
				spew.Fdump(out, users)
				return nil
			}
			printRow(out, "email", "name", "registration_date", "last_annotated_image", "last_selected_flag")
			for _, user := range users {
				printRow(out, user.Email, user.Name, user.RegistrationDate, cursor(user.LastAnnotatedImage), cursor(user.LastSelectedFlag))
			}
		case 1:
			images := s.Annotations()[args[0]]
			if dump {
				spew.Fdump(out, images)
				return nil
			}
			printRow(out, "image", "flags", "boxes", "last_updated")
			for _, name := range sortedKeys(images) {
				image := images[name]
				boxes := 0
				for _, flag := range image.Flags {
					boxes += len(flag.Boxes)
				}
				printRow(out, name, fmt.Sprint(len(image.Flags)), fmt.Sprint(boxes), image.LastUpdated)
			}
		case 2:
			image := s.GetImageAnnotations(args[0], args[1])
			if dump {
				spew.Fdump(out, image)
				return nil
			}
			printRow(out, "flag", "index", "coordinates", "ref_exp")
			for _, flag := range sortedKeys(image.Flags) {
				for i, box := range image.Flags[flag].Boxes {
					printRow(out, flag, fmt.Sprint(i), formatCoordinates(box.Coordinates), box.RefExp)
				}
			}
		}
		return nil
	},
}

func formatCoordinates(c domain.Coordinates) string {
	parts := make([]string, len(c))
	for i, v := range c {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ",")
}

func init() {
	rootCmd.AddCommand(queryCmd)

	queryCmd.Flags().BoolP("dump", "d", false, "Dump the raw structures instead of rows")
}
