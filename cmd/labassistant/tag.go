package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

func tagCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Manage chemical tags",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List tags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tags, err := e.ledger.Tags(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(tags))
			for _, tag := range tags {
				swatch := lipgloss.NewStyle().Foreground(lipgloss.Color(tag.Color)).Render("■ " + tag.Color)
				rows = append(rows, []string{tag.Title, swatch, tag.ID})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Tag", "Color", "ID"}, rows))
			return nil
		},
	})

	var color string
	add := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tag, err := e.ledger.CreateTag(cmd.Context(), args[0], color)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successMsg("created tag %s (%s)", tag.Title, tag.Color))
			return nil
		},
	}
	add.Flags().StringVar(&color, "color", "", "Hex colour, e.g. #4CAF50")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "apply <chemical> <tag>",
		Short: "Tag a chemical",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return changeTag(cmd, e, args, true)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "remove <chemical> <tag>",
		Short: "Untag a chemical",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return changeTag(cmd, e, args, false)
		},
	})
	return cmd
}

func changeTag(cmd *cobra.Command, e *env, args []string, apply bool) error {
	ctx := cmd.Context()
	chem, err := e.ledger.Find(ctx, args[0])
	if err != nil {
		return err
	}
	tag, err := e.ledger.FindTag(ctx, args[1])
	if err != nil {
		return err
	}
	if apply {
		_, err = e.ledger.ApplyTag(ctx, chem.ID, tag.ID)
	} else {
		_, err = e.ledger.RemoveTag(ctx, chem.ID, tag.ID)
	}
	if err != nil {
		return err
	}
	verb := "tagged"
	if !apply {
		verb = "untagged"
	}
	fmt.Fprintln(cmd.OutOrStdout(), successMsg("%s %s %s", verb, chem.Nickname, tag.Title))
	return nil
}
