package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kingrea/lab-assistant/internal/inventory"
)

const dateLayout = "2006-01-02"

func chemCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "chem",
		Aliases: []string{"chemical"},
		Short:   "Track chemical stock",
	}
	cmd.AddCommand(chemListCmd(e))
	cmd.AddCommand(chemAddCmd(e))
	cmd.AddCommand(chemConsumeCmd(e))
	cmd.AddCommand(chemExpiringCmd(e))
	cmd.AddCommand(chemDeleteCmd(e))
	return cmd
}

func chemListCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List chemicals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			chems, err := e.ledger.List(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(chems) == 0 {
				fmt.Fprintln(out, mutedStyle.Render("No chemicals yet."))
				return nil
			}
			fmt.Fprintln(out, chemicalTable(chems, time.Now(), e.cfg.ExpiryWarning()))
			return nil
		},
	}
}

func chemAddCmd(e *env) *cobra.Command {
	var (
		units      string
		maxAmount  float64
		current    float64
		expiry     string
		notes      string
		components []string
		tags       []string
	)
	cmd := &cobra.Command{
		Use:   "add <nickname>",
		Short: "Add a chemical or mix one from existing stock",
		Long: `Add a chemical. Each --component chemical=amount is deducted from that
chemical's stock in the same transaction; nothing changes if any is short.`,
		Example: `  labassistant chem add "DD-X stock" --max 1000
  labassistant chem add "DD-X 1+4" --max 500 --component "DD-X stock=100" --component water=400`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			unit, err := inventory.ParseUnit(units)
			if err != nil {
				return err
			}
			chem := inventory.Chemical{
				Nickname: args[0],
				Units:    unit,
				Max:      maxAmount,
				Current:  maxAmount,
				Notes:    notes,
			}
			if cmd.Flags().Changed("current") {
				chem.Current = current
			}
			if expiry != "" {
				at, err := time.ParseInLocation(dateLayout, expiry, time.Local)
				if err != nil {
					return fmt.Errorf("--expiry: want YYYY-MM-DD: %w", err)
				}
				chem.Expiry = &at
			}
			for _, ref := range tags {
				tag, err := e.ledger.FindTag(ctx, ref)
				if err != nil {
					return err
				}
				chem.Tags = append(chem.Tags, tag)
			}
			parts, err := parseComponents(cmd, e, components)
			if err != nil {
				return err
			}
			added, err := e.ledger.Add(ctx, chem, parts...)
			if err != nil {
				return err
			}
			if len(parts) > 0 {
				e.journal.Info("mixed %s from %d components", added.Nickname, len(parts))
			}
			fmt.Fprintln(cmd.OutOrStdout(), successMsg("added %s (%s %s) as %s", added.Nickname, amount(added.Current), added.Units, added.ID))
			return nil
		},
	}
	cmd.Flags().StringVar(&units, "units", string(inventory.UnitMillilitre), "Units: "+unitNames())
	cmd.Flags().Float64Var(&maxAmount, "max", 0, "Container capacity")
	cmd.Flags().Float64Var(&current, "current", 0, "Amount on hand (default: --max)")
	cmd.Flags().StringVar(&expiry, "expiry", "", "Expiry date, YYYY-MM-DD")
	cmd.Flags().StringVar(&notes, "notes", "", "Free-form notes")
	cmd.Flags().StringArrayVar(&components, "component", nil, "Mixture component as chemical=amount (repeatable)")
	cmd.Flags().StringArrayVar(&tags, "tag", nil, "Tag title or ID (repeatable)")
	_ = cmd.MarkFlagRequired("max")
	return cmd
}

func parseComponents(cmd *cobra.Command, e *env, raw []string) ([]inventory.Component, error) {
	parts := make([]inventory.Component, 0, len(raw))
	for _, value := range raw {
		idx := strings.LastIndex(value, "=")
		if idx <= 0 {
			return nil, fmt.Errorf("--component %q: want chemical=amount", value)
		}
		qty, err := strconv.ParseFloat(strings.TrimSpace(value[idx+1:]), 64)
		if err != nil {
			return nil, fmt.Errorf("--component %q: %w", value, err)
		}
		chem, err := e.ledger.Find(cmd.Context(), value[:idx])
		if err != nil {
			return nil, err
		}
		parts = append(parts, inventory.Component{ChemicalID: chem.ID, Amount: qty})
	}
	return parts, nil
}

func chemConsumeCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "consume <chemical> <amount>",
		Short: "Record usage of a chemical",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("amount %q: %w", args[1], err)
			}
			chem, err := e.ledger.Find(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			chem, err = e.ledger.Consume(cmd.Context(), chem.ID, qty)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successMsg("%s: %s of %s %s left", chem.Nickname, amount(chem.Current), amount(chem.Max), chem.Units))
			return nil
		},
	}
}

func chemExpiringCmd(e *env) *cobra.Command {
	var within time.Duration
	cmd := &cobra.Command{
		Use:   "expiring",
		Short: "List expired chemicals and those expiring soon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("within") {
				within = e.cfg.ExpiryWarning()
			}
			now := time.Now()
			expired, err := e.ledger.Expired(cmd.Context(), now)
			if err != nil {
				return err
			}
			soon, err := e.ledger.ExpiringWithin(cmd.Context(), now, within)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(expired)+len(soon) == 0 {
				fmt.Fprintln(out, successMsg("nothing expires within %s", within))
				return nil
			}
			fmt.Fprintln(out, chemicalTable(append(expired, soon...), now, within))
			return nil
		},
	}
	cmd.Flags().DurationVar(&within, "within", 0, "Warning window (default: expiry_warning from config)")
	return cmd
}

func chemDeleteCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <chemical>",
		Short: "Remove a chemical",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			chem, err := e.ledger.Find(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := e.ledger.Delete(cmd.Context(), chem.ID); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successMsg("deleted %s", chem.Nickname))
			return nil
		},
	}
}

func chemicalTable(chems []inventory.Chemical, now time.Time, window time.Duration) string {
	rows := make([][]string, 0, len(chems))
	for _, chem := range chems {
		expiry := "-"
		if chem.Expiry != nil {
			expiry = chem.Expiry.Format(dateLayout)
		}
		status := ""
		switch {
		case chem.Expired(now):
			status = errorStyle.Render("expired")
		case chem.ExpiresWithin(now, window):
			status = warnStyle.Render("expiring")
		}
		titles := make([]string, len(chem.Tags))
		for i, tag := range chem.Tags {
			titles[i] = tag.Title
		}
		rows = append(rows, []string{
			chem.Nickname,
			fmt.Sprintf("%s / %s %s", amount(chem.Current), amount(chem.Max), chem.Units),
			fmt.Sprintf("%d%%", int(chem.Fraction()*100+0.5)),
			expiry,
			status,
			strings.Join(titles, ", "),
			chem.ID,
		})
	}
	return renderTable([]string{"Chemical", "Stock", "Left", "Expiry", "", "Tags", "ID"}, rows)
}

func amount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func unitNames() string {
	units := inventory.Units()
	names := make([]string, len(units))
	for i, u := range units {
		names[i] = string(u)
	}
	return strings.Join(names, ", ")
}
