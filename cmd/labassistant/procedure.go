package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kingrea/lab-assistant/internal/procedure"
)

func procedureCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "procedure",
		Aliases: []string{"proc"},
		Short:   "Manage procedures",
	}
	cmd.AddCommand(procedureListCmd(e))
	cmd.AddCommand(procedureShowCmd(e))
	cmd.AddCommand(procedureValidateCmd())
	cmd.AddCommand(procedureImportCmd(e))
	cmd.AddCommand(procedureExportCmd(e))
	cmd.AddCommand(procedureDeleteCmd(e))
	return cmd
}

func procedureListCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List presets, saved procedures and procedure files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := e.library.List(cmd.Context())
			if err != nil && len(entries) == 0 {
				return err
			}
			out := cmd.OutOrStdout()
			if err != nil {
				fmt.Fprintln(out, warnMsg("some procedure files were skipped: %v", err))
			}
			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				p := entry.Procedure
				saved := ""
				if entry.Saved && entry.Source != procedure.SourceSaved {
					saved = "saved"
				}
				rows = append(rows, []string{p.ID, p.Nickname, strconv.Itoa(len(p.Steps)), estimate(p), string(entry.Source), saved})
			}
			fmt.Fprintln(out, renderTable([]string{"ID", "Nickname", "Steps", "Length", "Source", ""}, rows))
			return nil
		},
	}
}

func procedureShowCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "show <procedure>",
		Short: "Show the steps of a procedure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := e.library.Find(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, keyValues("",
				kv("Nickname", boldStyle.Render(p.Nickname)),
				kv("ID", p.ID),
				kv("Length", estimate(p)),
				kv("Notes", p.Notes),
			))
			rows := make([][]string, 0, len(p.Steps))
			for _, step := range p.SortedSteps() {
				length := "-"
				if step.Duration != nil {
					length = clock(*step.Duration)
				}
				auto := ""
				if step.AutoAdvance {
					auto = "auto"
				}
				sub := "-"
				if step.HasSubstep() {
					sub = fmt.Sprintf("%s %s/%s", step.Substep.Title, clock(step.Substep.Active), clock(step.Substep.Rest))
				}
				rows = append(rows, []string{strconv.Itoa(step.Order + 1), step.Title, length, auto, sub, strings.Join(step.Chemicals, ", ")})
			}
			fmt.Fprintln(out, renderTable([]string{"#", "Step", "Timer", "Advance", "Substep", "Chemicals"}, rows))
			return nil
		},
	}
}

func procedureValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>...",
		Short: "Check procedure files and report every problem",
		Args:  cobra.MinimumNArgs(1),
		// Validation only reads the given files.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			failed := 0
			for _, path := range args {
				report, err := procedure.ValidateFile(path)
				if err != nil {
					failed++
					fmt.Fprintln(out, errorMsg("%s: %v", path, err))
					continue
				}
				if report.IsValid() {
					fmt.Fprintln(out, successMsg("%s: %s (%d steps)", path, report.Nickname, report.Steps))
					continue
				}
				failed++
				fmt.Fprintln(out, errorMsg("%s: %d problems", path, len(report.Errors)))
				for _, problem := range report.Errors {
					fmt.Fprintln(out, "  - "+problem.Error())
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d procedure files invalid", failed, len(args))
			}
			return nil
		},
	}
}

func procedureImportCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Save a procedure file into the library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			p, existing, err := e.library.Import(cmd.Context(), f)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if existing {
				fmt.Fprintln(out, warnMsg("%s is already saved as %s", p.Nickname, p.ID))
				return nil
			}
			e.journal.Info("imported %s from %s", p.Nickname, filepath.Base(args[0]))
			fmt.Fprintln(out, successMsg("imported %s as %s", p.Nickname, p.ID))
			return nil
		},
	}
}

func procedureExportCmd(e *env) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export <procedure>",
		Short: "Write a procedure as YAML",
		Long:  "Write a procedure as YAML. Without --out the file goes to the exports directory; --out - writes to stdout.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "-" {
				return e.library.Export(cmd.Context(), args[0], cmd.OutOrStdout())
			}
			p, err := e.library.Find(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			path := output
			if path == "" {
				path = filepath.Join(e.cfg.ExportsDir(), slug(p.Nickname)+".yaml")
			}
			f, err := os.Create(path)
			if err != nil {
				return err
			}
			if err := procedure.Export(f, p); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successMsg("wrote %s", path))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "out", "o", "", "Output path, or - for stdout")
	return cmd
}

func procedureDeleteCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved procedure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.library.Delete(cmd.Context(), args[0]); err != nil {
				if errors.Is(err, procedure.ErrNotFound) {
					return fmt.Errorf("%w (presets and files cannot be deleted)", err)
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successMsg("deleted %s", args[0]))
			return nil
		},
	}
}

func estimate(p procedure.Procedure) string {
	total := p.EstimatedDuration()
	if total == nil {
		return "untimed"
	}
	return "~" + clock(*total)
}

// slug lowercases s and keeps letters and digits, joining the rest with '-'.
func slug(s string) string {
	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
			dash = false
			continue
		}
		if !dash && sb.Len() > 0 {
			sb.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(sb.String(), "-")
	if out == "" {
		return "procedure"
	}
	return out
}
