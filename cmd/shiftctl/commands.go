package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"shiftpos/internal/model"
	"shiftpos/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:           "shiftctl",
		Short:         "Cashier shift control",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a.out = cmd.OutOrStdout()
			return a.open(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.String("api-url", "", "shift API base URL (SHIFTCTL_API_URL)")
	flags.String("token", "", "cashier bearer token (SHIFTCTL_TOKEN)")
	flags.String("session", defaultSessionPath(), "local session file (SHIFTCTL_SESSION_PATH)")
	flags.Duration("timeout", 5*time.Second, "backend call timeout")

	a.v.SetEnvPrefix("SHIFTCTL")
	a.v.AutomaticEnv()
	_ = a.v.BindPFlag("api_url", flags.Lookup("api-url"))
	_ = a.v.BindPFlag("token", flags.Lookup("token"))
	_ = a.v.BindPFlag("session_path", flags.Lookup("session"))
	_ = a.v.BindPFlag("timeout", flags.Lookup("timeout"))

	root.AddCommand(
		statusCmd(a),
		openCmd(a),
		cashCmd(a),
		breakCmd(a),
		closeCmd(a),
		historyCmd(a),
		logoutCmd(a),
	)
	closeAfter(a, root)
	return root
}

// closeAfter wraps every runnable command so the session file is released
// even when the command fails. PersistentPostRunE only runs on success.
func closeAfter(a *app, cmd *cobra.Command) {
	for _, c := range cmd.Commands() {
		closeAfter(a, c)
	}
	if cmd.RunE == nil {
		return
	}
	run := cmd.RunE
	cmd.RunE = func(c *cobra.Command, args []string) error {
		err := run(c, args)
		if cerr := a.close(); err == nil {
			err = cerr
		}
		return err
	}
}

func statusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current shift",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			a.printShift(a.machine.Current())
			return nil
		},
	}
}

func openCmd(a *app) *cobra.Command {
	var storeID, balance string
	cmd := &cobra.Command{
		Use:   "open",
		Short: "Open a shift",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.mutable(); err != nil {
				return err
			}
			store, err := uuid.Parse(storeID)
			if err != nil {
				return fmt.Errorf("--store: %w", err)
			}
			amount, err := parseAmount("--balance", balance)
			if err != nil {
				return err
			}
			s, err := a.machine.StartShift(cmd.Context(), store, amount)
			if err != nil {
				return err
			}
			a.printShift(s)
			return nil
		},
	}
	cmd.Flags().StringVar(&storeID, "store", "", "store id")
	cmd.Flags().StringVar(&balance, "balance", "0", "opening cash in the drawer")
	_ = cmd.MarkFlagRequired("store")
	return cmd
}

func cashCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "cash", Short: "Record a pay-in or pay-out"}
	for _, t := range []model.MovementType{model.MovementIn, model.MovementOut} {
		movement := t
		var amount, reason string
		sub := &cobra.Command{
			Use:   strings.ToLower(string(movement)),
			Short: "Record a pay-" + strings.ToLower(string(movement)),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := a.mutable(); err != nil {
					return err
				}
				value, err := parseAmount("--amount", amount)
				if err != nil {
					return err
				}
				s, err := a.machine.AddCashMovement(cmd.Context(), movement, value, reason)
				if err != nil {
					return err
				}
				a.printf("Recorded pay-%s of %s.\n", strings.ToLower(string(movement)), value.StringFixed(2))
				a.printShift(s)
				return nil
			},
		}
		sub.Flags().StringVar(&amount, "amount", "", "amount, at most two decimals")
		sub.Flags().StringVar(&reason, "reason", "", "free-text reason")
		_ = sub.MarkFlagRequired("amount")
		cmd.AddCommand(sub)
	}
	return cmd
}

func breakCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "break", Short: "Start or end a break"}

	var kind, note string
	start := &cobra.Command{
		Use:   "start",
		Short: "Pause the shift",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.mutable(); err != nil {
				return err
			}
			s, err := a.machine.StartBreak(cmd.Context(), model.BreakType(strings.ToUpper(kind)), note)
			if err != nil {
				return err
			}
			a.printShift(s)
			return nil
		},
	}
	start.Flags().StringVar(&kind, "type", string(model.BreakShort), "LUNCH, SHORT or OTHER")
	start.Flags().StringVar(&note, "note", "", "optional note")

	end := &cobra.Command{
		Use:   "end",
		Short: "End the active break and resume the shift",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.mutable(); err != nil {
				return err
			}
			s, err := a.machine.EndBreak(cmd.Context())
			if err != nil {
				return err
			}
			a.printShift(s)
			return nil
		},
	}

	cmd.AddCommand(start, end)
	return cmd
}

// closingFlags are shared by close and logout --end-shift.
type closingFlags struct {
	cash, card, digital, notes string
}

func (f *closingFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.cash, "cash", "0", "counted cash")
	cmd.Flags().StringVar(&f.card, "card", "0", "card total from the terminal")
	cmd.Flags().StringVar(&f.digital, "digital", "0", "digital payments total")
	cmd.Flags().StringVar(&f.notes, "notes", "", "closing notes")
}

func (f *closingFlags) closing() (model.ShiftClosing, error) {
	var out model.ShiftClosing
	var err error
	if out.ActualCash, err = parseAmount("--cash", f.cash); err != nil {
		return out, err
	}
	if out.ActualCard, err = parseAmount("--card", f.card); err != nil {
		return out, err
	}
	if out.ActualDigital, err = parseAmount("--digital", f.digital); err != nil {
		return out, err
	}
	out.Notes = f.notes
	return out, nil
}

func closeCmd(a *app) *cobra.Command {
	var f closingFlags
	cmd := &cobra.Command{
		Use:   "close",
		Short: "Count the drawer and close the shift",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.mutable(); err != nil {
				return err
			}
			closing, err := f.closing()
			if err != nil {
				return err
			}
			s, err := a.machine.EndShift(cmd.Context(), closing)
			if err != nil {
				return err
			}
			a.printShift(s)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func historyCmd(a *app) *cobra.Command {
	var page, limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List closed shifts, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.mutable(); err != nil {
				return err
			}
			page, limit = repository.NormalizePage(page, limit)
			p, err := a.machine.History(cmd.Context(), page, limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SHIFT\tSTARTED\tENDED\tEXPECTED\tVARIANCE")
			for _, s := range p.Shifts {
				ended, expected, variance := "-", "-", "-"
				if s.EndTime != nil {
					ended = s.EndTime.Local().Format(time.DateTime)
				}
				if s.ExpectedCash != nil {
					expected = s.ExpectedCash.StringFixed(2)
				}
				if s.Variance != nil {
					variance = s.Variance.StringFixed(2)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.ID, s.StartTime.Local().Format(time.DateTime), ended, expected, variance)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			a.printf("page %d, %d of %d shifts\n", page, len(p.Shifts), p.Total)
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&limit, "limit", 20, "page size")
	return cmd
}

// logoutCmd makes the caller choose what happens to an open shift. Keeping
// it open starts an OTHER break first; the shift never changes on its own.
func logoutCmd(a *app) *cobra.Command {
	var endShift, keepOpen bool
	var f closingFlags
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Forget the local session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			current := a.machine.Current()
			if !current.IsClosed() {
				if endShift == keepOpen {
					return errors.New("a shift is open: choose --end-shift or --keep-open")
				}
				if err := a.mutable(); err != nil {
					return err
				}
				switch {
				case endShift:
					closing, err := f.closing()
					if err != nil {
						return err
					}
					s, err := a.machine.EndShift(cmd.Context(), closing)
					if err != nil {
						return err
					}
					a.printShift(s)
				case current.Status == model.ShiftOpen:
					if _, err := a.machine.StartBreak(cmd.Context(), model.BreakOther, "logout"); err != nil {
						return err
					}
					a.printf("Shift kept open, break started. Resume with: shiftctl break end\n")
				default:
					a.printf("Shift kept open, already on break.\n")
				}
			}
			if err := a.store.Clear(); err != nil {
				return err
			}
			a.cleared = true
			a.printf("Logged out.\n")
			return nil
		},
	}
	cmd.Flags().BoolVar(&endShift, "end-shift", false, "close the open shift before logging out")
	cmd.Flags().BoolVar(&keepOpen, "keep-open", false, "leave the shift open on an OTHER break")
	f.register(cmd)
	return cmd
}

func parseAmount(flag, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %q is not a number", flag, raw)
	}
	return d, nil
}
