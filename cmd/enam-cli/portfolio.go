package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"enam/internal/portfolio"
)

func (a *app) portfolioCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "portfolio",
		Short: "Show or change the portfolio that scopes corporate actions and volume pages",
	}

	open := func() (portfolio.Service, error) {
		if a.remote != "" {
			return portfolio.NewHTTPService(a.remote), nil
		}
		svc, err := portfolio.Open(a.cfg, a.logger)
		if err != nil {
			return nil, codeError(3, "%s", err)
		}
		return svc, nil
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List holdings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := open()
			if err != nil {
				return err
			}
			items, err := svc.List(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, it := range items {
				fmt.Fprintf(w, "%-12s %-40s %s\n", it.Symbol, it.Name, it.Status)
			}
			return nil
		},
	}

	add := &cobra.Command{
		Use:   "add <symbol> <name...>",
		Short: "Add a holding",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := open()
			if err != nil {
				return err
			}
			if err := svc.Add(cmd.Context(), args[0], strings.Join(args[1:], " ")); err != nil {
				if errors.Is(err, portfolio.ErrInvalid) {
					return codeError(3, "symbol and name are required")
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s\n", strings.ToUpper(args[0]))
			return nil
		},
	}

	remove := &cobra.Command{
		Use:   "remove <symbol>",
		Short: "Remove a holding",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := open()
			if err != nil {
				return err
			}
			if err := svc.Remove(cmd.Context(), args[0]); err != nil {
				if errors.Is(err, portfolio.ErrNotFound) {
					return codeError(2, "%s is not in the portfolio", args[0])
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", strings.ToUpper(args[0]))
			return nil
		},
	}

	apply := &cobra.Command{
		Use:   "apply",
		Short: "Apply pending portfolio changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := open()
			if err != nil {
				return err
			}
			if err := svc.Apply(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "applied")
			return nil
		},
	}

	cmd.AddCommand(list, add, remove, apply)
	return cmd
}
