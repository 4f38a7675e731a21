package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/awaistahir/wattplan/internal/advisor"
	"github.com/awaistahir/wattplan/internal/app"
	"github.com/awaistahir/wattplan/internal/apperr"
	"github.com/awaistahir/wattplan/internal/catalog"
	"github.com/awaistahir/wattplan/internal/config"
	"github.com/awaistahir/wattplan/internal/engine"
	"github.com/awaistahir/wattplan/internal/household"
	"github.com/awaistahir/wattplan/internal/logger"
	"github.com/awaistahir/wattplan/internal/onboarding"
)

var (
	cfgFile string
	userID  string

	svc      *app.App
	closeLog func() error
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "wattplan",
		Short: "WattPlan - Plan appliance usage to hit a monthly electricity budget",
		Long: `WattPlan turns your appliances' usage windows into a monthly bill
projection and a weekly schedule that meets your target bill.`,
		SilenceUsage:       true,
		PersistentPreRunE:  setup,
		PersistentPostRunE: teardown,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.wattplan/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", "default", "user the command acts on")

	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(applianceCmd())
	rootCmd.AddCommand(catalogCmd())
	rootCmd.AddCommand(targetCmd())
	rootCmd.AddCommand(planCmd())
	rootCmd.AddCommand(adjustCmd())
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(budgetCmd())
	rootCmd.AddCommand(estimateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", apperr.As(err).Message)
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	log, closer, err := logger.Init(cfg.Log)
	if err != nil {
		return err
	}
	closeLog = closer

	svc, err = app.Open(cmd.Context(), cfg, log)
	return err
}

func teardown(cmd *cobra.Command, args []string) error {
	if svc != nil {
		svc.Close()
	}
	if closeLog != nil {
		return closeLog()
	}
	return nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func ctx(cmd *cobra.Command) context.Context {
	if c := cmd.Context(); c != nil {
		return c
	}
	return context.Background()
}

func initCmd() *cobra.Command {
	var bill, kwh, target float64

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Record last month's bill and your target",
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := svc.Household.UpdateProfile(ctx(cmd), userID, household.ProfileInput{
				LastMonthBill: bill,
				LastMonthKWh:  kwh,
			})
			if err != nil {
				return err
			}

			fmt.Printf("✓ Saved billing profile for %s\n", profile.UserID)
			fmt.Printf("  Last month: %.2f (%.0f kWh)\n", profile.LastMonthBill, profile.LastMonthKWh)

			if target > 0 {
				_, err := svc.Advisor.ChangeTarget(ctx(cmd), userID, target)
				var appErr *apperr.AppError
				if errors.As(err, &appErr) && appErr.Field == "appliances" {
					fmt.Printf("  Target: %.2f\n", target)
				} else if err != nil {
					return err
				} else {
					fmt.Printf("  Target: %.2f (plan generated)\n", target)
				}
			}

			fmt.Println("\nNext steps:")
			fmt.Println("  1. Add appliances: wattplan appliance add")
			fmt.Println("  2. Generate plan: wattplan plan")
			return nil
		},
	}

	cmd.Flags().Float64VarP(&bill, "bill", "b", 0, "Last month's bill")
	cmd.Flags().Float64VarP(&kwh, "kwh", "k", 0, "Last month's consumption in kWh")
	cmd.Flags().Float64VarP(&target, "target", "t", 0, "Target monthly bill")

	return cmd
}

func applianceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "appliance",
		Short: "Manage appliances",
	}

	cmd.AddCommand(applianceAddCmd())
	cmd.AddCommand(applianceListCmd())
	cmd.AddCommand(applianceRemoveCmd())

	return cmd
}

func applianceAddCmd() *cobra.Command {
	var in household.ApplianceInput

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a new appliance",
		Long: `Add a new appliance. Watt and usage window default to the catalog
values when the name matches a catalog entry.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := svc.Household.AddAppliance(ctx(cmd), userID, in)
			if err != nil {
				return err
			}

			fmt.Printf("✓ Added appliance: %s\n", a.Name)
			fmt.Printf("  ID: %s\n", a.ID)
			fmt.Printf("  Window: %s-%s (%.1fh peak, %.1fh off-peak)\n", a.StartTime, a.EndTime, a.PeakUsageHours, a.OffPeakUsageHours)
			fmt.Printf("  Monthly cost: %.2f\n", svc.Advisor.Rates().CurrentCost(*a))
			return nil
		},
	}

	cmd.Flags().StringVarP(&in.Name, "name", "n", "", "Appliance name (required)")
	cmd.Flags().IntVarP(&in.Quantity, "quantity", "q", 1, "Number of units")
	cmd.Flags().Float64VarP(&in.Watt, "watt", "w", 0, "Rated power in watts")
	cmd.Flags().StringVar(&in.StartTime, "start", "", "Usage start time (HH:MM)")
	cmd.Flags().StringVar(&in.EndTime, "end", "", "Usage end time (HH:MM)")

	cmd.MarkFlagRequired("name")

	return cmd
}

func applianceListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all appliances",
		RunE: func(cmd *cobra.Command, args []string) error {
			appliances, err := svc.Household.ListAppliances(ctx(cmd), userID)
			if err != nil {
				return err
			}

			if len(appliances) == 0 {
				fmt.Println("No appliances configured")
				return nil
			}

			rates := svc.Advisor.Rates()
			fmt.Printf("%-24s %-36s %4s %7s %-11s %6s %6s %9s\n", "NAME", "ID", "QTY", "WATT", "WINDOW", "PEAK", "OFF", "COST")
			fmt.Println(strings.Repeat("-", 112))

			total := 0.0
			for _, a := range appliances {
				cost := rates.CurrentCost(a)
				total += cost
				fmt.Printf("%-24s %-36s %4d %7.0f %-11s %6.1f %6.1f %9.2f\n",
					a.Name, a.ID, a.Quantity, a.Watt, a.StartTime+"-"+a.EndTime, a.PeakUsageHours, a.OffPeakUsageHours, cost)
			}
			fmt.Printf("\nCurrent monthly bill: %.2f\n", total)

			return nil
		},
	}
}

func applianceRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove an appliance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := svc.Household.DeleteAppliance(ctx(cmd), userID, args[0]); err != nil {
				return err
			}
			fmt.Printf("✓ Removed appliance %s\n", args[0])
			return nil
		},
	}
}

func catalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List known appliance types and their defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("%-24s %7s %-11s %6s\n", "NAME", "WATT", "WINDOW", "HOURS")
			for _, e := range catalog.List() {
				fmt.Printf("%-24s %7.0f %-11s %6.1f\n", e.Name, e.Watt, e.Start+"-"+e.End, e.DefaultHours().DailyUsage)
			}
			return nil
		},
	}
}

func targetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "target <amount>",
		Short: "Set the target monthly bill and regenerate the plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return apperr.Validation("target_bill", "target must be a number")
			}
			res, err := svc.Advisor.ChangeTarget(ctx(cmd), userID, target)
			return printResult(res, err)
		},
	}
}

func planCmd() *cobra.Command {
	var show bool

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Generate the calculated plan for your appliances and target",
		RunE: func(cmd *cobra.Command, args []string) error {
			if show {
				plan, err := svc.Advisor.Current(ctx(cmd), userID)
				if err != nil {
					return err
				}
				return printJSON(plan)
			}
			res, err := svc.Advisor.Generate(ctx(cmd), userID)
			return printResult(res, err)
		},
	}

	cmd.Flags().BoolVarP(&show, "show", "s", false, "Show the stored plan instead of regenerating")

	return cmd
}

func adjustCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "adjust <request>",
		Short: "Ask the assistant to adjust your plan",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := svc.Advisor.Adjust(ctx(cmd), userID, strings.Join(args, " "))
			return printResult(res, err)
		},
	}
}

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Adjust your plan interactively",
		Long: `Adjust your plan one request per line. "target <amount>" changes the
target and starts over from a fresh plan; "quit" exits.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := ctx(cmd)
			profile, err := svc.Household.Profile(c, userID)
			if err != nil {
				return err
			}
			conv, err := startConversation(c, profile.TargetBill)
			if err != nil {
				return err
			}
			printProgress(conv.Progress())

			in := bufio.NewScanner(os.Stdin)
			for fmt.Print("> "); in.Scan(); fmt.Print("> ") {
				line := strings.TrimSpace(in.Text())
				switch {
				case line == "":
					continue
				case line == "quit" || line == "exit":
					return nil
				case strings.HasPrefix(line, "target "):
					target, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(line, "target ")), 64)
					if err != nil {
						fmt.Println("Target must be a number")
						continue
					}
					res, err := svc.Advisor.ChangeTarget(c, userID, target)
					if res == nil {
						fmt.Println(apperr.As(err).Message)
						continue
					}
					conv.Reset(target, res.Plan.ProjectedBill)
					printProgress(conv.Progress())
					continue
				}

				res, err := svc.Advisor.Adjust(c, userID, line)
				if res == nil {
					fmt.Println(apperr.As(err).Message)
					continue
				}
				if res.Notice != "" {
					fmt.Println(res.Notice)
				}
				if res.Plan.Source == engine.SourceAssistant {
					delta := conv.Accept(res.Plan)
					fmt.Println(res.Plan.Explanation)
					fmt.Printf("%s: %.2f\n", delta.Label, abs(delta.Amount))
				}
				if err != nil {
					fmt.Println(apperr.As(err).Message)
				}
				printProgress(conv.Progress())
			}
			return in.Err()
		},
	}
}

// startConversation anchors a conversation at the stored plan, or at a
// freshly generated one
func startConversation(c context.Context, target float64) (*engine.Conversation, error) {
	plan, err := svc.Advisor.Current(c, userID)
	if apperr.IsType(err, apperr.TypeNotFound) {
		res, genErr := svc.Advisor.Generate(c, userID)
		if res == nil {
			return nil, genErr
		}
		plan, err = res.Plan, nil
	}
	if err != nil {
		return nil, err
	}
	return engine.NewConversation(target, plan.ProjectedBill), nil
}

func printProgress(p engine.BudgetProgress) {
	fmt.Printf("[bill %.2f / target %.2f, %.1f%%]\n", p.DisplayedBill, p.TargetBill, p.ProgressPercent)
}

func budgetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "budget",
		Short: "Show progress against your target bill",
		RunE: func(cmd *cobra.Command, args []string) error {
			progress, err := svc.Advisor.Budget(ctx(cmd), userID)
			if err != nil {
				return err
			}

			state := "over budget"
			if progress.UnderBudget {
				state = "under budget"
			}
			fmt.Printf("Projected bill: %.2f\n", progress.DisplayedBill)
			fmt.Printf("Target bill:    %.2f\n", progress.TargetBill)
			fmt.Printf("Progress:       %.1f%% (%s)\n", progress.ProgressPercent, state)
			return nil
		},
	}
}

func estimateCmd() *cobra.Command {
	var kwh float64
	var devices []string

	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate daily usage per appliance from last month's consumption",
		Long: `Estimate daily usage per appliance. Devices are given as
NAME[:QUANTITY[:WATT]]; missing watts come from the catalog.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed := make([]onboarding.Device, 0, len(devices))
			for _, d := range devices {
				dev, err := parseDevice(d)
				if err != nil {
					return err
				}
				parsed = append(parsed, dev)
			}
			if len(parsed) == 0 {
				return apperr.Validation("device", "at least one --device is required")
			}
			return printJSON(svc.Estimator.Estimate(ctx(cmd), kwh, parsed))
		},
	}

	cmd.Flags().Float64VarP(&kwh, "kwh", "k", 0, "Last month's consumption in kWh")
	cmd.Flags().StringArrayVarP(&devices, "device", "d", nil, "Device as NAME[:QUANTITY[:WATT]] (repeatable)")

	return cmd
}

func parseDevice(s string) (onboarding.Device, error) {
	parts := strings.Split(s, ":")
	dev := onboarding.Device{Name: strings.TrimSpace(parts[0]), Quantity: 1}
	if dev.Name == "" {
		return dev, apperr.Validation("device", "device name is required")
	}
	if len(parts) > 1 {
		q, err := strconv.Atoi(parts[1])
		if err != nil || q < household.MinQuantity || q > household.MaxQuantity {
			return dev, apperr.Validation("device", fmt.Sprintf("invalid quantity in %q", s))
		}
		dev.Quantity = q
	}
	if len(parts) > 2 {
		w, err := strconv.ParseFloat(parts[2], 64)
		if err != nil || w < household.MinWatt || w > household.MaxWatt {
			return dev, apperr.Validation("device", fmt.Sprintf("invalid watt in %q", s))
		}
		dev.Watt = w
	} else if e, ok := catalog.Lookup(dev.Name); ok {
		dev.Watt = e.Watt
	}
	return dev, nil
}

// printResult prints the plan even when saving it failed
func printResult(res *advisor.Result, err error) error {
	if res == nil {
		return err
	}
	if res.Notice != "" {
		fmt.Fprintln(os.Stderr, "Note:", res.Notice)
	}
	if res.Delta != nil {
		fmt.Fprintf(os.Stderr, "%s: %.2f\n", res.Delta.Label, abs(res.Delta.Amount))
	}
	if perr := printJSON(res.Plan); perr != nil {
		return perr
	}
	return err
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
