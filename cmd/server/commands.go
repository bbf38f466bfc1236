package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/warp/match-engine/api"
	"github.com/warp/match-engine/engine"
	"github.com/warp/match-engine/factory"
	"github.com/warp/match-engine/pricing"
)

// =============================================================================
// QUOTE
// =============================================================================

func newQuoteCommand(opts *rootOptions) *cobra.Command {
	var (
		area      string
		fixtures  []string
		hours     string
		frequency string
	)

	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Price a home without touching the store",
		Long: `Compute the hours a home needs and price a subscription for it.

Requested hours below the computed minimum are raised to it, as for a new
subscription.`,
		Example: `  match-engine quote --area 85 --fixture bathroom=1 --fixture kitchen=1 --frequency weekly`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rates := factory.DefaultRates()
			if opts.cfg.Pricing.RatesFile != "" {
				loaded, err := factory.NewRateFactory().LoadRates(opts.cfg.Pricing.RatesFile)
				if err != nil {
					return err
				}
				rates = *loaded
			}
			q, err := quote(area, fixtures, hours, frequency, rates)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), q)
		},
	}

	cmd.Flags().StringVar(&area, "area", "0", "floor area in m²")
	cmd.Flags().StringArrayVar(&fixtures, "fixture", nil, "fixture count as name=n, repeatable ("+strings.Join(factory.Fixtures(), ", ")+")")
	cmd.Flags().StringVar(&hours, "hours", "0", "requested hours per session")
	cmd.Flags().StringVar(&frequency, "frequency", string(pricing.FrequencyWeekly), "weekly | biweekly | fourweekly")
	return cmd
}

type quoteOutput struct {
	MinimumHours decimal.Decimal `json:"minimum_hours"`
	api.QuoteDTO
}

func quote(areaStr string, fixtureArgs []string, hoursStr, frequency string, rates pricing.RateTable) (quoteOutput, error) {
	area, err := decimal.NewFromString(areaStr)
	if err != nil {
		return quoteOutput{}, fmt.Errorf("invalid --area %q: %w", areaStr, err)
	}
	hours, err := decimal.NewFromString(hoursStr)
	if err != nil {
		return quoteOutput{}, fmt.Errorf("invalid --hours %q: %w", hoursStr, err)
	}
	fixtures, err := parseFixtures(fixtureArgs)
	if err != nil {
		return quoteOutput{}, err
	}
	freq, err := pricing.ParseFrequency(frequency)
	if err != nil {
		return quoteOutput{}, err
	}

	minimum, err := pricing.ComputeHours(area, fixtures, rates)
	if err != nil {
		return quoteOutput{}, err
	}
	price, err := pricing.ComputeSubscriptionPrice(pricing.PriceRequest{
		Hours:        hours,
		Frequency:    freq,
		MinimumHours: minimum,
		Mode:         pricing.RaiseToMinimum,
	}, rates)
	if err != nil {
		return quoteOutput{}, err
	}

	return quoteOutput{
		MinimumHours: minimum,
		QuoteDTO: api.QuoteDTO{
			Hours:                price.Hours,
			PricePerSessionCents: price.PricePerSessionCents,
			SessionsPerCycle:     price.SessionsPerCycle,
			BundleAmountCents:    price.BundleAmountCents,
			Currency:             rates.Currency,
		},
	}, nil
}

func parseFixtures(args []string) (pricing.FixtureCounts, error) {
	out := make(pricing.FixtureCounts, len(args))
	for _, arg := range args {
		name, count, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --fixture %q, want name=n", arg)
		}
		n, err := strconv.Atoi(count)
		if err != nil {
			return nil, fmt.Errorf("invalid --fixture %q: %w", arg, err)
		}
		out[pricing.Fixture(strings.TrimSpace(name))] += n
	}
	return out, nil
}

// =============================================================================
// ENGINE OPERATIONS
// =============================================================================

// workCommand runs fn against a freshly wired app, then waits for the
// notifications it produced before the process exits.
func workCommand(opts *rootOptions, cmd *cobra.Command, args []string, fn func(ctx context.Context, a *app, ref engine.WorkRef) (any, []engine.Intent, error)) error {
	ref, err := parseWorkRef(args[0], args[1])
	if err != nil {
		return err
	}
	a, err := newApp(opts.cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	out, intents, err := fn(ctx, a, ref)
	if err != nil {
		return fmt.Errorf("%w (%s)", err, engine.KindOf(err))
	}
	if len(intents) > 0 {
		report := a.dispatcher.Dispatch(ctx, intents).Wait()
		a.logger.Info("notifications delivered", "sent", report.Sent, "failed", report.Failed)
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func parseWorkRef(kind, id string) (engine.WorkRef, error) {
	var ref engine.WorkRef
	switch strings.TrimSuffix(kind, "s") {
	case string(engine.WorkRequest):
		ref = engine.RequestRef(id)
	case string(engine.WorkJob):
		ref = engine.JobRef(id)
	default:
		return engine.WorkRef{}, fmt.Errorf("unknown work kind %q, want request or job", kind)
	}
	return ref, ref.Validate()
}

func newApproveCommand(opts *rootOptions) *cobra.Command {
	var providerID string

	cmd := &cobra.Command{
		Use:   "approve <request|job> <id>",
		Short: "Accept the open assignment on behalf of its provider",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return workCommand(opts, cmd, args, func(ctx context.Context, a *app, ref engine.WorkRef) (any, []engine.Intent, error) {
				res, err := a.service.ApproveAssignment(ctx, ref, engine.ProviderID(providerID))
				if err != nil {
					return nil, nil, err
				}
				return api.NewApproveResponse(res), res.Notifications, nil
			})
		},
	}

	cmd.Flags().StringVar(&providerID, "provider", "", "acting provider id")
	_ = cmd.MarkFlagRequired("provider")
	return cmd
}

func newRejectCommand(opts *rootOptions) *cobra.Command {
	var providerID, reason string

	cmd := &cobra.Command{
		Use:   "reject <request|job> <id>",
		Short: "Decline the open assignment and look for a replacement",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return workCommand(opts, cmd, args, func(ctx context.Context, a *app, ref engine.WorkRef) (any, []engine.Intent, error) {
				res, err := a.service.RejectAssignment(ctx, ref, engine.ProviderID(providerID), reason)
				if err != nil {
					return nil, nil, err
				}
				return api.NewRejectResponse(res), res.Notifications, nil
			})
		},
	}

	cmd.Flags().StringVar(&providerID, "provider", "", "acting provider id")
	cmd.Flags().StringVar(&reason, "reason", "", "rejection reason")
	_ = cmd.MarkFlagRequired("provider")
	return cmd
}

func newAssignCommand(opts *rootOptions) *cobra.Command {
	var (
		providerID    string
		performedBy   string
		allowExcluded bool
	)

	cmd := &cobra.Command{
		Use:   "assign <request|job> <id>",
		Short: "Offer the work to a chosen provider",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return workCommand(opts, cmd, args, func(ctx context.Context, a *app, ref engine.WorkRef) (any, []engine.Intent, error) {
				res, err := a.service.AssignManually(ctx, ref, engine.ProviderID(providerID), performedBy, allowExcluded)
				if err != nil {
					return nil, nil, err
				}
				return api.NewManualAssignResponse(res), res.Notifications, nil
			})
		},
	}

	cmd.Flags().StringVar(&providerID, "provider", "", "provider to assign")
	cmd.Flags().StringVar(&performedBy, "by", defaultOperator(), "admin performing the assignment")
	cmd.Flags().BoolVar(&allowExcluded, "allow-excluded", false, "allow a provider who already rejected")
	_ = cmd.MarkFlagRequired("provider")
	return cmd
}

func newHistoryCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history <request|job> <id>",
		Short: "Print the assignment history, oldest first",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return workCommand(opts, cmd, args, func(ctx context.Context, a *app, ref engine.WorkRef) (any, []engine.Intent, error) {
				history, err := a.service.ListAssignments(ctx, ref)
				if err != nil {
					return nil, nil, err
				}
				return api.ToAssignmentDTOs(history), nil, nil
			})
		},
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func defaultOperator() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "admin"
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
