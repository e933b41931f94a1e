package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/priceoptima/internal/display"
	"github.com/sells-group/priceoptima/internal/form"
	"github.com/sells-group/priceoptima/internal/model"
	"github.com/sells-group/priceoptima/internal/pricing"
	"github.com/sells-group/priceoptima/pkg/optima"
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Get predicted demand and a recommended price",
	Long: `Validate a pricing scenario and send it to the prediction service.

With field flags the scenario is submitted once. With no field flags, or with
--interactive, each field is prompted for; fields that fail validation are
asked for again, and a failed request can be retried.

Examples:
  # One-shot
  predict --price 49.99 --stock-level 1200 --day-of-week 6 --is-weekend 1 --month 12

  # Prompt for everything
  predict

  # Machine-readable result
  predict --price 10 --stock-level 0 --day-of-week 0 --is-weekend 0 --month 1 --format json`,
	RunE: runPredict,
}

func init() {
	addFieldFlags(predictCmd)
	f := predictCmd.Flags()
	f.Bool("interactive", false, "prompt for fields even when flags are given")
	f.String("format", "", "output format: text, json or yaml (overrides config)")

	rootCmd.AddCommand(predictCmd)
}

func runPredict(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := applyFormat(cmd); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	state := form.NewState()
	values := fieldValues(cmd)
	if err := state.Fill(values); err != nil {
		return err
	}

	r := display.New(cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg.Display.CurrencySymbol, cfg.Display.Format)
	ctrl := newController(state)
	ctrl.OnChange(r.Observe)

	interactive, _ := cmd.Flags().GetBool("interactive")
	if interactive || len(values) == 0 {
		return predictInteractive(ctx, cmd.InOrStdin(), cmd.ErrOrStderr(), ctrl, state, r)
	}

	err := ctrl.Submit(ctx)
	return report(ctrl, r, err)
}

// newController wires the prediction client and progress settings from cfg.
func newController(state *form.State) *pricing.Controller {
	var opts []optima.Option
	if cfg.Service.TimeoutSecs > 0 {
		opts = append(opts, optima.WithTimeout(time.Duration(cfg.Service.TimeoutSecs)*time.Second))
	}
	client := optima.NewClient(cfg.Service.URL, opts...)

	return pricing.New(state, client, pricing.Options{
		TickInterval: cfg.Progress.Interval(),
		TickStep:     cfg.Progress.Step,
		TickCeiling:  cfg.Progress.Ceiling,
		MinDisplay:   cfg.Progress.MinDisplay(),
	})
}

// report renders the outcome of one Submit call.
func report(ctrl *pricing.Controller, r *display.Renderer, err error) error {
	if err == nil {
		return r.Result(ctrl.Snapshot().Result)
	}

	var inv *pricing.InvalidError
	if errors.As(err, &inv) {
		r.FieldErrors(inv.Errors)
		return eris.Wrap(err, "predict")
	}

	if _, ok := optima.AsTransport(err); ok {
		r.Alert(ctrl.Snapshot().Alert)
		ctrl.Dismiss()
	}
	return eris.Wrap(err, "predict")
}

func predictInteractive(ctx context.Context, in io.Reader, prompts io.Writer, ctrl *pricing.Controller, state *form.State, r *display.Renderer) error {
	scanner := bufio.NewScanner(in)
	log := zap.L().With(zap.String("command", "predict"))

	readLine := func(prompt string) (string, error) {
		fmt.Fprint(prompts, prompt)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", eris.Wrap(err, "predict: read input")
			}
			return "", eris.New("predict: input closed")
		}
		return scanner.Text(), nil
	}

	fmt.Fprintln(prompts, "PriceOptima: ML-based dynamic pricing")

	// Prompt for whatever the flags did not supply.
	ask := make(map[model.Field]bool)
	for _, f := range model.Fields {
		ask[f.Name] = state.Value(f.Name) == ""
	}

	for {
		for _, f := range model.Fields {
			if !ask[f.Name] {
				continue
			}
			line, err := readLine(display.Prompt(f))
			if err != nil {
				return err
			}
			if err := state.SetField(f.Name, line); err != nil {
				return err
			}
		}

		err := ctrl.Submit(ctx)
		if err == nil {
			return r.Result(ctrl.Snapshot().Result)
		}

		var inv *pricing.InvalidError
		if errors.As(err, &inv) {
			r.FieldErrors(inv.Errors)
			ask = make(map[model.Field]bool, len(inv.Errors))
			for name := range inv.Errors {
				ask[name] = true
			}
			continue
		}

		if _, ok := optima.AsTransport(err); !ok {
			return eris.Wrap(err, "predict")
		}

		r.Alert(ctrl.Snapshot().Alert)
		ctrl.Dismiss()
		log.Debug("interactive submission failed", zap.Error(err))
		if ctx.Err() != nil {
			return eris.Wrap(err, "predict")
		}

		answer, readErr := readLine("Try again? [y/N]: ")
		if readErr != nil || !isYes(answer) {
			return eris.Wrap(err, "predict")
		}
		ask = map[model.Field]bool{}
	}
}

func isYes(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes":
		return true
	}
	return false
}
