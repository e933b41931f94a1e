package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/priceoptima/internal/display"
	"github.com/sells-group/priceoptima/internal/form"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check pricing inputs without calling the prediction service",
	Example: `  priceoptima validate --price 49.99 --stock-level 1200 --day-of-week 6 --is-weekend 1 --month 12`,
	RunE: runValidate,
}

func init() {
	addFieldFlags(validateCmd)
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, _ []string) error {
	state := form.NewState()
	if err := state.Fill(fieldValues(cmd)); err != nil {
		return err
	}

	errs := form.Validate(state.Values())
	if len(errs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "ok")
		return nil
	}

	r := display.New(cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg.Display.CurrencySymbol, cfg.Display.Format)
	r.FieldErrors(errs)
	return eris.Errorf("validate: %d invalid field(s)", len(errs))
}
