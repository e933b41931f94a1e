package main

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/priceoptima/internal/display"
	"github.com/sells-group/priceoptima/internal/model"
)

// fieldFlags maps each form field to its command-line flag.
var fieldFlags = []struct {
	field model.Field
	flag  string
}{
	{model.FieldPrice, "price"},
	{model.FieldStockLevel, "stock-level"},
	{model.FieldDayOfWeek, "day-of-week"},
	{model.FieldIsWeekend, "is-weekend"},
	{model.FieldMonth, "month"},
}

var fieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "List the pricing form fields and their rules",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := applyFormat(cmd); err != nil {
			return err
		}
		r := display.New(cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg.Display.CurrencySymbol, cfg.Display.Format)
		return r.Fields()
	},
}

func init() {
	fieldsCmd.Flags().String("format", "", "output format: text, json or yaml (overrides config)")
	rootCmd.AddCommand(fieldsCmd)
}

// addFieldFlags registers one string flag per form field. Values are kept
// as raw text; validation happens on submit.
func addFieldFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	for _, ff := range fieldFlags {
		spec, _ := model.Spec(ff.field)
		f.String(ff.flag, "", spec.Label+" ("+strings.TrimPrefix(spec.Placeholder, "Example: ")+")")
	}
}

// fieldValues returns the field flags that were set on the command line.
func fieldValues(cmd *cobra.Command) model.Values {
	values := make(model.Values)
	for _, ff := range fieldFlags {
		fl := cmd.Flags().Lookup(ff.flag)
		if fl != nil && fl.Changed {
			values[ff.field] = fl.Value.String()
		}
	}
	return values
}

// applyFormat lets --format override display.format.
func applyFormat(cmd *cobra.Command) error {
	format, _ := cmd.Flags().GetString("format")
	if format == "" {
		return nil
	}
	switch format {
	case "text", "json", "yaml":
		cfg.Display.Format = format
		return nil
	}
	return eris.Errorf("--format must be text, json or yaml (got %q)", format)
}
