package main

import (
	"github.com/spf13/cobra"

	"github.com/j-veylop/gateway-usage-tui/internal/models"
)

// filterFlags binds the request filter dimensions to command flags. A dimension is
// only restricted when its flag is given; an empty value restricts it to nothing.
type filterFlags struct {
	hours    int
	provider []string
	model    []string
	origin   []string
	session  []string
}

func (ff *filterFlags) register(cmd *cobra.Command, defaultHours int) {
	fs := cmd.Flags()
	fs.IntVar(&ff.hours, "hours", defaultHours, "trailing window in hours (0 uses ANALYTICS_HOURS)")
	fs.StringSliceVar(&ff.provider, "provider", nil, "restrict to providers (comma separated)")
	fs.StringSliceVar(&ff.model, "model", nil, "restrict to models")
	fs.StringSliceVar(&ff.origin, "origin", nil, "restrict to origins")
	fs.StringSliceVar(&ff.session, "session", nil, "restrict to session ids")
}

// filters builds the selection, falling back to analyticsHours for the window.
func (ff *filterFlags) filters(cmd *cobra.Command, analyticsHours int) models.RequestFilters {
	f := models.RequestFilters{Hours: ff.hours}
	if f.Hours <= 0 {
		f.Hours = analyticsHours
	}
	fs := cmd.Flags()
	if fs.Changed("provider") {
		f.Providers = nonNil(ff.provider)
	}
	if fs.Changed("model") {
		f.Models = nonNil(ff.model)
	}
	if fs.Changed("origin") {
		f.Origins = nonNil(ff.origin)
	}
	if fs.Changed("session") {
		f.Sessions = nonNil(ff.session)
	}
	return f
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
