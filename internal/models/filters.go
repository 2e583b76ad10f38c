package models

// RequestFilters describes the filter state of a usage-request query.
//
// A nil slice means the dimension is unrestricted. A non-nil empty slice means
// "match nothing" and must yield zero results.
type RequestFilters struct {
	Hours      int
	FromUnixMs *int64
	ToUnixMs   *int64
	Providers  []string
	Models     []string
	Origins    []string
	Sessions   []string
}

// WithProviders returns a copy of the filters restricted to the given providers.
func (f RequestFilters) WithProviders(providers ...string) RequestFilters {
	out := f.Clone()
	out.Providers = append([]string{}, providers...)
	return out
}

// Clone returns a deep copy of the filters, preserving nil versus empty slices.
func (f RequestFilters) Clone() RequestFilters {
	out := RequestFilters{
		Hours:     f.Hours,
		Providers: cloneStrings(f.Providers),
		Models:    cloneStrings(f.Models),
		Origins:   cloneStrings(f.Origins),
		Sessions:  cloneStrings(f.Sessions),
	}
	if f.FromUnixMs != nil {
		v := *f.FromUnixMs
		out.FromUnixMs = &v
	}
	if f.ToUnixMs != nil {
		v := *f.ToUnixMs
		out.ToUnixMs = &v
	}
	return out
}

// Matches reports whether an entry satisfies the filters.
// The hours window is not checked since it is relative to the query time.
func (f RequestFilters) Matches(e UsageRequestEntry) bool {
	if f.FromUnixMs != nil && e.UnixMs < *f.FromUnixMs {
		return false
	}
	if f.ToUnixMs != nil && e.UnixMs > *f.ToUnixMs {
		return false
	}
	return matchesDimension(f.Providers, e.Provider) &&
		matchesDimension(f.Models, e.Model) &&
		matchesDimension(f.Origins, e.Origin) &&
		matchesDimension(f.Sessions, e.SessionID)
}

func matchesDimension(allowed []string, value string) bool {
	if allowed == nil {
		return true
	}
	for _, a := range allowed {
		if a == value {
			return true
		}
	}
	return false
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// Int64Ptr returns a pointer to v.
func Int64Ptr(v int64) *int64 {
	return &v
}
