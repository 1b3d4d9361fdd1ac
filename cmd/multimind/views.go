package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"multimind-hq/relay/pkg/providers"
	"multimind-hq/relay/pkg/proxy"
)

// providerRow is one line of `multimind providers`.
type providerRow struct {
	ID           providers.Provider `json:"id"`
	Name         string             `json:"name"`
	Configured   bool               `json:"configured"`
	DefaultModel string             `json:"default_model"`
	Models       int                `json:"models"`
}

type providerList []providerRow

func (l providerList) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PROVIDER\tNAME\tKEY\tDEFAULT MODEL\tMODELS")
	for _, r := range l {
		key := "missing"
		if r.Configured {
			key = "set"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", r.ID, r.Name, key, r.DefaultModel, r.Models)
	}
	return tw.Flush()
}

// modelList is the result of `multimind models`.
type modelList struct {
	Provider providers.Provider `json:"provider"`
	Source   string             `json:"source"`
	Default  string             `json:"default_model"`
	Models   []providers.Model  `json:"models"`
}

func (l modelList) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\tMODEL\tNAME\tCONTEXT\tCAPABILITIES")
	for _, m := range l.Models {
		mark := ""
		if m.ID == l.Default {
			mark = "*"
		}
		caps := make([]string, len(m.Capabilities))
		for i, c := range m.Capabilities {
			caps[i] = string(c)
		}
		ctx := "-"
		if m.ContextLength > 0 {
			ctx = fmt.Sprintf("%d", m.ContextLength)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", mark, m.ID, m.Name, ctx, strings.Join(caps, ","))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d %s models (%s), * marks the default\n", len(l.Models), l.Provider, l.Source)
	return err
}

// statusView renders proxy.Status for `multimind status`.
type statusView struct {
	proxy.Status
}

func (s statusView) WriteText(w io.Writer) error {
	state := "stopped"
	if s.Running {
		state = "running"
	}
	fmt.Fprintf(w, "Proxy:       %s (uptime %s)\n", state, (time.Duration(s.UptimeMillis) * time.Millisecond).Round(time.Second))
	fmt.Fprintf(w, "Requests:    %d total, %d in flight, %d queued\n", s.RequestCount, s.PendingRequests, s.QueuedRequests)
	fmt.Fprintf(w, "Queue:       %d/%d (%d%%)\n", s.QueueCapacity.Used, s.QueueCapacity.Total, s.QueueCapacity.Percentage)
	fmt.Fprintf(w, "Rate window: %d/%d, %d remaining, resets in %s\n",
		s.RateLimits.Current, s.RateLimits.Limit, s.RateLimits.Remaining,
		(time.Duration(s.RateLimits.ResetsInMillis) * time.Millisecond).Round(100*time.Millisecond))

	if len(s.CircuitBreakers) == 0 {
		return nil
	}
	names := make([]string, 0, len(s.CircuitBreakers))
	for p := range s.CircuitBreakers {
		names = append(names, string(p))
	}
	sort.Strings(names)

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PROVIDER\tBREAKER\tFAILURES")
	for _, name := range names {
		snap := s.CircuitBreakers[providers.Provider(name)]
		fmt.Fprintf(tw, "%s\t%s\t%d\n", name, snap.State, snap.Failures)
	}
	return tw.Flush()
}
