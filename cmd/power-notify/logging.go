package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
)

// Log topics. Records tagged with a topic are dropped unless it is enabled;
// untagged records (startup, warnings, errors) are always written.
const (
	topicBattery = "battery"
	topicNotify  = "notify"
	topicResume  = "resume"
	topicAll     = "all"
)

var knownTopics = map[string]bool{
	topicBattery: true,
	topicNotify:  true,
	topicResume:  true,
	topicAll:     true,
}

// topicHandler filters records on their "topic" attribute before passing
// them to inner.
type topicHandler struct {
	inner   slog.Handler
	enabled map[string]bool
	topic   string // inherited from WithAttrs
}

func (h *topicHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *topicHandler) Handle(ctx context.Context, r slog.Record) error {
	if !h.allowed(recordTopic(h.topic, r)) {
		return nil
	}
	return h.inner.Handle(ctx, r)
}

func (h *topicHandler) allowed(topic string) bool {
	return topic == "" || h.enabled[topicAll] || h.enabled[topic]
}

// recordTopic prefers the logger's topic and falls back to one passed on the
// record itself.
func recordTopic(inherited string, r slog.Record) string {
	if inherited != "" {
		return inherited
	}
	var topic string
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "topic" {
			topic = a.Value.String()
			return false
		}
		return true
	})
	return topic
}

func (h *topicHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := &topicHandler{inner: h.inner.WithAttrs(attrs), enabled: h.enabled, topic: h.topic}
	for _, a := range attrs {
		if a.Key == "topic" {
			next.topic = a.Value.String()
		}
	}
	return next
}

func (h *topicHandler) WithGroup(name string) slog.Handler {
	return &topicHandler{inner: h.inner.WithGroup(name), enabled: h.enabled, topic: h.topic}
}

// parseTopics turns --verbose and a comma-separated --log value into the
// enabled topic set. Unknown topics are rejected.
func parseTopics(verbose bool, list string) (map[string]bool, error) {
	enabled := make(map[string]bool)
	if verbose {
		enabled[topicAll] = true
	}
	for _, t := range strings.Split(list, ",") {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if !knownTopics[t] {
			return nil, fmt.Errorf("unknown log topic %q (want one of %s)", t, strings.Join(topicNames(), ", "))
		}
		enabled[t] = true
	}
	return enabled, nil
}

func topicNames() []string {
	names := make([]string, 0, len(knownTopics))
	for t := range knownTopics {
		names = append(names, t)
	}
	sort.Strings(names)
	return names
}

func newLogger(w io.Writer, enabled map[string]bool) *slog.Logger {
	return slog.New(&topicHandler{
		inner:   slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}),
		enabled: enabled,
	})
}

// loggerFor builds the logger for a command from the shared log flags.
func loggerFor(w io.Writer, opts *options) (*slog.Logger, error) {
	enabled, err := parseTopics(opts.verbose, opts.logTopics)
	if err != nil {
		return nil, err
	}
	return newLogger(w, enabled), nil
}
