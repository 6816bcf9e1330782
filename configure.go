package bigfile

import (
	"context"
	"fmt"
	"io"

	"github.com/aweris/bigfile/internal/config"
	"github.com/aweris/bigfile/internal/transport"
)

// Filter driver settings written by Configure.
const (
	CleanFilterKey   = "filter.bigfile.clean"
	CleanFilterCmd   = "git-bigfile filter-clean"
	SmudgeFilterKey  = "filter.bigfile.smudge"
	SmudgeFilterCmd  = "git-bigfile filter-smudge"
	AttributePattern = "filter=bigfile -crlf"
)

// Setup describes the configuration written by Configure.
type Setup struct {
	Scope     Scope
	Transport string
	Options   map[string]string // option name to value, e.g. "path"
}

// Configure registers the filter driver and the transport settings. Each
// value is written only when it differs from the current one.
func Configure(ctx context.Context, repo Repository, s Setup, w io.Writer) error {
	if s.Scope == ScopeRepository {
		if _, err := repo.Root(); err != nil {
			return err
		}
	}

	cfg, err := transport.ParseConfig(s.Transport, s.Options)
	if err != nil {
		return err
	}

	settings := [][2]string{
		{CleanFilterKey, CleanFilterCmd},
		{SmudgeFilterKey, SmudgeFilterCmd},
		{config.TransportKey, string(cfg.Kind)},
	}
	for _, option := range transport.Options(cfg.Kind) {
		if value, ok := s.Options[option]; ok && value != "" {
			settings = append(settings, [2]string{transport.OptionKey(cfg.Kind, option), value})
		}
	}

	current, err := repo.ListConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to read git config: %w", err)
	}
	for _, kv := range settings {
		key, value := kv[0], kv[1]
		if v, ok := current[key]; ok && v == value {
			fmt.Fprintf(w, "%s already set to %q\n", key, value)
			continue
		}
		if err := repo.SetConfig(ctx, key, value, s.Scope); err != nil {
			return fmt.Errorf("failed to set %s: %w", key, err)
		}
		fmt.Fprintf(w, "%s set to %q\n", key, value)
	}
	return nil
}
