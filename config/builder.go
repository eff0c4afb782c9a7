package config

import (
	"fmt"
	"os"

	"github.com/jpalmerr/winevent"
	"github.com/jpalmerr/winevent/internal/agent"
	"github.com/jpalmerr/winevent/internal/sink"
)

// BuildSources converts parsed configuration into agent sources.
//
// Sources with per_provider set are expanded into one source per provider,
// named "<name>/<provider>". Global frequency and max_events apply where a
// source does not set its own.
func BuildSources(cfg *Config) []agent.Source {
	var sources []agent.Source

	for _, sc := range cfg.Sources {
		if !sc.PerProvider {
			sources = append(sources, buildSource(cfg, sc, sc.Name, sc.Providers))
			continue
		}
		for _, p := range sc.Providers {
			sources = append(sources, buildSource(cfg, sc, sc.Name+"/"+p, []string{p}))
		}
	}

	return sources
}

// buildSource converts a single SourceConfig to an agent Source.
func buildSource(cfg *Config, sc SourceConfig, name string, providers []string) agent.Source {
	frequency := cfg.Frequency.Duration()
	if sc.Frequency != 0 {
		frequency = sc.Frequency.Duration()
	}

	maxEvents := cfg.MaxEvents
	if sc.MaxEvents != 0 {
		maxEvents = sc.MaxEvents
	}

	return agent.Source{
		Name: name,
		Options: []winevent.Option{
			winevent.WithProviders(providers...),
			winevent.WithFrequency(frequency),
			winevent.WithMaxEvents(maxEvents),
		},
	}
}

// BuildSink opens every configured sink and combines them.
//
// The SQLite sink, when configured, is also returned separately so it can
// back the status API's recent lines endpoint. On error any sink already
// opened is closed.
func BuildSink(cfg *Config) (sink.Sink, *sink.SQLite, error) {
	var (
		sinks []sink.Sink
		db    *sink.SQLite
	)

	closeAll := func() {
		for _, s := range sinks {
			_ = s.Close()
		}
	}

	if cfg.Sinks.Stdout {
		sinks = append(sinks, sink.NewJSONLines(os.Stdout))
	}

	if cfg.Sinks.File != "" {
		f, err := sink.OpenFile(cfg.Sinks.File)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("sinks.file: %w", err)
		}
		sinks = append(sinks, f)
	}

	if cfg.Sinks.SQLite != "" {
		s, err := sink.OpenSQLite(cfg.Sinks.SQLite)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("sinks.sqlite: %w", err)
		}
		sinks = append(sinks, s)
		db = s
	}

	if len(sinks) == 1 {
		return sinks[0], db, nil
	}
	return sink.NewMulti(sinks...), db, nil
}
