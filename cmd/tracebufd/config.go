package main

import (
	"fmt"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffval"
	"github.com/sirupsen/logrus"

	"github.com/etsangsplk/tracebuf"
)

// daemonConfig holds every tracebufd flag. The zero value is not valid;
// use newDaemonConfig, which registers flags with their defaults.
type daemonConfig struct {
	sizeBytes             int
	maxChunkPayload       int
	listenAddr            string
	listenUnix            string
	allowMalformedPackets bool
	historyPerSequence    int
	logLevel              string
}

func newDaemonConfig(fs *ff.FlagSet) *daemonConfig {
	cfg := &daemonConfig{}

	fs.AddFlag(ff.FlagConfig{
		LongName:    "size-bytes",
		Value:       ffval.NewValueDefault(&cfg.sizeBytes, 64<<20),
		Usage:       "trace buffer capacity in bytes",
		Placeholder: "BYTES",
	})
	fs.AddFlag(ff.FlagConfig{
		LongName:    "max-chunk-payload",
		Value:       ffval.NewValueDefault(&cfg.maxChunkPayload, 0),
		Usage:       "reject chunks whose payload exceeds this many bytes (0 = no limit beyond capacity)",
		Placeholder: "BYTES",
	})
	fs.AddFlag(ff.FlagConfig{
		LongName:    "listen-addr",
		Value:       ffval.NewValueDefault(&cfg.listenAddr, "localhost:8080"),
		Usage:       "HTTP listen address for the debug/introspection surface",
		Placeholder: "ADDR",
	})
	fs.AddFlag(ff.FlagConfig{
		LongName:    "listen-unix",
		Value:       ffval.NewValueDefault(&cfg.listenUnix, ""),
		Usage:       "additionally serve the debug/introspection surface on this Unix domain socket path",
		Placeholder: "PATH",
	})
	fs.AddFlag(ff.FlagConfig{
		LongName: "allow-malformed-packets",
		Value:    ffval.NewValueDefault(&cfg.allowMalformedPackets, false),
		Usage:    "tolerate malformed chunk framing instead of discarding the chunk (for fuzzing/adversary testing)",
	})
	fs.AddFlag(ff.FlagConfig{
		LongName:    "history-per-sequence",
		Value:       ffval.NewValueDefault(&cfg.historyPerSequence, 64),
		Usage:       "completed packets retained per writer sequence for late stream subscribers",
		Placeholder: "N",
	})
	fs.AddFlag(ff.FlagConfig{
		ShortName:   'l',
		LongName:    "log-level",
		Value:       ffval.NewValueDefault(&cfg.logLevel, "info"),
		Usage:       "log level: debug, info, warn, error",
		Placeholder: "LEVEL",
	})

	return cfg
}

func (cfg *daemonConfig) bufferConfig() tracebuf.Config {
	return tracebuf.Config{
		SizeBytes:             cfg.sizeBytes,
		MaxChunkPayload:       cfg.maxChunkPayload,
		AllowMalformedPackets: cfg.allowMalformedPackets,
	}
}

func parseLogLevel(s string) (logrus.Level, error) {
	switch s {
	case "", "info":
		return logrus.InfoLevel, nil
	case "debug":
		return logrus.DebugLevel, nil
	case "warn":
		return logrus.WarnLevel, nil
	case "error":
		return logrus.ErrorLevel, nil
	default:
		return 0, fmt.Errorf("invalid log level %q", s)
	}
}
