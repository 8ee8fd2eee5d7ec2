// shapecodec runs the codec's round-trip scenarios and reports the encoded
// bytes of each value.
//
// Every scenario encodes a value with its static type, decodes the bytes back
// and checks the result is equal to the input. The rejection scenarios check
// that types outside the supported set (text, signed integers) fail cleanly.
// Any failing scenario makes the process exit non-zero.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unkn0wn-root/shapecodec"
	zapadapter "github.com/unkn0wn-root/shapecodec/log/zap"
	pr "github.com/unkn0wn-root/shapecodec/provider"
	"github.com/unkn0wn-root/shapecodec/provider/bigcache"
	"github.com/unkn0wn-root/shapecodec/provider/redis"
	"github.com/unkn0wn-root/shapecodec/provider/ristretto"
)

var errScenariosFailed = errors.New("one or more scenarios failed")

type harness struct {
	enc      *shapecodec.Encoder
	dec      *shapecodec.Decoder
	opts     shapecodec.Options
	provider pr.Provider
	compare  bool
}

type config struct {
	hex       bool
	compare   bool
	run       []string
	store     string
	redisAddr string
	maxDepth  int
	verbose   bool
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errScenariosFailed) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var cfg config
	flagSet := pflag.NewFlagSet("shapecodec", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.BoolVar(&cfg.hex, "hex", false, "print the encoded bytes of each scenario")
	flagSet.BoolVar(&cfg.compare, "compare", false, "compare encoded sizes against cbor, msgpack and json")
	flagSet.StringSliceVar(&cfg.run, "run", nil, "run only the named scenarios (comma separated)")
	flagSet.StringVar(&cfg.store, "store", "", "also round-trip values through a store backed by bigcache, ristretto or redis")
	flagSet.StringVar(&cfg.redisAddr, "redis-addr", "localhost:6379", "redis address for --store redis")
	flagSet.IntVar(&cfg.maxDepth, "max-depth", shapecodec.DefaultMaxDepth, "nesting limit for encode and decode")
	flagSet.BoolVarP(&cfg.verbose, "verbose", "v", false, "log codec failures at debug level")
	flagSet.Usage = func() { printHelp(stderr, flagSet) }

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return fmt.Errorf("unexpected argument: %s", rest[0])
	}

	logger := newLogger(cfg.verbose, stderr)
	defer func() { _ = logger.Sync() }()

	opts := shapecodec.Options{MaxDepth: cfg.maxDepth, Logger: zapadapter.New(logger)}
	h := &harness{
		enc:     shapecodec.NewEncoder(opts),
		dec:     shapecodec.NewDecoder(opts),
		opts:    opts,
		compare: cfg.compare,
	}
	if cfg.store != "" {
		p, err := newProvider(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = p.Close(ctx) }()
		h.provider = p
	}

	selected, err := selectScenarios(scenarios(), cfg.run)
	if err != nil {
		return err
	}

	results := make([]result, 0, len(selected))
	for _, s := range selected {
		res := s.run(ctx, h)
		if res.err != nil {
			logger.Error("scenario failed", zap.String("scenario", res.name), zap.Error(res.err))
		}
		results = append(results, res)
	}
	return report(stdout, results, cfg)
}

func newLogger(verbose bool, w io.Writer) *zap.Logger {
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), level)
	return zap.New(core)
}

func newProvider(ctx context.Context, cfg config) (pr.Provider, error) {
	switch cfg.store {
	case "bigcache":
		p, err := bigcache.New(ctx, bigcache.Config{LifeWindow: time.Minute, Shards: 16})
		if err != nil {
			return nil, err
		}
		return p, nil
	case "ristretto":
		p, err := ristretto.New(ristretto.Config{
			NumCounters: 1e4,
			MaxCost:     1 << 20,
			BufferItems: 64,
			Sync:        true,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	case "redis":
		client := goredis.NewClient(&goredis.Options{Addr: cfg.redisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis %s: %w", cfg.redisAddr, err)
		}
		p, err := redis.New(redis.Config{Client: client, CloseClient: true})
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown store %q (want bigcache, ristretto or redis)", cfg.store)
	}
}

func selectScenarios(all []scenario, names []string) ([]scenario, error) {
	if len(names) == 0 {
		return all, nil
	}
	byName := make(map[string]scenario, len(all))
	for _, s := range all {
		byName[s.name] = s
	}
	out := make([]scenario, 0, len(names))
	for _, n := range names {
		s, ok := byName[n]
		if !ok {
			return nil, fmt.Errorf("unknown scenario %q", n)
		}
		out = append(out, s)
	}
	return out, nil
}

func report(w io.Writer, results []result, cfg config) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	header := []string{"SCENARIO", "STATUS", "SHAPE"}
	if cfg.compare {
		header = append(header, "CBOR", "MSGPACK", "JSON")
	}
	if cfg.hex {
		header = append(header, "BYTES")
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	failed := 0
	for _, r := range results {
		status := "ok"
		if r.err != nil {
			status = "FAIL"
			failed++
		}
		row := []string{r.name, status, sizeCell(r)}
		if cfg.compare {
			for _, s := range r.sizes {
				if s.n < 0 {
					row = append(row, "n/a")
					continue
				}
				row = append(row, fmt.Sprint(s.n))
			}
			for i := len(r.sizes); i < 3; i++ {
				row = append(row, "-")
			}
		}
		if cfg.hex {
			row = append(row, fmt.Sprintf("% x", r.encoded))
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "%d/%d scenarios passed\n", len(results)-failed, len(results))
	if failed > 0 {
		return errScenariosFailed
	}
	return nil
}

func sizeCell(r result) string {
	if r.encoded == nil {
		return "-"
	}
	return fmt.Sprint(len(r.encoded))
}

func printHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, `shapecodec runs encode/decode round trips over every supported shape.

Usage:
  shapecodec [flags]

Examples:
  # Run everything and show the bytes
  shapecodec --hex

  # Two scenarios, with a size comparison
  shapecodec --run seq,struct_variant --compare

  # Also push every value through a ristretto-backed store
  shapecodec --store ristretto

Flags:
%s`, flagSet.FlagUsages())
}
