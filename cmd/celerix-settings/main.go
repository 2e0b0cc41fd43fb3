package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/celerix-dev/celerix-settings/internal/config"
	"github.com/celerix-dev/celerix-settings/pkg/engine"
	"github.com/celerix-dev/celerix-settings/pkg/settings"
)

var errUsage = errors.New("usage")

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Println(err)
			printUsage(os.Stdout)
			os.Exit(2)
		}
		log.Fatal(err)
	}
}

func run(ctx context.Context, cfg config.Config, argv []string, out io.Writer) error {
	command := strings.ToUpper(argv[0])
	args := argv[1:]

	need := func(n int, form string) error {
		if len(args) < n {
			return fmt.Errorf("%w: celerix-settings %s", errUsage, form)
		}
		return nil
	}

	if command == "MIGRATE" {
		if err := need(2, "MIGRATE <from-backend> <to-backend>"); err != nil {
			return err
		}
		return migrate(cfg.DataDir, args[0], args[1], out)
	}

	if command == "WATCH" {
		if err := need(2, "WATCH <partition> <key>"); err != nil {
			return err
		}
		p, err := settings.ParsePartitionID(args[0])
		if err != nil {
			return err
		}
		return watch(ctx, cfg, p, args[1], out)
	}

	e, err := cfg.OpenEngine()
	if err != nil {
		return err
	}
	defer e.Close()
	s := cfg.NewStorage(e)

	partition := func() (settings.PartitionID, error) {
		return settings.ParsePartitionID(args[0])
	}

	switch command {
	case "GET":
		if err := need(2, "GET <partition> <key>"); err != nil {
			return err
		}
		p, err := partition()
		if err != nil {
			return err
		}
		val, err := s.Get(p, args[1])
		if err != nil {
			return err
		}
		return printJSON(out, val)

	case "SET":
		if err := need(3, "SET <partition> <key> <value>"); err != nil {
			return err
		}
		p, err := partition()
		if err != nil {
			return err
		}
		if err := s.Set(p, args[1], parseValue(args[2])); err != nil {
			return err
		}
		fmt.Fprintln(out, "OK")

	case "DEL":
		if err := need(2, "DEL <partition> <key>"); err != nil {
			return err
		}
		p, err := partition()
		if err != nil {
			return err
		}
		if err := s.Remove(p, args[1]); err != nil {
			return err
		}
		fmt.Fprintln(out, "OK")

	case "CLEAR":
		if err := need(1, "CLEAR <partition>"); err != nil {
			return err
		}
		p, err := partition()
		if err != nil {
			return err
		}
		if err := s.RemoveAll(p); err != nil {
			return err
		}
		fmt.Fprintln(out, "OK")

	case "LIST":
		list, err := s.Namespaces()
		if err != nil {
			return err
		}
		return printJSON(out, list)

	case "DUMP":
		if err := need(1, "DUMP <partition>"); err != nil {
			return err
		}
		p, err := partition()
		if err != nil {
			return err
		}
		entries, err := s.Entries(p)
		if err != nil {
			return err
		}
		return printJSON(out, entries)

	case "SECRET-SET":
		if err := need(2, "SECRET-SET <key> <value>"); err != nil {
			return err
		}
		sealed, err := cfg.SealedStorage(e)
		if err != nil {
			return err
		}
		if err := settings.StoreEncoded(sealed, settings.AuthScoped, args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintln(out, "OK")

	case "SECRET-GET":
		if err := need(1, "SECRET-GET <key>"); err != nil {
			return err
		}
		sealed, err := cfg.SealedStorage(e)
		if err != nil {
			return err
		}
		secret, err := settings.ReadEncoded[string](sealed, settings.AuthScoped, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(out, secret)

	default:
		return fmt.Errorf("%w: unknown command %s", errUsage, command)
	}
	return nil
}

// pollInterval is how often WATCH re-reads the data directory. Engine change
// signals do not cross processes, so writes by other CLI runs or the daemon
// are only seen by polling.
var pollInterval = 500 * time.Millisecond

// watch prints the value under key, then prints it again each time a poll
// finds it changed, until ctx is done.
func watch(ctx context.Context, cfg config.Config, p settings.PartitionID, key string, out io.Writer) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	last := ""
	for {
		line, err := poll(cfg, p, key)
		if err != nil {
			return err
		}
		if line != last {
			fmt.Fprintln(out, line)
			last = line
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// poll opens the engine afresh so it sees what other processes persisted.
func poll(cfg config.Config, p settings.PartitionID, key string) (string, error) {
	e, err := cfg.OpenEngine()
	if err != nil {
		return "", err
	}
	defer e.Close()

	s := cfg.NewStorage(e, settings.WithLogging(settings.LoggingConfig{Verbosity: settings.LogNone}))
	val, err := s.Get(p, key)
	switch {
	case errors.Is(err, settings.ErrCannotOpenPartition):
		return "", err
	case err != nil:
		return "error: " + err.Error(), nil
	}
	b, err := json.Marshal(val)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func migrate(dataDir, from, to string, out io.Writer) error {
	if from == to {
		return fmt.Errorf("source and destination are both %q", from)
	}
	src, err := config.OpenBackend(from, dataDir)
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := config.OpenBackend(to, dataDir)
	if err != nil {
		return err
	}
	defer dst.Close()

	if err := engine.Migrate(src, dst); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %s -> %s\n", from, to)
	return nil
}

// parseValue reads a raw CLI argument: a {"kind":..,"value":..} object is
// taken as is, booleans and numbers keep their kind, anything else is a string.
func parseValue(arg string) engine.Value {
	var v engine.Value
	if strings.HasPrefix(arg, "{") && json.Unmarshal([]byte(arg), &v) == nil {
		return v
	}
	if arg == "true" || arg == "false" {
		return engine.Bool(arg == "true")
	}
	if i, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return engine.Int(i)
	}
	if f, err := strconv.ParseFloat(arg, 64); err == nil {
		return engine.Float(f)
	}
	return engine.String(arg)
}

func printJSON(out io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(out, string(b))
	return nil
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, "Celerix Settings CLI - local access to a settings data directory")
	fmt.Fprintln(out, "\nUsage:")
	fmt.Fprintln(out, "  celerix-settings GET <partition> <key>")
	fmt.Fprintln(out, "  celerix-settings SET <partition> <key> <value>")
	fmt.Fprintln(out, "  celerix-settings DEL <partition> <key>")
	fmt.Fprintln(out, "  celerix-settings CLEAR <partition>")
	fmt.Fprintln(out, "  celerix-settings LIST")
	fmt.Fprintln(out, "  celerix-settings DUMP <partition>")
	fmt.Fprintln(out, "  celerix-settings WATCH <partition> <key>")
	fmt.Fprintln(out, "  celerix-settings MIGRATE <file|sqlite> <file|sqlite>")
	fmt.Fprintln(out, "  celerix-settings SECRET-SET <key> <value>")
	fmt.Fprintln(out, "  celerix-settings SECRET-GET <key>")
	fmt.Fprintln(out, "\nPartitions: standard, auth, custom:<name>")
	fmt.Fprintln(out, "\nEnvironment Variables:")
	fmt.Fprintln(out, "  CELERIX_DATA_DIR      Data directory (default: ./data)")
	fmt.Fprintln(out, "  CELERIX_BACKEND       file or sqlite (default: file)")
	fmt.Fprintln(out, "  CELERIX_BUNDLE_ID     Bundle id used to name partitions")
	fmt.Fprintln(out, "  CELERIX_LOG_LEVEL     none, failures or debug")
	fmt.Fprintln(out, "  CELERIX_VAULT_KEY     Hex AES-256 key for SECRET-* commands")
}
