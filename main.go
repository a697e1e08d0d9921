package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/krehermann/intcode/api"
	"github.com/krehermann/intcode/config"
	"github.com/krehermann/intcode/intcode"
	"github.com/krehermann/intcode/network"
	"github.com/krehermann/intcode/store"
	"github.com/krehermann/intcode/types"
	"go.uber.org/zap"
	"golang.org/x/term"
)

const usage = `usage: intcode [-config FILE] [-log-level LEVEL] <command> [flags]

commands:
  run     run a program once
  search  find the phase ordering with the largest network output
  serve   serve run and search over http
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func cli(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("intcode", flag.ContinueOnError)
	fs.Usage = func() { fmt.Fprint(fs.Output(), usage) }
	configPath := fs.String("config", "", "TOML configuration file")
	logLevel := fs.String("log-level", "", "Log level: debug, info, warn, error")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("missing command")
	}

	c := config.Default()
	if *configPath != "" {
		var err error
		if c, err = config.Load(*configPath); err != nil {
			return err
		}
	}
	if *logLevel != "" {
		c.Log.Level = *logLevel
	}
	l, err := c.Logger()
	if err != nil {
		return err
	}
	defer l.Sync()
	zap.ReplaceGlobals(l)

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "run":
		return runCmd(ctx, c, rest, stdin, stdout)
	case "search":
		return searchCmd(ctx, c, rest, stdout)
	case "serve":
		return serveCmd(ctx, c, rest)
	}
	fs.Usage()
	return fmt.Errorf("unknown command %q", cmd)
}

// pokes collects repeated -set addr=value flags.
type pokes map[int64]int64

func (p pokes) String() string {
	parts := make([]string, 0, len(p))
	for addr, v := range p {
		parts = append(parts, fmt.Sprintf("%d=%d", addr, v))
	}
	return strings.Join(parts, ",")
}

func (p pokes) Set(s string) error {
	addr, v, ok := strings.Cut(s, "=")
	if !ok {
		return fmt.Errorf("want addr=value, got %q", s)
	}
	a, err := strconv.ParseInt(strings.TrimSpace(addr), 10, 64)
	if err != nil {
		return fmt.Errorf("address %q: %w", addr, err)
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return fmt.Errorf("value %q: %w", v, err)
	}
	p[a] = n
	return nil
}

func readProgramFile(path string) (intcode.Program, error) {
	if path == "" {
		return nil, errors.New("-program is required")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return intcode.ReadProgram(f)
}

func runCmd(ctx context.Context, c *config.Config, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	programPath := fs.String("program", "", "Program file")
	input := fs.String("input", "", "Comma separated input values")
	interactive := fs.Bool("interactive", false, "Read input values from stdin while running")
	set := pokes{}
	fs.Var(set, "set", "Patch a memory cell before running, addr=value (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	p, err := readProgramFile(*programPath)
	if err != nil {
		return err
	}
	var values []int64
	if strings.TrimSpace(*input) != "" {
		if values, err = intcode.ParseProgram(*input); err != nil {
			return fmt.Errorf("-input: %w", err)
		}
	}

	m := intcode.New(p, c.MachineOptions()...)
	for addr, v := range set {
		if err := m.Poke(addr, v); err != nil {
			return fmt.Errorf("-set %d: %w", addr, err)
		}
	}
	for _, v := range values {
		if err := m.Send(v); err != nil {
			return err
		}
	}
	if !*interactive {
		m.Input().Close()
		if err := m.Run(ctx); err != nil {
			return err
		}
		out, err := m.Outputs(ctx)
		if err != nil {
			return err
		}
		for _, v := range out {
			fmt.Fprintln(stdout, v)
		}
		return nil
	}

	return interact(ctx, m, stdin, stdout)
}

// interact runs m while feeding it numbers read line by line from stdin and
// printing its outputs as they arrive. End of stdin closes the input queue.
func interact(ctx context.Context, m *intcode.Machine, stdin io.Reader, stdout io.Writer) error {
	prompt := false
	if f, ok := stdin.(*os.File); ok {
		prompt = term.IsTerminal(int(f.Fd()))
	}

	m.Start(ctx)
	go func() {
		defer m.Input().Close()
		sc := bufio.NewScanner(stdin)
		for {
			if prompt {
				fmt.Fprint(stdout, "> ")
			}
			if !sc.Scan() {
				return
			}
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			v, err := strconv.ParseInt(line, 10, 64)
			if err != nil {
				fmt.Fprintf(stdout, "not a number: %q\n", line)
				continue
			}
			if err := m.Send(v); err != nil {
				return
			}
		}
	}()

	for {
		v, err := m.Output().Recv(ctx)
		if errors.Is(err, intcode.ErrInputClosed) {
			break
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, v)
	}
	return m.Wait()
}

func searchCmd(ctx context.Context, c *config.Config, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	programPath := fs.String("program", "", "Program file")
	topo := fs.String("topology", "pipeline", "Network topology: pipeline or feedback")
	cachePath := fs.String("cache", c.Store.Path, "File or directory caching search results")
	backend := fs.String("cache-backend", c.Store.Backend, "Result cache backend: bolt, badger or memory")
	parallelism := fs.Int("parallelism", c.Search.Parallelism, "Permutations run at once, 0 for one per CPU")
	if err := fs.Parse(args); err != nil {
		return err
	}

	p, err := readProgramFile(*programPath)
	if err != nil {
		return err
	}
	t, err := network.ParseTopology(*topo)
	if err != nil {
		return err
	}
	s, err := store.Open(*backend, *cachePath, zap.L())
	if err != nil {
		return err
	}
	defer s.Close()

	key := types.HashProgram(p, t.String(), t.Phases(), 0)
	res, cached, err := store.Cached(ctx, s, key, zap.L(), func(ctx context.Context) (store.Result, error) {
		r, err := network.Search(ctx, p, t,
			network.WithParallelism(*parallelism),
			network.WithMachineOptions(c.MachineOptions()...))
		if err != nil {
			return store.Result{}, err
		}
		return store.Result{Max: r.Max, Phases: r.Phases, Topology: r.Topology.String()}, nil
	})
	if err != nil {
		return err
	}
	zap.L().Debug("search result", zap.Bool("cached", cached), zap.Stringer("key", key))
	fmt.Fprintf(stdout, "%d %v\n", res.Max, res.Phases)
	return nil
}

func serveCmd(ctx context.Context, c *config.Config, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", c.API.Addr, "Listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := store.Open(c.Store.Backend, c.Store.Path, zap.L())
	if err != nil {
		return err
	}
	defer s.Close()

	srv, err := api.NewServer(api.ServerConfig{
		ListenerAddr: *addr,
		Logger:       zap.L(),
		Store:        s,
		MachineOpts:  c.MachineOptions(),
		Parallelism:  c.Search.Parallelism,
	})
	if err != nil {
		return err
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
