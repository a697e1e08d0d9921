package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/krehermann/intcode/intcode"
	"github.com/krehermann/intcode/network"
	"github.com/krehermann/intcode/store"
	"github.com/krehermann/intcode/types"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const DefaultRunTimeout = 10 * time.Second

type ServerConfig struct {
	ListenerAddr string
	Logger       *zap.Logger
	// Store caches search results. Nil means an in memory store.
	Store       store.Storager
	MachineOpts []intcode.Option
	// Parallelism bounds concurrent permutations per search; zero is one per CPU.
	Parallelism int
	// RunTimeout bounds a single /run or /search request.
	RunTimeout time.Duration
}

type Server struct {
	ServerConfig
	echo *echo.Echo

	logger *zap.Logger
}

func NewServer(config ServerConfig) (*Server, error) {
	if config.Logger == nil {
		config.Logger = zap.L()
	}
	if config.Store == nil {
		config.Store = store.NewMemStore()
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = DefaultRunTimeout
	}
	s := &Server{
		ServerConfig: config,
		echo:         echo.New(),
		logger:       config.Logger.Named("api"),
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.JSONSerializer = sonnetSerializer{}

	s.echo.GET("/health", s.handleHealth)
	s.echo.POST("/run", s.handleRun)
	s.echo.POST("/search", s.handleSearch)

	return s, nil
}

// Handler exposes the routes without listening.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start() error {
	s.logger.Info("api server starting",
		zap.String("addr", s.ListenerAddr))
	err := s.echo.Start(s.ListenerAddr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleHealth(ectx echo.Context) error {
	return ectx.JSON(http.StatusOK, map[string]any{"status": "ok"})
}

type runRequest struct {
	Program string           `json:"program"`
	Input   []int64          `json:"input"`
	// Set pokes memory before the run, keyed by decimal address.
	Set     map[string]int64 `json:"set"`
}

type runResponse struct {
	Output     []int64 `json:"output"`
	LastOutput int64   `json:"last_output"`
	Halted     bool    `json:"halted"`
	Error      string  `json:"error,omitempty"`
	IP         *int64  `json:"ip,omitempty"`
}

func badRequest(ectx echo.Context, err error) error {
	return ectx.JSON(http.StatusBadRequest,
		map[string]any{
			"error": err.Error(),
		})
}

func (s *Server) handleRun(ectx echo.Context) error {
	var req runRequest
	if err := ectx.Bind(&req); err != nil {
		return badRequest(ectx, err)
	}
	p, err := intcode.ParseProgram(req.Program)
	if err != nil {
		return badRequest(ectx, err)
	}

	// input is closed up front: a program asking for more than it was given
	// faults instead of hanging the request
	in := intcode.NewQueue(req.Input...)
	in.Close()
	opts := append([]intcode.Option{
		intcode.WithLogger(s.logger),
		intcode.WithInput(in),
	}, s.MachineOpts...)
	m := intcode.New(p, opts...)
	for key, v := range req.Set {
		addr, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return badRequest(ectx, fmt.Errorf("set %q: %w", key, err))
		}
		if err := m.Poke(addr, v); err != nil {
			return badRequest(ectx, fmt.Errorf("set %d: %w", addr, err))
		}
	}

	ctx, cancel := context.WithTimeout(ectx.Request().Context(), s.RunTimeout)
	defer cancel()
	runErr := m.Run(ctx)

	// the machine has stopped so its output queue is already closed
	out, err := m.Outputs(context.Background())
	if err != nil {
		return err
	}
	resp := runResponse{
		Output:     out,
		LastOutput: m.LastOutput(),
		Halted:     m.State() == intcode.StateHalted,
	}
	if runErr != nil {
		var fault *intcode.Fault
		if errors.As(runErr, &fault) {
			ip := fault.IP
			resp.IP = &ip
		}
		resp.Error = runErr.Error()
		return ectx.JSON(http.StatusUnprocessableEntity, resp)
	}
	return ectx.JSON(http.StatusOK, resp)
}

type searchRequest struct {
	Program  string  `json:"program"`
	Topology string  `json:"topology"`
	// Phases overrides the topology's phase setting set.
	Phases   []int64 `json:"phases"`
	// Initial is fed to the first machine after its phase.
	Initial  int64   `json:"initial"`
}

type searchResponse struct {
	Max      int64   `json:"max"`
	Phases   []int64 `json:"phases"`
	Topology string  `json:"topology"`
	Cached   bool    `json:"cached"`
	Key      string  `json:"key"`
}

func (s *Server) handleSearch(ectx echo.Context) error {
	var req searchRequest
	if err := ectx.Bind(&req); err != nil {
		return badRequest(ectx, err)
	}
	p, err := intcode.ParseProgram(req.Program)
	if err != nil {
		return badRequest(ectx, err)
	}
	topology := network.Pipeline
	if req.Topology != "" {
		if topology, err = network.ParseTopology(req.Topology); err != nil {
			return badRequest(ectx, err)
		}
	}
	phases := req.Phases
	if len(phases) == 0 {
		phases = topology.Phases()
	}
	if len(phases) > network.MaxPhases {
		return badRequest(ectx, fmt.Errorf("%w: %d phases, at most %d",
			network.ErrTooManyPhases, len(phases), network.MaxPhases))
	}

	key := types.HashProgram(p, topology.String(), phases, req.Initial)
	ctx, cancel := context.WithTimeout(ectx.Request().Context(), s.RunTimeout)
	defer cancel()

	res, cached, err := store.Cached(ctx, s.Store, key, s.logger, func(ctx context.Context) (store.Result, error) {
		r, err := network.Search(ctx, p, topology,
			network.WithPhases(phases...),
			network.WithInitial(req.Initial),
			network.WithParallelism(s.Parallelism),
			network.WithLogger(s.logger),
			network.WithMachineOptions(s.MachineOpts...))
		if err != nil {
			return store.Result{}, err
		}
		return store.Result{
			Max:      r.Max,
			Phases:   r.Phases,
			Topology: r.Topology.String(),
		}, nil
	})
	if err != nil {
		return ectx.JSON(http.StatusUnprocessableEntity,
			map[string]any{
				"error": err.Error(),
			})
	}

	return ectx.JSON(http.StatusOK, searchResponse{
		Max:      res.Max,
		Phases:   res.Phases,
		Topology: res.Topology,
		Cached:   cached,
		Key:      key.String(),
	})
}
