// keypilot drives the pointer and keyboard and watches hotkeys.
//
// With no one-shot flag it watches the configured keys and logs each press
// until interrupted.
package main

import (
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

	"go.uber.org/zap"

	"github.com/vedantwpatil/keypilot/internal/automation"
	"github.com/vedantwpatil/keypilot/internal/backend"
	"github.com/vedantwpatil/keypilot/internal/backend/robot"
	"github.com/vedantwpatil/keypilot/internal/backend/virtual"
	"github.com/vedantwpatil/keypilot/internal/config"
	"github.com/vedantwpatil/keypilot/internal/geometry"
	"github.com/vedantwpatil/keypilot/internal/keywatch"
	"github.com/vedantwpatil/keypilot/internal/logging"
	"github.com/vedantwpatil/keypilot/internal/motion"
)

var version = "0.1.0"

// virtualStart is where the pointer of the virtual backend begins. It is kept
// off both axes so the first tolerance check can pass.
var virtualStart = geometry.Pt(640, 360)

var errMoveInterrupted = errors.New("move interrupted: pointer moved by something else")

type options struct {
	configPath string
	backend    string
	logLevel   string
	logFormat  string
	mode       string
	move       string
	color      string
	text       string
	where      bool
	version    bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("keypilot", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&opts.configPath, "config", "", "Path to config file (default: ./"+config.DefaultFileName+" if present)")
	fs.StringVar(&opts.backend, "backend", "", "Override backend (robot, virtual)")
	fs.StringVar(&opts.logLevel, "log-level", "", "Override log level (debug, info, warn, error)")
	fs.StringVar(&opts.logFormat, "log-format", "", "Override log format (console, json)")
	fs.StringVar(&opts.mode, "mode", "", "Override motion mode for -move (step, lerp)")
	fs.StringVar(&opts.move, "move", "", "Move the pointer to x,y and exit")
	fs.StringVar(&opts.color, "color", "", "Print the pixel colour at x,y and exit")
	fs.StringVar(&opts.text, "type", "", "Type text into the focused window and exit")
	fs.BoolVar(&opts.where, "where", false, "Print pointer position, screen and active window and exit")
	fs.BoolVar(&opts.version, "version", false, "Show version")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() > 0 {
		return opts, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return opts, nil
}

type Application struct {
	config  *config.Config
	opts    options
	log     *zap.Logger
	backend backend.Backend
	session *automation.Session
	stdout  io.Writer
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewApplication(opts options, stdout io.Writer) (*Application, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	applyOverrides(cfg, opts)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log, err := logging.New(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		return nil, err
	}

	b, err := openBackend(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", cfg.Backend, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Application{
		config:  cfg,
		opts:    opts,
		log:     log,
		backend: b,
		session: automation.New(b, automation.Options{Logger: log}),
		stdout:  stdout,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

func applyOverrides(cfg *config.Config, opts options) {
	if opts.backend != "" {
		cfg.Backend = strings.ToLower(strings.TrimSpace(opts.backend))
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if opts.logFormat != "" {
		cfg.Logging.Format = opts.logFormat
	}
	if opts.mode != "" {
		cfg.Motion.Mode = opts.mode
	}
}

func openBackend(cfg *config.Config, log *zap.Logger) (backend.Backend, error) {
	switch cfg.Backend {
	case config.BackendVirtual:
		log.Info("using virtual backend", zap.Stringer("pointer", virtualStart))
		return virtual.New(virtualStart), nil
	case config.BackendRobot:
		return robot.New(robot.Options{
			Logger:    log.Named("robot"),
			TrackKeys: true,
		})
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

func (app *Application) Run() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go app.handleSignals(sigChan)

	app.log.Debug("configuration loaded", zap.String("source", app.config.Source), zap.String("backend", app.config.Backend))

	switch {
	case app.opts.move != "":
		return app.move(app.opts.move)
	case app.opts.color != "":
		return app.printColor(app.opts.color)
	case app.opts.text != "":
		return app.session.TypeText(app.opts.text)
	case app.opts.where:
		return app.printWhere()
	default:
		return app.watchKeys()
	}
}

func (app *Application) move(arg string) error {
	dest, err := parsePoint(arg)
	if err != nil {
		return err
	}

	target := motion.Target{
		Dest:      dest,
		Speed:     app.config.Motion.Speed,
		Tolerance: app.config.Motion.Tolerance,
	}
	ok, err := app.session.Motion().Move(target, app.config.MotionMode())
	if err != nil {
		return err
	}
	if !ok {
		return errMoveInterrupted
	}
	app.log.Info("pointer moved", zap.Stringer("dest", dest), zap.Stringer("mode", app.config.MotionMode()))
	return nil
}

func (app *Application) printColor(arg string) error {
	pos, err := parsePoint(arg)
	if err != nil {
		return err
	}
	color, err := app.session.ColorAt(pos)
	if err != nil {
		return err
	}
	fmt.Fprintf(app.stdout, "%s %s\n", pos, color)
	return nil
}

func (app *Application) printWhere() error {
	pos, err := app.session.PointerPosition()
	if err != nil {
		return err
	}
	screen, err := app.session.Screen()
	if err != nil {
		return err
	}
	window, err := app.session.ActiveWindow()
	if err != nil {
		return err
	}
	fmt.Fprintf(app.stdout, "pointer %s screen %d window %d\n", pos, screen, window)
	return nil
}

func (app *Application) watchKeys() error {
	keys, err := app.config.WatchKeys()
	if err != nil {
		return err
	}
	for _, key := range keys {
		app.session.OnKeyDown(key, keywatch.HandlerFunc(app.keyPressed), keywatch.WithCooldown(app.config.Watch.Cooldown))
	}

	app.log.Info("watching keys",
		zap.Strings("keys", app.config.Watch.Keys),
		zap.Duration("tick_interval", app.config.Watch.TickInterval))
	fmt.Fprintln(app.stdout, "Watching keys... Press Ctrl+C to exit.")

	err = app.session.Run(app.ctx, app.config.Watch.TickInterval)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (app *Application) keyPressed(key backend.Keycode) error {
	fmt.Fprintf(app.stdout, "%s pressed\n", strings.ToUpper(key.String()))
	return app.session.LogPointerPosition()
}

func (app *Application) handleSignals(sigChan chan os.Signal) {
	select {
	case sig := <-sigChan:
		app.log.Info("received signal", zap.Stringer("signal", sig))
		app.cancel()
	case <-app.ctx.Done():
	}
}

func (app *Application) Close() error {
	app.cancel()
	err := app.backend.Close()
	_ = app.log.Sync()
	return err
}

func parsePoint(s string) (geometry.Position, error) {
	xs, ys, ok := strings.Cut(s, ",")
	if !ok {
		return geometry.Position{}, fmt.Errorf("point %q: want x,y", s)
	}
	x, err := strconv.Atoi(strings.TrimSpace(xs))
	if err != nil {
		return geometry.Position{}, fmt.Errorf("point %q: bad x: %w", s, err)
	}
	y, err := strconv.Atoi(strings.TrimSpace(ys))
	if err != nil {
		return geometry.Position{}, fmt.Errorf("point %q: bad y: %w", s, err)
	}
	return geometry.Pt(x, y), nil
}

func run(args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if opts.version {
		fmt.Fprintf(stdout, "keypilot version %s\n", version)
		return nil
	}

	app, err := NewApplication(opts, stdout)
	if err != nil {
		return err
	}
	defer app.Close()
	return app.Run()
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "keypilot: %v\n", err)
		os.Exit(1)
	}
}
