package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/shaiso/Acquire/internal/coordinator"
	"github.com/shaiso/Acquire/internal/domain"
	"github.com/shaiso/Acquire/internal/events"
	"github.com/shaiso/Acquire/internal/library"
)

// Coordinator — операции координатора, которые использует станция.
type Coordinator interface {
	Submit(ctx context.Context, plan domain.Plan, opts ...coordinator.SubmitOption) (uuid.UUID, error)
	Pause(deferred bool) error
	Resume() error
	Abort(reason string) error
	StopRun(reason string) error
	Status() coordinator.Status
	Pending() []domain.PrioritizedSubmission
	Events() *events.Bus
}

// Plans — библиотека планов.
type Plans interface {
	Get(name string) (domain.Plan, error)
	List() []library.Info
}

// Config — конфигурация Console.
type Config struct {
	Coordinator Coordinator
	Plans       Plans

	// Loop — поток UI. Должен совпадать с Invoker координатора,
	// чтобы формы метаданных открывались в той же горутине.
	Loop *events.Loop

	In  io.Reader // default: os.Stdin
	Out io.Writer // default: os.Stdout

	Logger *slog.Logger
}

// Console — интерактивная станция.
type Console struct {
	coord  Coordinator
	plans  Plans
	loop   *events.Loop
	in     io.Reader
	out    io.Writer
	logger *slog.Logger
}

// New создаёт Console.
func New(cfg Config) *Console {
	if cfg.Loop == nil {
		cfg.Loop = events.NewLoop()
	}
	if cfg.In == nil {
		cfg.In = os.Stdin
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Console{
		coord:  cfg.Coordinator,
		plans:  cfg.Plans,
		loop:   cfg.Loop,
		in:     cfg.In,
		out:    cfg.Out,
		logger: cfg.Logger,
	}
}

// Run выполняет цикл команд до quit, конца ввода или отмены ctx.
//
// Строка ввода читается только после того, как предыдущая команда и
// открытые ею формы завершились: диалоги читают тот же терминал.
func (c *Console) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	unsubscribe := c.coord.Events().Subscribe(func(ev events.Event) {
		if line := FeedLine(ev); line != "" {
			fmt.Fprintln(c.out, line)
		}
	}, events.Via(c.loop))
	defer unsubscribe()

	lines := make(chan string)
	next := make(chan struct{})
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(c.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
			select {
			case <-next:
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Fprintln(c.out, styleHeader.Render("Acquire station")+styleMuted.Render("  type 'help' for commands"))
	c.prompt()

	for {
		c.loop.Drain()

		select {
		case <-ctx.Done():
			return nil

		case <-c.loop.Wake():

		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit := c.Execute(ctx, line)
			c.loop.Drain()
			if quit {
				return nil
			}
			c.prompt()
			select {
			case next <- struct{}{}:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (c *Console) prompt() {
	fmt.Fprint(c.out, stylePrompt.Render("acquire> "))
}

// Execute выполняет одну команду. Возвращает true для quit.
func (c *Console) Execute(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	var err error
	switch cmd {
	case "quit", "exit":
		return true
	case "help":
		c.help()
	case "plans":
		c.listPlans()
	case "submit":
		err = c.submit(ctx, args)
	case "pause":
		err = c.coord.Pause(len(args) > 0 && args[0] == "defer")
	case "resume":
		err = c.coord.Resume()
	case "abort":
		err = c.coord.Abort(reasonOr(args, "aborted by operator"))
	case "stop":
		err = c.coord.StopRun(reasonOr(args, ""))
	case "status":
		c.status()
	default:
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		c.logger.Debug("console command failed", "command", cmd, "error", err)
		fmt.Fprintln(c.out, styleError.Render("✗ "+err.Error()))
	}
	return false
}

func (c *Console) help() {
	fmt.Fprintln(c.out, `Commands:
  plans                     list plans
  submit <plan> [priority]  queue a plan (lower priority runs first)
  pause [defer]             pause now or at the next checkpoint
  resume                    resume a paused plan
  abort [reason]            abort the running plan
  stop [reason]             stop the running plan, keeping the run successful
  status                    engine state and queue
  quit                      leave the station`)
}

func (c *Console) listPlans() {
	for _, info := range c.plans.List() {
		fmt.Fprintf(c.out, "  %-14s %s\n", info.Name, styleMuted.Render(info.Description))
	}
}

// submit: submit <plan> [priority]. Диалог параметров и форма метаданных
// открываются координатором.
func (c *Console) submit(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: submit <plan> [priority]")
	}

	plan, err := c.plans.Get(args[0])
	if err != nil {
		return err
	}

	var opts []coordinator.SubmitOption
	if len(args) > 1 {
		priority, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid priority %q", args[1])
		}
		opts = append(opts, coordinator.WithPriority(priority))
	}

	_, err = c.coord.Submit(ctx, plan, opts...)
	if errors.Is(err, coordinator.ErrCancelled) {
		fmt.Fprintln(c.out, styleMuted.Render("• submission cancelled"))
		return nil
	}
	return err
}

func (c *Console) status() {
	st := c.coord.Status()
	fmt.Fprintf(c.out, "%s %s  queued: %d\n", styleHeader.Render("Engine:"), st.State, st.Pending)
	for i, p := range c.coord.Pending() {
		fmt.Fprintf(c.out, "  %d. %-14s priority %d %s\n", i+1, p.PlanName(), p.Priority,
			styleMuted.Render(p.ID.String()))
	}
}

func reasonOr(args []string, def string) string {
	if len(args) == 0 {
		return def
	}
	return strings.Join(args, " ")
}
