package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/engine"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/event"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/turnplan"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/util"
)

// runOptions are the flags of the run command.
type runOptions struct {
	topic     string
	format    string
	turns     int
	budget    int
	forID     string
	againstID string
	modID     string
	output    string
}

func newRunCmd(a *app) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a debate in-process and print it live",
		Long: `Run a complete debate in this process, printing each turn as it is
produced. Interrupting the command ends the debate early.`,
		Example: `  arena run --topic "Cities should ban private cars"
  arena run --topic "AI should be open source" --format oxford --turns 6 --for openai`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runDebate(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.topic, "topic", "t", "", "the motion under debate")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "debate format (default from engine.default_format)")
	cmd.Flags().IntVarP(&opts.turns, "turns", "n", 0, "requested turn count (default from engine.default_turn_count)")
	cmd.Flags().IntVar(&opts.budget, "budget", 0, "token budget (default from budget.default_tokens)")
	cmd.Flags().StringVar(&opts.forID, "for", "", "provider for the debater arguing for the motion")
	cmd.Flags().StringVar(&opts.againstID, "against", "", "provider for the debater arguing against the motion")
	cmd.Flags().StringVar(&opts.modID, "moderator", "", "provider for the moderator")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "text", "output format: text, json (one event per line)")
	_ = cmd.MarkFlagRequired("topic")
	return cmd
}

func (o runOptions) sessionConfig() (engine.SessionConfig, error) {
	sc := engine.SessionConfig{
		Topic:        o.topic,
		TurnCount:    o.turns,
		BudgetTokens: o.budget,
		Providers:    map[turnplan.Speaker]string{},
	}
	if o.format != "" {
		f, err := turnplan.ParseFormat(o.format)
		if err != nil {
			return sc, err
		}
		sc.Format = f
	}
	for sp, id := range map[turnplan.Speaker]string{
		turnplan.SpeakerFor:       o.forID,
		turnplan.SpeakerAgainst:   o.againstID,
		turnplan.SpeakerModerator: o.modID,
	} {
		if id != "" {
			sc.Providers[sp] = id
		}
	}
	return sc, nil
}

func (a *app) runDebate(cmd *cobra.Command, opts runOptions) error {
	if opts.output != "text" && opts.output != outputJSON {
		return fmt.Errorf("unknown output format %q (want text or json)", opts.output)
	}
	sc, err := opts.sessionConfig()
	if err != nil {
		return err
	}
	cfg, err := a.load()
	if err != nil {
		return err
	}
	// Apply speaker overrides before wiring so missing generators are caught
	for sp, id := range sc.Providers {
		switch sp {
		case turnplan.SpeakerFor:
			cfg.Providers.For = id
		case turnplan.SpeakerAgainst:
			cfg.Providers.Against = id
		case turnplan.SpeakerModerator:
			cfg.Providers.Moderator = id
		}
	}
	// Keep stderr quiet around the live transcript unless asked otherwise
	if a.logLvl == "" && cfg.Logging.File == "" {
		cfg.Logging.Level = "warn"
	}
	logger, err := a.logger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := buildRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	st, err := rt.engine.Create(ctx, sc)
	if err != nil {
		return err
	}

	events := make(chan event.Event, 1024)
	unsubscribe := rt.engine.Bus().Subscribe(st.ID, func(e event.Event) { events <- e })
	defer unsubscribe()

	out := cmd.OutOrStdout()
	pr := newPrinter(out)
	emit := pr.event
	if opts.output == outputJSON {
		enc := json.NewEncoder(out)
		emit = func(e event.Event) { _ = enc.Encode(e) }
	} else {
		pr.println(pr.p.title.Render(util.Truncate(st.Topic, pr.width)))
		pr.println(pr.p.muted.Render(fmt.Sprintf("%s · %d entries · budget %d tokens", st.Format, st.TotalTurns, st.BudgetTokens)))
	}

	if err := rt.engine.Start(ctx, st.ID); err != nil {
		return err
	}

	interrupted := ctx.Done()
	for done := false; !done; {
		select {
		case e := <-events:
			emit(e)
			done = e.Kind.IsTerminal()
		case <-interrupted:
			interrupted = nil
			endCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := rt.engine.EndEarly(endCtx, st.ID, "interrupted"); err != nil {
				logger.Warn("end early failed", "error", err)
			}
			cancel()
		}
	}

	final, err := rt.engine.GetState(context.Background(), st.ID)
	if err != nil {
		return err
	}
	if opts.output != outputJSON {
		if u, err := rt.engine.Usage(context.Background(), st.ID); err == nil {
			pr.usage(u)
		}
	}
	if final.Status == engine.StatusError {
		return fmt.Errorf("debate failed [%s]: %s", final.ErrorCode, final.Error)
	}
	return nil
}
