package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/woxQAQ/bls-bridge/internal/config"
	"github.com/woxQAQ/bls-bridge/pkg/bls"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	labelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#87CEEB"))

	okStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))
)

type result struct {
	msg      string
	sig      []byte
	verified bool
}

func main() {
	flags := config.Flags()
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	configPath, _ := flags.GetString("config")

	cfg, err := config.Load(afero.NewOsFs(), configPath, flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting blsbridge",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("date", date),
		zap.String("backend", cfg.Backend),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	client, err := bls.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to load backend", zap.Error(err))
	}
	defer client.Close(ctx)

	msgs := flags.Args()
	if len(msgs) == 0 {
		msgs = []string{"foo bar baz"}
	}

	if err := run(ctx, client, msgs); err != nil {
		logger.Error("Run failed", zap.Error(err))
		client.Close(ctx)
		logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, client *bls.Client, msgs []string) error {
	sk, err := client.GeneratePrivateKeyRandom(ctx).Wait(ctx)
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}
	pk, err := client.GetPublicKey(ctx, sk).Wait(ctx)
	if err != nil {
		return fmt.Errorf("public key: %w", err)
	}

	out := newPrinter(term.IsTerminal(int(os.Stdout.Fd())))
	out.field("private key", hex.EncodeToString(sk))
	out.field("public key", hex.EncodeToString(pk))

	p := pool.NewWithResults[result]().WithContext(ctx).WithCancelOnError()
	for _, msg := range msgs {
		p.Go(func(ctx context.Context) (result, error) {
			m := bls.Message(msg)
			sig, err := client.Sign(ctx, sk, m).Wait(ctx)
			if err != nil {
				return result{}, fmt.Errorf("sign %q: %w", msg, err)
			}
			ok, err := client.Verify(ctx, pk, sig, m).Wait(ctx)
			if err != nil {
				return result{}, fmt.Errorf("verify %q: %w", msg, err)
			}
			return result{msg: msg, sig: sig, verified: ok}, nil
		})
	}
	results, err := p.Wait()
	if err != nil {
		return err
	}

	for _, r := range results {
		if len(msgs) > 1 {
			out.field("message", r.msg)
		}
		out.field("signature", hex.EncodeToString(r.sig))
		out.verified(r.verified)
	}
	return nil
}

type printer struct {
	color bool
}

func newPrinter(color bool) printer {
	return printer{color: color}
}

func (p printer) render(s lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return s.Render(text)
}

func (p printer) field(label, value string) {
	fmt.Println(p.render(labelStyle, label), value)
}

func (p printer) verified(ok bool) {
	style := okStyle
	if !ok {
		style = failStyle
	}
	fmt.Println(p.render(labelStyle, "verified"), p.render(style, fmt.Sprint(ok)))
}
