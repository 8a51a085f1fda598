// Command upload sends one file through the signed direct upload flow:
// it asks the issuer for an authorization and streams the file to the
// storage provider. Ctrl-C aborts the upload.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"golang.org/x/term"

	"github.com/tendant/simple-upload/pkg/simpleupload"
	"github.com/tendant/simple-upload/pkg/simpleupload/client"
	"github.com/tendant/simple-upload/pkg/simpleupload/config"
)

const (
	exitFailed  = 1
	exitAborted = 130
)

// Config is read from the environment
type Config struct {
	APIEndpoint  string        `env:"API_ENDPOINT" env-default:"http://localhost:8080"`
	Provider     string        `env:"UPLOAD_PROVIDER" env-default:"imagekit"`
	UploadURL    string        `env:"UPLOAD_URL" env-default:"https://upload.imagekit.io/api/v1/files/upload"`
	URLEndpoint  string        `env:"IMAGEKIT_URL_ENDPOINT"`
	Folder       string        `env:"UPLOAD_FOLDER"`
	SessionToken string        `env:"SESSION_TOKEN"`
	AuthTimeout  time.Duration `env:"AUTH_TIMEOUT" env-default:"30s"`
	LogLevel     string        `env:"LOG_LEVEL" env-default:"warn"`
}

func (c Config) clientConfig() config.ClientConfig {
	return config.ClientConfig{
		APIEndpoint:  c.APIEndpoint,
		Provider:     c.Provider,
		UploadURL:    c.UploadURL,
		URLEndpoint:  c.URLEndpoint,
		Folder:       c.Folder,
		Timeout:      c.AuthTimeout,
		SessionToken: c.SessionToken,
	}
}

// promptChooser asks for a path on the terminal
type promptChooser struct {
	in  io.Reader
	out io.Writer
}

func (p promptChooser) Choose(ctx context.Context) (*simpleupload.File, error) {
	fmt.Fprint(p.out, "File to upload: ")
	line, err := bufio.NewReader(p.in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	path := strings.TrimSpace(line)
	if path == "" {
		return nil, nil
	}
	return simpleupload.FileFromPath(path)
}

// progressPrinter renders a single updating progress line
type progressPrinter struct {
	out io.Writer
}

func (p progressPrinter) print(percent float64) {
	const width = 30
	filled := int(percent / 100 * width)
	fmt.Fprintf(p.out, "\r[%s%s] %5.1f%%", strings.Repeat("#", filled), strings.Repeat(".", width-filled), percent)
	if percent >= 100 {
		fmt.Fprintln(p.out)
	}
}

func run(ctx context.Context, cfg Config, args []string, stdin io.Reader, stdout, stderr io.Writer, interactive bool, logger *slog.Logger) int {
	var filePath string
	opts := []client.Option{
		client.WithNotifier(client.LogNotifier{Logger: logger}),
		client.WithProgress(progressPrinter{out: stderr}.print),
		client.WithLogger(logger),
	}
	if interactive {
		opts = append(opts, client.WithChooser(promptChooser{in: stdin, out: stderr}))
	}

	w, err := client.NewFromConfig(cfg.clientConfig(), func(p string) { filePath = p }, opts...)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return exitFailed
	}

	if len(args) > 0 {
		file, err := simpleupload.FileFromPath(args[0])
		if err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return exitFailed
		}
		w.Stage(file)
	} else {
		// nothing staged: the first trigger presents the chooser
		if _, err := w.Trigger(ctx); err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return exitFailed
		}
		if w.Staged() == nil {
			fmt.Fprintln(stderr, "no file selected")
			return exitFailed
		}
	}

	attempt, err := w.Trigger(ctx)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return exitFailed
	}
	<-attempt.Done()

	outcome := attempt.Outcome()
	switch outcome.State {
	case simpleupload.StateSucceeded:
		fmt.Fprintln(stdout, filePath)
		if u := w.LastRenderURL(); u != "" {
			fmt.Fprintln(stderr, "url:", u)
		}
		return 0
	case simpleupload.StateAborted:
		fmt.Fprintln(stderr, "\nupload aborted")
		return exitAborted
	default:
		fmt.Fprintf(stderr, "\n%s %s\n", client.FailureTitle, outcome.Err)
		return exitFailed
	}
}

func main() {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(exitFailed)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelWarn
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	code := run(ctx, cfg, os.Args[1:], os.Stdin, os.Stdout, os.Stderr, interactive, logger)
	stop()
	os.Exit(code)
}
