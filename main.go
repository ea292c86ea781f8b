package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	data "grokchat/data"
	server "grokchat/http"
	"grokchat/logger"
	grok_model "grokchat/models/grok"
	services "grokchat/services"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

var (
	prompt       string
	serve        bool
	port         int
	secure       bool
	store        string
	session_ttl  time.Duration
	timeout      time.Duration
	log_file     string
	debug        bool
	render_style string
)

func init() {
	flag.StringVar(
		&prompt,
		"prompt",
		"",
		"Send a single prompt and exit",
	)
	flag.BoolVar(&serve, "serve", false, "Enable server mode")
	flag.IntVar(&port, "port", 5000, "Port to listen on")
	flag.BoolVar(&secure, "secure", false, "Enable HTTPS (cert.pem, key.pem)")
	flag.StringVar(&store, "store", "memory", "Session store: memory, sqlite or postgres")
	flag.DurationVar(&session_ttl, "session-ttl", data.DefaultSessionTTL, "Idle time after which a session expires")
	flag.DurationVar(&timeout, "timeout", 60*time.Second, "Timeout for a single provider call")
	flag.StringVar(&log_file, "log", "grokchat.log", "File to write logs to")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.StringVar(&render_style, "style", "dark", "glamour style used in cli mode")
}

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Print("Error loading .env file")
	}

	flag.Parse()

	if err := logger.Init(log_file, debug); err != nil {
		log.Fatalf("could not set up logging: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	repository, err := openRepository(ctx)
	if err != nil {
		log.Fatalf("could not open %s session store: %v", store, err)
	}

	client, err := grok_model.NewGrokClient(timeout)
	if err != nil {
		log.Fatal(err)
	}

	service := services.NewChatService(repository, client)

	if serve {
		secret := []byte(os.Getenv("SESSION_SECRET"))
		if len(secret) == 0 {
			logger.Screen("SESSION_SECRET not set, sessions will not survive a restart", logger.Info)
			secret = server.RandomSecret()
		}
		cookies := &server.SessionCookies{Secret: secret, TTL: session_ttl, Secure: secure}

		if err := server.Run(secure, port, server.NewHandler(service, cookies, timeout)); err != nil {
			logger.Log.Error("server stopped", zap.Error(err))
			log.Fatal(err)
		}
		return
	}

	cli := CliResponseHandler{Out: os.Stdout, Style: render_style}
	if err := chat(ctx, service, cli, os.Stdin); err != nil {
		log.Fatal(err)
	}
}

func openRepository(ctx context.Context) (data.SessionRepository, error) {
	switch store {
	case "sqlite":
		name := os.Getenv("GROKCHAT_DATABASE")
		if name == "" {
			name = "sessions"
		}
		path, err := data.DefaultSqlitePath(name)
		if err != nil {
			return nil, err
		}
		repository := &data.SqliteSessionRepository{}
		if err := repository.Init(ctx, path, session_ttl); err != nil {
			return nil, err
		}
		return repository, nil
	case "postgres":
		repository := &data.PostgresSessionRepository{}
		if err := repository.Init(ctx, os.Getenv("DB_CONNECTION_STRING"), session_ttl); err != nil {
			return nil, err
		}
		return repository, nil
	case "memory":
		return data.NewMemorySessionRepository(session_ttl), nil
	default:
		return nil, fmt.Errorf("unknown store %q", store)
	}
}

// chat runs a terminal conversation on a fresh session. /status and /clear
// mirror the http endpoints.
func chat(ctx context.Context, service *services.ChatService, cli CliResponseHandler, in io.Reader) error {
	sessionID := uuid.NewString()
	if _, err := service.StartSession(ctx, sessionID); err != nil {
		return err
	}

	ask := func(text string) {
		queryCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		result, err := service.SubmitQuery(queryCtx, sessionID, text)
		if errors.Is(err, services.ErrSessionExpired) {
			cli.Notice("session was idle too long, starting a new one")
			if _, err = service.StartSession(queryCtx, sessionID); err == nil {
				result, err = service.SubmitQuery(queryCtx, sessionID, text)
			}
		}
		if err != nil {
			cli.Failed(err)
			return
		}
		cli.FinalText(result)
	}

	if prompt != "" {
		ask(prompt)
		return nil
	}

	reader := bufio.NewReader(in)
	for {
		fmt.Fprint(cli.Out, "Prompt:")
		line, err := reader.ReadString('\n')
		text := strings.TrimSpace(line)

		switch text {
		case "":
		case "/quit", "/exit":
			return nil
		case "/status":
			status, statusErr := service.GetStatus(ctx, sessionID)
			if statusErr != nil {
				return statusErr
			}
			cli.Status(status)
		case "/clear":
			if clearErr := service.ClearSession(ctx, sessionID); clearErr != nil {
				return clearErr
			}
			if _, startErr := service.StartSession(ctx, sessionID); startErr != nil {
				return startErr
			}
		default:
			ask(text)
		}

		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
