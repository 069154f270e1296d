// Command cloudy-chat is a terminal chat client for the Cloudy gateway. It
// logs in, joins a room with the AI assistant, and relays stdin lines as chat
// prompts.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"github.com/cloudy-ai/cloudy/internal/dotenv"
	cloudy "github.com/cloudy-ai/cloudy/sdk"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "cloudy-chat:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		server   = flag.String("server", "http://localhost:8080", "gateway base URL")
		username = flag.String("username", "", "username or email")
		password = flag.String("password", "", "password")
		email    = flag.String("email", "", "email (with -register)")
		register = flag.Bool("register", false, "register a new account first")
		verbose  = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	if err := dotenv.Load(); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}
	if *username == "" || *password == "" {
		return fmt.Errorf("-username and -password are required")
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api := cloudy.NewAPIClient(*server, cloudy.WithLogger(logger))

	if *register {
		if *email == "" {
			return fmt.Errorf("-email is required with -register")
		}
		if _, err := api.RegisterUser(ctx, cloudy.RegisterRequest{
			Username: *username,
			Email:    *email,
			Password: *password,
		}); err != nil {
			return fmt.Errorf("register: %w", err)
		}
		fmt.Println("account created")
	}

	if _, err := api.LoginUser(ctx, *username, *password); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	grant, err := api.CreateRoom(ctx, "")
	if err != nil {
		return fmt.Errorf("create room: %w", err)
	}

	responses := make(chan string, 8)
	room := cloudy.NewRoomClient(logger)
	room.SetCallbacks(cloudy.Callbacks{
		OnAIResponse: func(resp cloudy.AIResponse) {
			select {
			case responses <- resp.Text:
			default:
			}
		},
		OnError: func(err error) {
			logger.Warn("room error", "error", err)
		},
	})

	err = room.ConnectWithRetry(ctx, cloudy.RoomConfig{
		ServerURL: grant.URL,
		Token:     grant.Token,
		RoomName:  grant.RoomName,
		Identity:  api.UserID(),
		Logger:    logger,
	}, cloudy.RetryPolicy{})
	if err != nil {
		return fmt.Errorf("join room: %w", err)
	}
	defer room.Disconnect()

	sessionID := uuid.NewString()
	err = room.SendData(map[string]any{
		"type":       "start_session",
		"session_id": sessionID,
		"user_id":    api.UserID(),
		"config":     map[string]any{"voice_enabled": false, "screen_share_enabled": false},
	})
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	// Print the greeting before the first prompt.
	fmt.Println("cloudy>", <-responses)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		fmt.Print("you> ")
		select {
		case <-ctx.Done():
			fmt.Println()
			return endSession(room, sessionID)
		case line, ok := <-lines:
			if !ok {
				fmt.Println()
				return endSession(room, sessionID)
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if line == "/quit" {
				return endSession(room, sessionID)
			}
			err := room.SendData(map[string]any{
				"type":       "text_input",
				"session_id": sessionID,
				"text":       line,
			})
			if err != nil {
				return fmt.Errorf("send prompt: %w", err)
			}
			select {
			case <-ctx.Done():
				return endSession(room, sessionID)
			case text := <-responses:
				fmt.Println("cloudy>", text)
			}
		}
	}
}

func endSession(room *cloudy.RoomClient, sessionID string) error {
	_ = room.SendData(map[string]any{
		"type":       "end_session",
		"session_id": sessionID,
	})
	room.Disconnect()
	return nil
}
