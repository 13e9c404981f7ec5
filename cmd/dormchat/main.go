package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dormworry/dormclient/internal/api"
	"github.com/dormworry/dormclient/internal/chat"
	"github.com/dormworry/dormclient/internal/config"
	"github.com/dormworry/dormclient/internal/session"
	"github.com/dormworry/dormclient/internal/transport"
	"github.com/dormworry/dormclient/pkg/log"
)

func main() {
	var (
		kakaoCode = flag.String("code", "", "Kakao authorization code to exchange for a session")
		roomID    = flag.String("room", "", "delivery room to join on startup")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log.Init(cfg.Log)
	l := log.L()

	sess := session.New()
	apiClient := api.NewClient(cfg.API, sess)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	switch {
	case *kakaoCode != "":
		if err := sess.Login(ctx, apiClient, *kakaoCode); err != nil {
			l.Fatal().Err(err).Msg("kakao login failed")
		}
	case os.Getenv("DORMWORRY_TOKEN") != "":
		if err := sess.SetCredentials(session.Credentials{Token: os.Getenv("DORMWORRY_TOKEN")}); err != nil {
			l.Fatal().Err(err).Msg("invalid DORMWORRY_TOKEN")
		}
	default:
		l.Fatal().Msg("no credentials: pass -code or set DORMWORRY_TOKEN")
	}
	l.Info().Str(log.FieldUserID, sess.CurrentUserID()).Msg("logged in")

	adapter := transport.New(cfg.WebSocket, sess)
	engine := chat.NewEngine(cfg, sess, apiClient, adapter)
	defer engine.Close()

	if *roomID == "" {
		page, err := apiClient.ListRooms(ctx, "", 1, 10)
		if err != nil {
			l.Fatal().Err(err).Msg("failed to list rooms")
		}
		if len(page.Rooms) == 0 {
			l.Fatal().Msg("no open delivery rooms")
		}
		for _, room := range page.Rooms {
			fmt.Printf("  %s  %s (%d/%d)\n", room.ID, room.RestaurantName, room.CurrentParticipants, room.MaxParticipants)
		}
		fmt.Print("room id: ")
		reader := bufio.NewReader(os.Stdin)
		line, _ := reader.ReadString('\n')
		*roomID = strings.TrimSpace(line)
	}

	if err := engine.Join(ctx, *roomID); err != nil {
		l.Fatal().Err(err).Str(log.FieldRoomID, *roomID).Msg("failed to join room")
	}

	var lastShown int
	subID, err := engine.Subscribe(*roomID, func(snap chat.Snapshot) {
		for _, msg := range snap.Messages[min(lastShown, len(snap.Messages)):] {
			fmt.Printf("[%s] %s: %s\n", msg.Timestamp.Local().Format("15:04"), msg.SenderName, msg.Content)
		}
		lastShown = len(snap.Messages)
	})
	if err != nil {
		l.Fatal().Err(err).Msg("subscribe failed")
	}
	defer engine.Unsubscribe(*roomID, subID)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			switch {
			case line == "":
				continue
			case line == "/quit":
				quit <- syscall.SIGTERM
				return
			case line == "/leave":
				engine.Leave(ctx, *roomID)
				quit <- syscall.SIGTERM
				return
			default:
				if _, err := engine.Send(ctx, *roomID, line); err != nil {
					l.Warn().Err(err).Msg("send failed")
				}
			}
		}
	}()

	<-quit
	l.Info().Msg("shutting down")
	engine.Leave(context.Background(), *roomID)
}
