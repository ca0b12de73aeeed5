// Command console is a terminal queue watcher for agents. It polls the open
// queue and, with --request, one conversation.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"liveassist/internal/entities"
	"liveassist/internal/infrastructure"
	"liveassist/internal/syncclient"

	"github.com/spf13/pflag"
)

func main() {
	var (
		server    = pflag.StringP("server", "s", "http://localhost:8080", "base URL of the API")
		tenant    = pflag.StringP("tenant", "t", os.Getenv("LIVEASSIST_TENANT"), "tenant id")
		username  = pflag.StringP("user", "u", os.Getenv("LIVEASSIST_USER"), "agent username")
		password  = pflag.String("password", os.Getenv("LIVEASSIST_PASSWORD"), "agent password")
		requestID = pflag.StringP("request", "r", "", "also follow this request's conversation")
		claim     = pflag.Bool("claim", false, "claim --request before following it")
		interval  = pflag.Duration("interval", 5*time.Second, "poll interval until the server advertises one")
		logLevel  = pflag.String("log-level", "info", "log level")
	)
	pflag.Parse()

	log := infrastructure.NewLogger(*logLevel, "console", os.Stderr)
	if *tenant == "" || *username == "" {
		log.Fatal().Msg("--tenant and --user are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := syncclient.New(*server, nil)
	if _, err := client.Login(ctx, *tenant, *username, *password); err != nil {
		log.Fatal().Err(err).Msg("login failed")
	}

	poller := syncclient.NewPoller(client, *interval, log)
	poller.Add(syncclient.QueueView(printQueue))

	if *requestID != "" {
		if *claim {
			req, err := client.Claim(ctx, *requestID)
			if err != nil {
				log.Fatal().Err(err).Str("request_id", *requestID).Msg("claim failed")
			}
			fmt.Printf("claimed %s (%s)\n", req.ID, req.Name)
		}
		poller.Add(syncclient.ConversationView(*requestID, 0, printMessages))
	}

	if err := poller.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("polling stopped")
	}
}

func printQueue(list []entities.AssistanceRequest) {
	fmt.Printf("\n== queue (%d open) %s ==\n", len(list), time.Now().Format(time.TimeOnly))
	for _, r := range list {
		owner := "-"
		if r.AssignedTo != nil {
			owner = *r.AssignedTo
		}
		fmt.Printf("%-8s %-11s %-9s %-20s %s\n", r.Priority, r.Status, r.OriginChannel, r.Name, owner)
	}
}

func printMessages(messages []entities.MessageEntry) {
	for _, m := range messages {
		fmt.Printf("[%d] %s %s: %s\n", m.Seq, m.SentAt.Format(time.TimeOnly), m.Sender, m.Body)
	}
}
