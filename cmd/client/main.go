package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"blackjack-lite/client"
)

func main() {
	addrFlag := flag.String("addr", "127.0.0.1:10000", "server rendezvous address")
	nameFlag := flag.String("name", "", "player name")
	timeoutFlag := flag.Duration("timeout", 5*time.Second, "connect timeout")
	flag.Parse()

	name := strings.TrimSpace(*nameFlag)
	if name == "" {
		name, _ = pterm.DefaultInteractiveTextInput.WithDefaultText("Enter your name").Show()
		name = strings.TrimSpace(name)
		pterm.Println()
	}
	if name == "" {
		pterm.Error.Println("A player name is required")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	spinner, _ := pterm.DefaultSpinner.Start("Connecting to " + *addrFlag + " ...")
	c, err := client.Dial(ctx, *addrFlag, name, *timeoutFlag)
	if err != nil {
		if errors.Is(err, client.ErrServerFull) {
			spinner.Fail("The table is full or the game has already started")
		} else {
			spinner.Fail(err.Error())
		}
		os.Exit(1)
	}
	spinner.Success("Joined as " + name + " on port " + pterm.Sprint(c.Port))
	defer c.Close()

	go func() {
		<-ctx.Done()
		_ = c.Close()
	}()

	go readInput(c)

	view := &table{}
	for {
		line, err := c.ReadLine()
		if err != nil {
			pterm.Warning.Println("Disconnected from server")
			return
		}
		m := client.Classify(line)
		view.apply(m)
		if render(m) {
			printTable(name, view)
		}
	}
}

// readInput maps h/s shortcuts to commands; anything else is chat.
func readInput(c *client.Client) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var err error
		switch strings.ToLower(text) {
		case "h", "hit":
			err = c.Hit()
		case "s", "stand":
			err = c.Stand()
		case "q", "quit":
			_ = c.Close()
			return
		default:
			err = c.Send(text)
		}
		if err != nil {
			pterm.Error.Printfln("send failed: %v", err)
			return
		}
	}
}
