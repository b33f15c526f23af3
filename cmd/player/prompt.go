package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/jscyril/crossfade_player/api"
	"github.com/jscyril/crossfade_player/internal/server"
)

var errQuit = errors.New("quit")

var commands = []string{
	"play", "next", "prev", "pause", "resume", "stop",
	"vol", "mute", "unmute", "seek", "repeat", "shuffle", "status", "help", "quit",
}

// prompt reads commands until quit, EOF or ctx is cancelled.
func prompt(ctx context.Context, ctl server.Controller) error {
	items := make([]readline.PrefixCompleterInterface, 0, len(commands))
	for _, c := range commands {
		items = append(items, readline.PcItem(c))
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          ">> ",
		AutoComplete:    readline.NewPrefixCompleter(items...),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return fmt.Errorf("readline: %w", err)
	}
	defer rl.Close()

	go func() {
		<-ctx.Done()
		rl.Close()
	}()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		} else if err != nil {
			return nil
		}

		err = execute(ctl, line, rl.Stdout())
		if errors.Is(err, errQuit) {
			return nil
		} else if err != nil {
			fmt.Fprintf(rl.Stderr(), "error: %v\n", err)
		}
	}
}

// execute runs a single prompt command.
func execute(ctl server.Controller, line string, out io.Writer) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "play":
		index := -1
		if len(args) > 0 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 1 {
				return fmt.Errorf("invalid track number %q", args[0])
			}
			index = n - 1
		}
		return ctl.Play(index)
	case "next":
		return ctl.Next()
	case "prev":
		return ctl.Previous()
	case "pause":
		return ctl.Pause()
	case "resume":
		return ctl.Resume()
	case "stop":
		ctl.Stop()
	case "vol":
		if len(args) == 0 {
			fmt.Fprintf(out, "volume %.2f\n", ctl.Status().Volume)
			return nil
		}
		v, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid volume %q", args[0])
		}
		return ctl.SetVolume(v)
	case "mute":
		ctl.SetMuted(true)
	case "unmute":
		ctl.SetMuted(false)
	case "seek":
		if len(args) == 0 {
			return errors.New("usage: seek <seconds>")
		}
		s, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid position %q", args[0])
		}
		return ctl.Seek(s)
	case "repeat":
		if len(args) == 0 {
			return errors.New("usage: repeat none|one|all")
		}
		mode, ok := api.ParseRepeatMode(args[0])
		if !ok {
			return fmt.Errorf("invalid repeat mode %q", args[0])
		}
		ctl.SetRepeatMode(mode)
	case "shuffle":
		on := true
		if len(args) > 0 {
			b, err := strconv.ParseBool(args[0])
			if err != nil {
				return fmt.Errorf("invalid shuffle value %q", args[0])
			}
			on = b
		}
		ctl.SetShuffle(on)
	case "status":
		fmt.Fprintln(out, statusLine(ctl.Status()))
	case "help":
		fmt.Fprintln(out, "commands: play [n], next, prev, pause, resume, stop, vol [0..1], mute, unmute,")
		fmt.Fprintln(out, "          seek <seconds>, repeat none|one|all, shuffle [true|false], status, quit")
	case "quit", "exit":
		return errQuit
	default:
		return fmt.Errorf("unknown command %q, try help", cmd)
	}
	return nil
}
