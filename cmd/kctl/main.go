package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/viant/afs"
	"github.com/viant/kcore"
	"github.com/viant/kcore/service/event"
	"github.com/viant/kcore/service/ptable"
)

func main() {
	flags := &Flags{}
	fs := flag.CommandLine
	flags.SetFlags(fs)
	flag.Parse()
	if flags.ShowHelp {
		fs.Usage()
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, flags, fs, flag.Args(), os.Stdout); err != nil {
		log.Fatalf("kctl: %v", err)
	}
}

// run boots a kernel, starts the demo workload and executes the command as proc_info.
func run(ctx context.Context, flags *Flags, fs *flag.FlagSet, args []string, stdout io.Writer) error {
	config, err := flags.Config(ctx, fs)
	if err != nil {
		return err
	}
	srv, err := kcore.New(config, kcore.WithConsole(stdout))
	if err != nil {
		return err
	}
	command := ""
	if len(args) > 0 {
		command = args[0]
	}
	if command == "events" && srv.Events() != nil {
		err = event.SetListenerOf[ptable.Transition](srv.Events(), func(e *event.Event[ptable.Transition]) error {
			_, err := fmt.Fprintf(srv.Console(), "tick=%d cpu=%d %-5s pid=%d name=%s state=%s queue=%s %s\n",
				e.Context.Tick, e.Context.CPU, e.Context.EventType, e.Data.PID, e.Data.Name, e.Data.State, e.Data.Queue, e.Data.Reason)
			return err
		})
		if err != nil {
			return err
		}
	}

	info := &procInfo{out: srv.Console(), fs: afs.New(), table: srv.Table(), output: flags.Output}
	done := make(chan struct{})
	rt := srv.Runtime()
	err = rt.Start(ctx, "init", func(sys *kcore.Sys) {
		defer close(done)
		startWorkload(sys, flags.Workers)
		_ = sys.Sleep(flags.Warmup)
		switch command {
		case "top":
		case "events":
			_ = sys.Sleep(int64(flags.Duration / config.Scheduler.TickInterval))
		default:
			pid, err := sys.Fork(func(sys *kcore.Sys) {
				_ = sys.Exec("proc_info", info.program(args))
			})
			if err != nil {
				fmt.Fprintf(srv.Console(), "fork failed: %v\n", err)
				return
			}
			for {
				reaped, err := sys.Wait()
				if err != nil || reaped == pid {
					return
				}
			}
		}
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rt.Shutdown(shutdownCtx); err != nil {
			log.Printf("kctl: shutdown: %v", err)
		}
	}()
	if command == "top" {
		return top(ctx, srv, 200*time.Millisecond)
	}
	select {
	case <-done:
	case <-ctx.Done():
	}
	if command == "events" && srv.Events() != nil {
		if publisher, err := event.PublisherOf[ptable.Transition](srv.Events()); err == nil && publisher.DeadLetters() > 0 {
			log.Printf("kctl: %d events could not be written", publisher.DeadLetters())
		}
	}
	return nil
}
