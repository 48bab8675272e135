// Command echoserver is a minimal demo recovered from
// original_source/examples/echo_server/echo_server.cpp: it accepts
// connections and echoes back whatever it reads, composing accept
// and recv/send operations against a single reactor.Context.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/urfave/cli"
	"golang.org/x/sync/errgroup"

	"github.com/haru-oss/reactor"
)

func main() {
	app := &cli.App{
		Name:  "echoserver",
		Usage: "accept/recv/send echo demo for the reactor runtime",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "listen", Value: "0.0.0.0:12312", Usage: "address to listen on"},
			cli.DurationFlag{Name: "idle-timeout", Value: 30 * time.Second, Usage: "idle connection timeout"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		slog.Error("echoserver exited with error", "error", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	logger := slog.Default()

	rctx, err := reactor.NewContext(reactor.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("construct context: %w", err)
	}
	defer rctx.Close()

	tcpAddr, err := net.ResolveTCPAddr("tcp", c.String("listen"))
	if err != nil {
		return err
	}
	ln, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return err
	}
	defer ln.Close()

	l, err := reactor.NewListener(ln)
	if err != nil {
		return err
	}
	defer l.Close()

	idleTimeout := c.Duration("idle-timeout")
	stopCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	group, _ := errgroup.WithContext(context.Background())
	group.Go(func() error {
		return rctx.Run()
	})

	sched := rctx.Scheduler()
	acceptLoop(sched, l, stopCtx, idleTimeout, logger)

	<-stopCtx.Done()
	rctx.RequestStop()
	return group.Wait()
}

func acceptLoop(sched reactor.Scheduler, l *reactor.Listener, stopCtx context.Context, idleTimeout time.Duration, logger *slog.Logger) {
	var accept func()
	accept = func() {
		op := reactor.NewAcceptOp(sched, l, stopCtx,
			func(conn *reactor.Conn) {
				logger.Info("accepted connection", "fd", conn.FD())
				go echoLoop(sched, conn, idleTimeout, logger)
				accept()
			},
			func(err error) {
				logger.Error("accept failed", "error", err)
				accept()
			},
			func() {
				logger.Info("accept loop stopped")
			},
		)
		op.Start()
	}
	accept()
}

func echoLoop(sched reactor.Scheduler, conn *reactor.Conn, idleTimeout time.Duration, logger *slog.Logger) {
	buf := make(reactor.Buffer, 4096)

	var doRecv func()
	doRecv = func() {
		deadlineCtx, cancel := context.WithTimeout(context.Background(), idleTimeout)
		reactor.NewRecvOp(sched, conn, reactor.StreamSocket, buf, deadlineCtx,
			func(n int) {
				cancel()
				doSend(sched, conn, buf[:n], idleTimeout, logger, doRecv)
			},
			func(err error) {
				cancel()
				logger.Debug("recv ended", "error", err, "fd", conn.FD())
				_ = conn.Close()
			},
			func() {
				cancel()
				logger.Debug("recv stopped (idle timeout)", "fd", conn.FD())
				_ = conn.Close()
			},
		).Start()
	}
	doRecv()
}

func doSend(sched reactor.Scheduler, conn *reactor.Conn, data reactor.Buffer, idleTimeout time.Duration, logger *slog.Logger, next func()) {
	reactor.NewSendOp(sched, conn, data, nil,
		func(int) { next() },
		func(err error) {
			logger.Debug("send failed", "error", err, "fd", conn.FD())
			_ = conn.Close()
		},
		func() {},
	).Start()
}
