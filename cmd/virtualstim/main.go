package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/fes.go/pkg/framework"
	"github.com/robotalks/fes.go/pkg/transport"
	"github.com/robotalks/fes.go/pkg/transport/serial"
	"github.com/robotalks/fes.go/pkg/transport/virtual"
)

var (
	portName = "/dev/ttyUSB1"
)

func init() {
	if val := os.Getenv("FES_VIRTUAL_PORT"); val != "" {
		portName = val
	}
	flag.StringVar(&portName, "port", portName, "Serial port the host is connected to.")
}

func report(board *virtual.Board) fx.Runnable {
	return fx.RunFunc(func(ctx context.Context) error {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
			if s, ok := board.Schedule(); ok {
				glog.V(1).Infof("schedule %d period=%dms events=%d running=%v",
					s.ID, s.Duration, len(s.Events), s.Running)
			}
		}
	})
}

func main() {
	flag.Parse()

	port := serial.New()
	if err := port.Open(portName); err != nil {
		glog.Exit(err)
	}
	defer port.Close()
	if err := port.Configure(transport.DefaultConfig); err != nil {
		glog.Exit(err)
	}

	board := virtual.NewBoard()
	glog.Infof("Simulating board on %s", portName)
	err := fx.NewRunner().HandleSignals().Go(
		fx.NamedRun("board", fx.RunFunc(func(ctx context.Context) error {
			return board.Serve(ctx, port)
		})),
		fx.NamedRun("report", report(board)),
	).Wait()
	glog.Infof("%d frames received, %d dropped", board.Received(), board.Dropped())
	if err != nil {
		glog.Error(err)
	}
}
