package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/talkincode/smartcart/config"
	"github.com/talkincode/smartcart/internal/app"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var version = "1.0.0"

var (
	h        = flag.Bool("h", false, "help usage")
	showVer  = flag.Bool("v", false, "show version")
	conffile = flag.String("c", "", "config yaml file")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Println(version)
		os.Exit(0)
	}
	if *h {
		flag.Usage()
		os.Exit(0)
	}

	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*conffile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application := app.NewApplication(cfg)
	if err := application.Init(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "init application:", err)
		os.Exit(1)
	}
	defer application.Release()

	application.StartBackgroundJobs()
	srv := application.Server()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		zap.S().Errorf("server stopped: %v", err)
	}
}
