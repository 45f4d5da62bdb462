package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeintel/internal/api"
	"codeintel/internal/codeintel"
	"codeintel/internal/config"
	"codeintel/internal/dom/rodpage"
	"codeintel/internal/editor"
	editorstorage "codeintel/internal/editor/storage"
	"codeintel/internal/hosts"
	"codeintel/internal/middleware"
	"codeintel/internal/storage"

	"github.com/fatih/color"
	"github.com/sourcegraph/conc"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func watchCmd() *cobra.Command {
	var (
		controlURL string
		headless   bool
		serve      bool
	)
	cmd := &cobra.Command{
		Use:   "watch <url>",
		Short: "Open a page in a browser and keep its code views resolved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("browser") {
				cfg.Browser.ControlURL = controlURL
			}
			if cmd.Flags().Changed("headless") {
				cfg.Browser.Headless = headless
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, args[0], serve)
		},
	}
	cmd.Flags().StringVar(&controlURL, "browser", "", "DevTools URL of a running browser (launches one when empty)")
	cmd.Flags().BoolVar(&headless, "headless", true, "run a launched browser headless")
	cmd.Flags().BoolVar(&serve, "serve", true, "serve the editor and view API")
	return cmd
}

func runWatch(ctx context.Context, url string, serve bool) error {
	host, err := hosts.Builtin(cfg.TabWidth).Lookup(cfg.Host)
	if err != nil {
		return err
	}

	db, err := storage.Open(cfg.Cache.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	fetcher, err := newFetcher(db)
	if err != nil {
		return err
	}
	editors, err := editor.NewService(editorstorage.NewStore(db), logger.Named("editor"))
	if err != nil {
		return err
	}

	browser, err := rodpage.Connect(ctx, cfg.Browser.ControlURL, cfg.Browser.Headless)
	if err != nil {
		return err
	}
	defer browser.Close()

	page, err := rodpage.Open(ctx, browser, url, logger.Named("page"))
	if err != nil {
		return err
	}
	defer page.Close()

	index := api.NewViewIndex()
	ctrl := codeintel.NewController(fetcher, editors, codeintel.Consumers{index, newPrinter(os.Stdout)}, logger.Named("controller"))
	fmt.Println(color.CyanString("Watching"), url, color.HiBlackString("(host %s)", host.Name))

	var wg conc.WaitGroup
	wg.Go(func() { ctrl.Handle(ctx, page, page.Mutations(), host) })
	if serve {
		srv := &http.Server{
			Addr: cfg.Addr(),
			Handler: middleware.Chain(
				api.NewRouter(api.NewEditorHandler(editors), api.NewViewHandler(index)),
				middleware.RequestID,
				middleware.Logger(logger),
				middleware.Recover(logger),
			),
		}
		wg.Go(func() { serveAPI(ctx, srv) })
	}
	if v.ConfigFileUsed() != "" {
		w, err := config.NewWatcher(v, reloadLevel, logger.Named("config"))
		if err != nil {
			logger.Warn("config reload disabled", zap.Error(err))
		} else {
			wg.Go(func() { w.Run(ctx) })
		}
	}

	if r := wg.WaitAndRecover(); r != nil {
		return fmt.Errorf("watch: %s", r.String())
	}
	return nil
}

func serveAPI(ctx context.Context, srv *http.Server) {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving API", zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		logger.Error("API server failed", zap.Error(err))
	}
}
