package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"go-keyfall/config"
	"go-keyfall/leaderboard"
	"go-keyfall/theme"
	"go-keyfall/widgets"
)

var serveListen string

func init() {
	rootCmd.AddCommand(scoresCmd)
	scoresCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "address to listen on (default from the config, :8080)")
}

var scoresCmd = &cobra.Command{
	Use:   "scores [file.mid]",
	Short: "Show a song's leaderboard, or list songs with saved scores",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		if len(args) == 0 {
			return listSongs(cmd.OutOrStdout(), store)
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		return showScores(ctx, cmd.OutOrStdout(), store, leaderboard.SongKey(data))
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the leaderboard over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		addr := serveListen
		if addr == "" {
			addr = cfg.Store.Listen
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return serve(ctx, addr, store)
	},
}

func showScores(ctx context.Context, w io.Writer, store leaderboard.Store, song string) error {
	entries, err := store.Top(ctx, song)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, widgets.Leaderboard(entries, 0, theme.New(theme.Plasma())))
	return nil
}

func listSongs(w io.Writer, store leaderboard.Store) error {
	fs, ok := store.(*leaderboard.FileStore)
	if !ok {
		return errors.New("listing songs needs the file store; pass a MIDI file instead")
	}
	songs, err := fs.Songs()
	if err != nil {
		return err
	}
	if len(songs) == 0 {
		fmt.Fprintln(w, "no scores yet")
	}
	for _, s := range songs {
		fmt.Fprintln(w, s)
	}
	return nil
}

func serve(ctx context.Context, addr string, store leaderboard.Store) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           leaderboard.NewHandler(store),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	fmt.Printf("serving scores on %s\n", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdown)
	}
}
