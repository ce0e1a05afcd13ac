//go:build !windows || dev

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bartek5186/dopi2woo/internal/app"
	conf "github.com/bartek5186/dopi2woo/internal/config"
	logs "github.com/bartek5186/dopi2woo/internal/logs"
	"github.com/bartek5186/dopi2woo/internal/progress"
	"github.com/bartek5186/dopi2woo/internal/syncer"
)

var (
	flagDir      string
	flagLogLevel string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          app.Name,
		Short:        "Synchronizacja katalogu Dopigo do lokalnego sklepu",
		Version:      ver,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, true, runShell)
		},
	}
	root.PersistentFlags().StringVar(&flagDir, "dir", "", "katalog danych aplikacji (domyślnie katalog configu użytkownika)")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "poziom logów (debug, info, warn, error)")

	root.AddCommand(newServeCmd(), newSyncCmd(), newCategoriesCmd(), newPendingCmd(),
		newHistoryCmd(), newTokenCmd(), newTestConnectionCmd())
	return root
}

// withApp składa aplikację, uruchamia fn i sprząta.
func withApp(cmd *cobra.Command, console bool, fn func(ctx context.Context, a *app.App) error) error {
	appDir := flagDir
	if appDir == "" {
		appDir = mustAppDataDir(app.Name)
	}
	level := flagLogLevel
	if level == "" {
		level = "info"
	}
	log := logs.New(filepath.Join(appDir, "app.log"), console, level)

	a, err := app.Bootstrap(log, appDir)
	if err != nil {
		log.Error().Err(err).Msg("start aplikacji nieudany")
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error().Err(err).Msg("zamykanie aplikacji")
		}
	}()
	if flagLogLevel == "" && a.Cfg.LogLevel != "" {
		// poziom z configu, gdy nie podano flagi
		zerolog.SetGlobalLevel(logs.ParseLevel(a.Cfg.LogLevel))
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return fn(ctx, a)
}

func newServeCmd() *cobra.Command {
	var addr string
	var startSync bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "HTTP API + harmonogram (gdy auto_start albo --sync)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, true, func(ctx context.Context, a *app.App) error {
				if startSync || a.Cfg.AutoStart {
					if err := a.Syncer.Start(ctx); err != nil {
						return err
					}
				}
				if addr == "" {
					addr = a.Cfg.HTTPAddr
				}
				return a.Web.Run(ctx, addr)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "adres nasłuchu (domyślnie http_addr z configu)")
	cmd.Flags().BoolVar(&startSync, "sync", false, "uruchom harmonogram niezależnie od auto_start")
	return cmd
}

func newSyncCmd() *cobra.Command {
	var skipImages bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Pełna synchronizacja produktów (blokująca)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, true, func(ctx context.Context, a *app.App) error {
				if skipImages {
					a.Cfg.Dopigo.SkipImages = true
					a.Runner.UpdateConfig(a.Cfg.Dopigo)
				}
				key := progress.NewKey(time.Now())
				fmt.Println("Progress key:", key)
				res, err := a.Runner.RunSync(ctx, syncer.KindManual, key)
				if err != nil {
					return err
				}
				fmt.Printf("Zsynchronizowano %d/%d (błędy: %d)\n", res.Success, res.Total, res.Errors)
				for _, f := range res.Failures {
					fmt.Printf("  #%d %s: %s\n", f.Index+1, f.MetaID, f.Error)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&skipImages, "skip-images", false, "nie pobieraj obrazków")
	return cmd
}

func newCategoriesCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "categories", Short: "Kategorie Dopigo"}
	var fromFeed bool
	imp := &cobra.Command{
		Use:   "import [plik.xml]",
		Short: "Import kategorii z pliku XML albo z feedu (--feed)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !fromFeed && len(args) == 0 {
				return fmt.Errorf("podaj plik XML albo --feed")
			}
			return withApp(cmd, false, func(ctx context.Context, a *app.App) error {
				var raw []byte
				var err error
				if fromFeed {
					raw, err = a.Client.FetchCategoryFeed(ctx, a.Cfg.Dopigo.XMLFeedURL)
				} else {
					raw, err = os.ReadFile(args[0])
				}
				if err != nil {
					return err
				}
				rep, err := a.Categories.ImportFeed(ctx, raw)
				if err != nil {
					return err
				}
				return printJSON(rep)
			})
		},
	}
	imp.Flags().BoolVar(&fromFeed, "feed", false, "pobierz XML z xml_feed_url")
	cmd.AddCommand(imp)
	return cmd
}

func newPendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "Kategorie Dopigo bez mapowania",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, false, func(ctx context.Context, a *app.App) error {
				ids, err := a.Categories.ListPending(ctx)
				if err != nil {
					return err
				}
				return printJSON(ids)
			})
		},
	}
}

func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Historia synchronizacji",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, false, func(ctx context.Context, a *app.App) error {
				return printHistory(ctx, a)
			})
		},
	}
}

func newTokenCmd() *cobra.Command {
	var username, password string
	var save bool
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Wygeneruj token API z loginu i hasła Dopigo",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, false, func(ctx context.Context, a *app.App) error {
				if username == "" {
					username = a.Cfg.Dopigo.Username
				}
				if password == "" {
					password = a.Cfg.Dopigo.Password
				}
				token, err := a.Client.FetchToken(ctx, username, password)
				if err != nil {
					return err
				}
				fmt.Println(token)
				if save {
					a.Cfg.Dopigo.APIKey = token
					return conf.Save(a.CfgPath, a.Cfg)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "login Dopigo")
	cmd.Flags().StringVar(&password, "password", "", "hasło Dopigo")
	cmd.Flags().BoolVar(&save, "save", false, "zapisz token jako api_key w config.json")
	return cmd
}

func newTestConnectionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test-connection",
		Short: "Sprawdź połączenie z API Dopigo",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, false, func(ctx context.Context, a *app.App) error {
				token, err := a.Runner.Token(ctx)
				if err != nil {
					return err
				}
				if err := a.Client.TestConnection(ctx, token); err != nil {
					return err
				}
				fmt.Println("Connection successful")
				return nil
			})
		},
	}
}

// runShell – prosta pętla poleceń w terminalu
func runShell(ctx context.Context, a *app.App) error {
	log := a.Log
	go func() {
		if err := a.Web.Run(ctx, a.Cfg.HTTPAddr); err != nil {
			log.Error().Err(err).Msg("HTTP API zatrzymane z błędem")
		}
	}()

	if a.Cfg.AutoStart {
		if err := a.Syncer.Start(ctx); err != nil {
			log.Error().Msgf("AutoStart nieudany: %v", err)
		} else {
			log.Info().Msgf("Dopi2Woo %s — działa", ver)
		}
	}

	const help = "Komendy: start | stop | reload | status | sync | progress <klucz> | pending | history | paths | open | quit"
	fmt.Println("Dopi2Woo CLI", ver)
	fmt.Println(help)
	reader := bufio.NewReader(os.Stdin)

	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return nil // EOF
		}
		fields := strings.Fields(line)
		cmd := ""
		if len(fields) > 0 {
			cmd = strings.ToLower(fields[0])
		}

		switch cmd {
		case "start":
			if err := a.Syncer.Start(ctx); err != nil {
				log.Error().Msgf("Start error: %v", err)
				fmt.Println("Błąd startu:", err)
				continue
			}
			fmt.Println("Start OK")
		case "stop":
			a.Syncer.Stop()
			fmt.Println("Zatrzymano")
		case "reload":
			if err := a.Reload(); err != nil {
				log.Error().Msgf("Błąd reloadu: %v", err)
				fmt.Println("Błąd reloadu:", err)
				continue
			}
			log.Info().Msg("Konfiguracja przeładowana")
			fmt.Println("Konfiguracja przeładowana")
		case "status":
			if a.Syncer.IsRunning() {
				fmt.Println("Status: DZIAŁA", a.Syncer.Integrations())
			} else {
				fmt.Println("Status: ZATRZYMANY")
			}
		case "sync":
			key := a.Runner.Trigger(ctx)
			fmt.Println("Sync uruchomiony, klucz:", key)
		case "progress":
			if len(fields) < 2 {
				fmt.Println("Użycie: progress <klucz>")
				continue
			}
			rec, ok, err := a.Progress.Get(ctx, fields[1])
			switch {
			case err != nil:
				fmt.Println("Błąd:", err)
			case !ok:
				fmt.Println("Progress not found")
			default:
				fmt.Printf("%s: %d/%d (ok: %d, błędy: %d) %s\n", rec.Status, rec.Processed, rec.Total, rec.Success, rec.Errors, rec.Message)
			}
		case "pending":
			ids, err := a.Categories.ListPending(ctx)
			if err != nil {
				fmt.Println("Błąd:", err)
				continue
			}
			fmt.Println("Pending:", ids)
		case "history":
			if err := printHistory(ctx, a); err != nil {
				fmt.Println("Błąd:", err)
			}
		case "paths":
			fmt.Println("Logi:", filepath.Join(a.Dir, "app.log"))
			fmt.Println("Config:", a.CfgPath)
			fmt.Println("Media:", a.Cfg.MediaDir(a.Dir))
		case "open":
			openInExplorer(a.CfgPath)
		case "quit", "exit":
			return nil
		case "":
			// enter – ignoruj
		default:
			fmt.Println("Nieznana komenda.", help)
		}
	}
}

func printHistory(ctx context.Context, a *app.App) error {
	list, err := a.Runner.History(ctx)
	if err != nil {
		return err
	}
	for _, e := range list {
		fmt.Printf("%s  %-11s %-7s %s\n", time.Unix(e.Timestamp, 0).Format(time.DateTime), e.Type, e.Status, e.Message)
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
