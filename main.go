//go:build windows && !dev

package main

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/getlantern/systray"

	"github.com/bartek5186/dopi2woo/internal/app"
	logs "github.com/bartek5186/dopi2woo/internal/logs"
)

//go:embed assets/icon.ico
var iconData []byte

func main() {
	// katalog danych aplikacji (logi, config, baza)
	appDir := mustAppDataDir(app.Name)
	logPath := filepath.Join(appDir, "app.log")
	log := logs.New(logPath, false, "info")

	a, err := app.Bootstrap(log, appDir)
	if err != nil {
		log.Fatal().Err(err).Msg("start aplikacji nieudany")
	}
	if a.Cfg.LogLevel != "" {
		log = logs.New(logPath, false, a.Cfg.LogLevel)
	}

	// kontekst sterujący życiem procesu (CTRL+C / zamknięcie sesji)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		if err := a.Web.Run(ctx, a.Cfg.HTTPAddr); err != nil {
			log.Error().Err(err).Msg("HTTP API zatrzymane z błędem")
		}
	}()

	// jeśli proces dostanie sygnał – zatrzymaj syncer i zamknij tray
	go func() {
		<-ctx.Done()
		a.Syncer.Stop()
		systray.Quit()
	}()

	tooltip := func(state string) {
		if state == "" {
			systray.SetTooltip(fmt.Sprintf("Dopi2Woo %s", ver))
			return
		}
		systray.SetTooltip(fmt.Sprintf("Dopi2Woo %s — %s", ver, state))
	}

	systray.Run(func() {
		if len(iconData) > 0 {
			systray.SetIcon(iconData)
		}
		tooltip("")

		mStart := systray.AddMenuItem("Start harmonogramu", "Uruchom automatyczną synchronizację")
		mStop := systray.AddMenuItem("Stop harmonogramu", "Zatrzymaj automatyczną synchronizację")
		mStop.Disable()
		mSyncNow := systray.AddMenuItem("Synchronizuj teraz", "Pełna synchronizacja produktów Dopigo")

		systray.AddSeparator()
		mOpenLogs := systray.AddMenuItem("Otwórz logi", "Pokaż plik log")
		mOpenCfg := systray.AddMenuItem("Ustawienia (config.json)", "Otwórz plik konfiguracyjny")
		mReload := systray.AddMenuItem("Przeładuj konfigurację", "Wczytaj ponownie config.json")
		systray.AddSeparator()
		mAbout := systray.AddMenuItem(fmt.Sprintf("O programie (%s)", ver), "")
		mQuit := systray.AddMenuItem("Wyjście", "Zamknij aplikację")

		// AutoStart harmonogramu (nie mylić z autostartem Windows!)
		if a.Cfg.AutoStart {
			if err := a.Syncer.Start(ctx); err == nil {
				mStart.Disable()
				mStop.Enable()
				tooltip("działa")
			} else {
				log.Error().Err(err).Msg("AutoStart nieudany")
				tooltip("błąd startu")
			}
		}

		go func() {
			for {
				select {
				case <-mStart.ClickedCh:
					if err := a.Syncer.Start(ctx); err != nil {
						log.Error().Err(err).Msg("Start error")
						tooltip("błąd startu")
						continue
					}
					mStart.Disable()
					mStop.Enable()
					tooltip("działa")

				case <-mStop.ClickedCh:
					a.Syncer.Stop()
					mStop.Disable()
					mStart.Enable()
					tooltip("zatrzymane")

				case <-mSyncNow.ClickedCh:
					key := a.Runner.Trigger(ctx)
					log.Info().Str("progress_key", key).Msg("sync uruchomiony z traya")

				case <-mOpenLogs.ClickedCh:
					openInExplorer(logPath)

				case <-mOpenCfg.ClickedCh:
					openInExplorer(a.CfgPath)

				case <-mReload.ClickedCh:
					if err := a.Reload(); err != nil {
						log.Error().Err(err).Msg("Błąd reloadu")
						continue
					}
					log.Info().Msg("Konfiguracja przeładowana")

				case <-mAbout.ClickedCh:
					log.Info().Msgf("Dopi2Woo %s | %s", ver, runtime.Version())

				case <-mQuit.ClickedCh:
					// łagodne zamykanie
					cancel()
					systray.Quit()
					return
				}
			}
		}()
	}, func() {
		// onExit
		if err := a.Close(); err != nil {
			log.Error().Err(err).Msg("zamykanie aplikacji")
		}
		time.Sleep(50 * time.Millisecond)
	})
}
