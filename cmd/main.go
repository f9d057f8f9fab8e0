package main

import (
	"fmt"
	"os"

	"fyne.io/fyne/v2"
	fyneapp "fyne.io/fyne/v2/app"

	"doc-manager-app/internal/api"
	"doc-manager-app/internal/app"
	"doc-manager-app/internal/auth"
	"doc-manager-app/internal/config"
	"doc-manager-app/internal/ui"
	"doc-manager-app/pkg/logger"
)

const appID = "com.docmanager.desktop"

func main() {
	log := logger.New()
	log.Info("Document Manager starting...")

	cfg, err := config.Load()
	if err != nil {
		log.ErrorWithError("Failed to load configuration", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log.SetLevel(logger.ParseLevel(cfg.LogLevel))
	log.InfoWithFields("Configuration loaded", map[string]interface{}{
		"api_base_url": cfg.APIBaseURL,
		"page_size":    cfg.PageSize,
	})

	session, err := auth.OpenSessionStore(cfg.KeyringService, log.Component("session"))
	if err != nil {
		log.ErrorWithError("Failed to open session store", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fyneApp := fyneapp.NewWithID(appID)
	ctrl, mw, err := setup(fyneApp, cfg, session, log)
	if err != nil {
		log.ErrorWithError("Failed to initialize application", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fyneApp.Lifecycle().SetOnStarted(ctrl.Start)
	fyneApp.Lifecycle().SetOnStopped(ctrl.Stop)

	log.Info("Application UI initialized")
	mw.Show()
	_ = log.Sync()
}

// setup wires the document service client, the session and the main window
// into an application controller
func setup(fyneApp fyne.App, cfg *config.AppConfig, session *auth.SessionStore, log *logger.Logger) (*app.Controller, *ui.MainWindow, error) {
	client, err := api.NewClient(cfg.APIBaseURL, cfg.APITimeout, log.Component("api"),
		api.WithTokenSource(session.Token))
	if err != nil {
		return nil, nil, err
	}

	mw := ui.NewMainWindow(fyneApp, cfg.UploadAccept)
	ctrl := app.NewController(app.Services{
		Files:   client,
		Folders: client,
		Auth:    client,
		Session: session,
	}, mw, cfg, log.Component("app"))

	return ctrl, mw, nil
}
