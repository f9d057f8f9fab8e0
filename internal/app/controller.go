package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"doc-manager-app/internal/api"
	"doc-manager-app/internal/auth"
	"doc-manager-app/internal/config"
	"doc-manager-app/internal/controller"
	"doc-manager-app/internal/models"
	"doc-manager-app/pkg/errors"
	"doc-manager-app/pkg/logger"
)

// View defines the presentation operations the controller drives. Every
// method may be called from a background goroutine.
type View interface {
	SetStatus(status string)
	EnableActions(enabled bool)
	ShowRoute(route auth.Route)
	ShowInfo(message string)
	ShowError(message string)
	Confirm(title, message string, onResult func(confirmed bool))

	UpdateList(state controller.ListState)
	UpdateUpload(state controller.UploadState)
	UpdatePreview(state controller.PreviewState)
	UpdateFolders(folders []models.FolderRecord)

	SetHandlers(h Handlers)
}

// Handlers are the user intents a View reports back
type Handlers struct {
	OnLogin    func(username, password string)
	OnLogout   func()
	OnNavigate func(route auth.Route)

	OnSearch         func(text string)
	OnFilterType     func(category models.FileCategory)
	OnSort           func(field string)
	OnPage           func(page int)
	OnNextPage       func()
	OnPrevPage       func()
	OnRefresh        func()
	OnToggleSelected func(id string)
	OnSelectPage     func()
	OnClearSelection func()
	OnDelete         func(rec models.FileRecord)
	OnDeleteSelected func()
	OnDownload       func(rec models.FileRecord, dst io.WriteCloser)

	OnAddFiles      func(files []models.LocalFile)
	OnRemoveTask    func(taskID string)
	OnAddTag        func(tag string)
	OnRemoveTag     func(tag string)
	OnStartUpload   func(meta models.UploadMetadata)
	OnDismissUpload func()

	OnOpenPreview  func(rec *models.FileRecord)
	OnRetryPreview func()
	OnClosePreview func()
}

// Session is the token store behind authentication
type Session interface {
	auth.Provider
	Save(token string) error
	Clear() error
}

// Services are the backends the controller talks to
type Services struct {
	Files   api.FileService
	Folders api.FolderService
	Auth    api.Authenticator
	Session Session
}

// Option configures a Controller
type Option func(*Controller)

// WithRunner replaces the goroutine spawner used for network work
func WithRunner(run func(func())) Option {
	return func(c *Controller) { c.run = run }
}

// Controller coordinates between UI and the list, upload and preview
// controllers, and routes screens through the auth gate.
type Controller struct {
	list    *controller.ListController
	upload  *controller.UploadController
	preview *controller.PreviewController
	gate    *auth.Gate

	services Services
	view     View
	logger   *logger.Logger
	run      func(func())

	mu    sync.Mutex
	route auth.Route

	ctx    context.Context
	cancel context.CancelFunc
}

// NewController creates a new application controller
func NewController(services Services, view View, cfg *config.AppConfig, log *logger.Logger, opts ...Option) *Controller {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if log == nil {
		log = logger.NewWithComponent("app")
	}
	ctx, cancel := context.WithCancel(context.Background())

	c := &Controller{
		services: services,
		view:     view,
		logger:   log,
		run:      func(fn func()) { go fn() },
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.gate = auth.NewGate(services.Session, log.Component("auth"))
	c.list = controller.NewListController(services.Files, c, cfg.PageSize, log.Component("list"),
		controller.WithDeleteConcurrency(cfg.DeleteConcurrency),
		controller.WithListChange(c.onListChange),
	)
	c.upload = controller.NewUploadController(services.Files, c, log.Component("upload"),
		controller.WithMaxSize(cfg.MaxUploadSize),
		controller.WithAccept(cfg.UploadAccept...),
		controller.WithUploadChange(view.UpdateUpload),
	)
	c.preview = controller.NewPreviewController(services.Files, log.Component("preview"),
		controller.WithPreviewCache(cfg.PreviewCacheSize, cfg.PreviewCacheTTL),
		controller.WithPreviewChange(view.UpdatePreview),
	)

	c.setupUICallbacks()
	return c
}

// Start shows the first screen
func (c *Controller) Start() {
	c.logger.Info("Starting application controller")
	c.view.SetStatus("Starting...")
	c.Navigate(auth.RouteFiles)
}

// Stop cancels every background operation
func (c *Controller) Stop() {
	c.logger.Info("Stopping application controller")
	c.cancel()
}

// Route returns the screen currently shown
func (c *Controller) Route() auth.Route {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.route
}

// List exposes the list controller
func (c *Controller) List() *controller.ListController { return c.list }

// Upload exposes the upload controller
func (c *Controller) Upload() *controller.UploadController { return c.upload }

// Preview exposes the preview controller
func (c *Controller) Preview() *controller.PreviewController { return c.preview }

// Navigate resolves route through the gate and shows whatever it allows
func (c *Controller) Navigate(route auth.Route) {
	c.run(func() {
		d := c.gate.Resolve(c.ctx, route)
		c.show(d.Render)
	})
}

func (c *Controller) show(route auth.Route) {
	c.mu.Lock()
	c.route = route
	c.mu.Unlock()

	c.view.ShowRoute(route)
	switch route {
	case auth.RouteFiles:
		if err := c.list.Refresh(c.ctx); err != nil {
			c.logger.WarnWithError("Initial list load failed", err)
		}
	case auth.RouteUpload:
		c.loadFolders()
	case auth.RouteLogin:
		c.view.SetStatus("Sign in to continue")
	}
}

func (c *Controller) setupUICallbacks() {
	c.view.SetHandlers(Handlers{
		OnLogin:    c.handleLogin,
		OnLogout:   c.handleLogout,
		OnNavigate: c.Navigate,

		OnSearch: func(text string) {
			c.background("search", func(ctx context.Context) error { return c.list.SetSearch(ctx, text) })
		},
		OnFilterType: func(category models.FileCategory) {
			c.background("filter", func(ctx context.Context) error { return c.list.SetType(ctx, category) })
		},
		OnSort: func(field string) {
			c.background("sort", func(ctx context.Context) error { return c.list.ToggleSort(ctx, field) })
		},
		OnPage: func(page int) {
			c.background("page", func(ctx context.Context) error { return c.list.SetPage(ctx, page) })
		},
		OnNextPage: func() { c.background("next_page", c.list.NextPage) },
		OnPrevPage: func() { c.background("prev_page", c.list.PrevPage) },
		OnRefresh:  func() { c.background("refresh", c.list.Refresh) },

		OnToggleSelected: c.list.ToggleSelected,
		OnSelectPage:     c.list.SelectPage,
		OnClearSelection: c.list.ClearSelection,
		OnDelete:         c.handleDelete,
		OnDeleteSelected: c.handleDeleteSelected,
		OnDownload:       c.handleDownload,

		OnAddFiles: func(files []models.LocalFile) {
			// rejections are already reported through the notifier
			_, _ = c.upload.AddFiles(files...)
		},
		OnRemoveTask: func(taskID string) {
			if err := c.upload.Remove(taskID); err != nil {
				c.NotifyError(err)
			}
		},
		OnAddTag:        func(tag string) { c.upload.AddTag(tag) },
		OnRemoveTag:     func(tag string) { c.upload.RemoveTag(tag) },
		OnStartUpload:   c.handleStartUpload,
		OnDismissUpload: c.upload.Dismiss,

		OnOpenPreview:  c.handleOpenPreview,
		OnRetryPreview: func() { c.background("retry_preview", c.preview.Retry) },
		OnClosePreview: c.preview.Close,
	})
}

// background runs fn off the calling goroutine. Failures have already been
// notified by the controllers and are only logged here.
func (c *Controller) background(operation string, fn func(ctx context.Context) error) {
	c.run(func() {
		if err := fn(c.ctx); err != nil {
			c.logger.DebugWithFields("Background operation failed", map[string]interface{}{
				"operation": operation,
				"error":     err.Error(),
			})
		}
	})
}

func (c *Controller) handleLogin(username, password string) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		c.NotifyError(errors.NewValidationError(errors.ErrInvalidInput, "username and password are required"))
		return
	}

	c.view.SetStatus("Signing in...")
	c.view.EnableActions(false)
	c.run(func() {
		defer c.view.EnableActions(true)

		token, err := c.services.Auth.Login(c.ctx, username, password)
		if err == nil {
			err = c.services.Session.Save(token)
		}
		if err != nil {
			c.logger.ErrorWithOperation("login", "Sign in failed", err)
			c.NotifyError(err)
			return
		}

		c.logger.InfoWithFields("Signed in", map[string]interface{}{"username": username})
		d := c.gate.Resolve(c.ctx, auth.RouteFiles)
		c.show(d.Render)
	})
}

func (c *Controller) handleLogout() {
	c.run(func() {
		if err := c.services.Session.Clear(); err != nil {
			c.logger.ErrorWithOperation("logout", "Clearing session failed", err)
			c.NotifyError(err)
			return
		}
		c.resetScreens()
		c.show(auth.RouteLogin)
	})
}

func (c *Controller) resetScreens() {
	c.upload.Dismiss()
	c.preview.Close()
	c.list.ClearSelection()
}

// handleDelete asks for confirmation before deleting one file
func (c *Controller) handleDelete(rec models.FileRecord) {
	msg := fmt.Sprintf("Delete %q? This cannot be undone.", rec.OriginalName)
	c.view.Confirm("Delete file", msg, func(confirmed bool) {
		if !confirmed {
			c.logger.DebugWithFields("Delete cancelled", map[string]interface{}{"file_id": rec.ID})
			return
		}
		c.view.SetStatus("Deleting file...")
		c.background("delete_file", func(ctx context.Context) error {
			return c.list.Delete(ctx, rec)
		})
	})
}

func (c *Controller) handleDeleteSelected() {
	n := c.list.State().SelectedCount()
	if n == 0 {
		c.NotifyError(errors.NewValidationError(errors.ErrInvalidInput, "Select at least one file to delete"))
		return
	}

	msg := fmt.Sprintf("Delete %d selected files? This cannot be undone.", n)
	c.view.Confirm("Delete files", msg, func(confirmed bool) {
		if !confirmed {
			return
		}
		c.view.SetStatus("Deleting files...")
		c.view.EnableActions(false)
		c.run(func() {
			defer c.view.EnableActions(true)
			if _, err := c.list.DeleteSelected(c.ctx); err != nil {
				c.logger.WarnWithError("Batch delete incomplete", err)
			}
		})
	})
}

func (c *Controller) handleDownload(rec models.FileRecord, dst io.WriteCloser) {
	c.view.SetStatus(fmt.Sprintf("Downloading %s...", rec.OriginalName))
	c.run(func() {
		defer func() {
			if err := dst.Close(); err != nil {
				c.logger.WarnWithError("Closing download target failed", err)
			}
		}()
		if _, err := c.list.Download(c.ctx, rec, dst); err != nil {
			return
		}
		c.view.SetStatus("Download completed")
	})
}

func (c *Controller) handleStartUpload(meta models.UploadMetadata) {
	c.view.SetStatus("Uploading files...")
	c.run(func() {
		outcome, err := c.upload.StartUpload(c.ctx, meta)
		if err != nil {
			c.logger.WarnWithError("Upload run incomplete", err)
		}
		if len(outcome.Succeeded) > 0 {
			if err := c.list.Refresh(c.ctx); err != nil {
				c.logger.WarnWithError("Refresh after upload failed", err)
			}
		}
		if len(outcome.Results) > 0 {
			c.view.SetStatus(fmt.Sprintf("Upload finished: %d of %d succeeded", len(outcome.Succeeded), len(outcome.Results)))
		}
	})
}

func (c *Controller) handleOpenPreview(rec *models.FileRecord) {
	c.run(func() {
		if rec != nil {
			if d := c.gate.Resolve(c.ctx, auth.RoutePreview); d.Redirected() {
				c.show(d.Render)
				return
			}
		}
		if err := c.preview.Open(c.ctx, rec); err != nil {
			c.logger.DebugWithFields("Preview unavailable", map[string]interface{}{"error": err.Error()})
		}
	})
}

func (c *Controller) loadFolders() {
	if c.services.Folders == nil {
		return
	}
	folders, err := c.services.Folders.ListFolders(c.ctx)
	if err != nil {
		c.logger.WarnWithError("Loading folders failed", err)
		c.NotifyError(err)
		return
	}
	c.view.UpdateFolders(folders)
}

func (c *Controller) onListChange(s controller.ListState) {
	c.view.UpdateList(s)
	c.view.SetStatus(listStatus(s))
}

func listStatus(s controller.ListState) string {
	switch {
	case s.Loading:
		return "Loading files..."
	case s.Err != nil:
		return "Error: " + errors.ClassifyError(s.Err).GetUserMessage()
	case s.Empty():
		return "No files found"
	case s.SelectedCount() > 0:
		return fmt.Sprintf("%d files, %d selected", s.Total, s.SelectedCount())
	default:
		return fmt.Sprintf("%d files", s.Total)
	}
}

// NotifyInfo implements controller.Notifier
func (c *Controller) NotifyInfo(message string) {
	c.view.ShowInfo(message)
}

// NotifyError implements controller.Notifier. An unauthorized response
// ends the session and returns to the login screen.
func (c *Controller) NotifyError(err error) {
	appErr := c.handleError(err)
	if appErr == nil {
		return
	}
	c.view.ShowError(appErr.GetUserMessage())

	if appErr.Code == errors.ErrUnauthorized {
		if clearErr := c.services.Session.Clear(); clearErr != nil {
			c.logger.ErrorWithError("Clearing expired session failed", clearErr)
		}
		c.resetScreens()
		c.show(auth.RouteLogin)
	}
}

// handleError classifies err and logs it with its recovery hints
func (c *Controller) handleError(err error) *errors.AppError {
	if err == nil {
		return nil
	}

	appErr := errors.ClassifyError(err)
	fields := map[string]interface{}{
		"error_code":  string(appErr.Code),
		"kind":        string(appErr.Kind()),
		"recoverable": appErr.IsRecoverable(),
	}
	if action := appErr.GetSuggestedAction(); action != "" {
		fields["suggested_action"] = action
	}
	if appErr.Kind() == errors.KindValidation {
		c.logger.InfoWithFields("Input rejected", fields)
	} else {
		c.logger.ErrorWithFields("Operation failed", fields)
	}
	return appErr
}
