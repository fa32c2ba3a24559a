package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/airis-sh/airis/alert"
	"github.com/airis-sh/airis/colors"
	"github.com/airis-sh/airis/coordinator"
	"github.com/airis-sh/airis/device"
	"github.com/airis-sh/airis/dispatch"
	"github.com/airis-sh/airis/gstorage"
	"github.com/airis-sh/airis/logger"
	"github.com/airis-sh/airis/models"
	"github.com/airis-sh/airis/settings"
	"github.com/airis-sh/airis/shared"
	"github.com/airis-sh/airis/work"
)

const DEFAULT_HOST = "127.0.0.1"

var logg = logger.NewLogger()

// App is one running control center: device link, alert path, status API
// and background jobs.
type App struct {
	config    shared.AppConfig
	configDir string

	session       *device.Session
	demoTransport *device.FakeTransport
	supervisor    *device.Supervisor
	store         *settings.Store
	coordinator   *coordinator.Coordinator
	workers       *work.WorkerPoolAdapter
	storage       gstorage.Storage
	httpServer    *http.Server
}

// Start runs the control center until SIGINT/SIGTERM
func Start(config shared.AppConfig, configDir string, demo bool) {
	app, err := NewApp(config, configDir, demo, nil)
	fatalOnError(err)

	app.Run()
}

// NewApp wires every component from config. 'storage' overrides the google
// storage client used for sqlite backups, nil builds one from config.
func NewApp(config shared.AppConfig, configDir string, demo bool, storage gstorage.Storage) (*App, error) {
	var err error
	app := &App{config: config, configDir: configDir, storage: storage}

	if config.Google.Storage.BackupEnabled() && app.storage == nil {
		app.storage, err = gstorage.NewGStorage(config.Google.ApplicationCredentials)
		if err != nil {
			return nil, err
		}
	}

	if config.Google.Storage.BackupEnabled() {
		if err = restoreSqliteDb(app.storage, config.Google.Storage, configDir); err != nil {
			return nil, err
		}
	}

	if err = models.AutoMigrate(config.Sqlite.PassPhrase, configDir); err != nil {
		return nil, err
	}

	app.store, err = settings.NewStore()
	if err != nil {
		return nil, err
	}

	app.coordinator, err = NewCoordinator(config, app.store, demo)
	if err != nil {
		return nil, err
	}

	var transport device.Transport
	if demo {
		app.demoTransport = device.NewFakeTransport()
		transport = app.demoTransport
	} else {
		transport = device.NewBLETransport()
	}

	deviceConfig := config.Airis.Device
	app.session = device.NewSession(transport, device.Options{
		NamePrefix:         deviceConfig.NamePrefix,
		ServiceUUID:        deviceConfig.ServiceUUID,
		CharacteristicUUID: deviceConfig.CharacteristicUUID,
		ConnectTimeout:     deviceConfig.ConnectTimeout,
		EmergencyCooldown:  deviceConfig.EmergencyCooldown,
	})
	app.session.SetCallbacks(app.coordinator)

	if deviceConfig.Reconnect.Enabled {
		app.supervisor = device.NewSupervisor(app.session, device.SupervisorConfig{
			Interval:    deviceConfig.Reconnect.Interval,
			MaxRetries:  deviceConfig.Reconnect.MaxRetries,
			BaseBackoff: deviceConfig.Reconnect.BaseBackoff,
		})
	}

	app.workers = work.NewWorkerAdapter(config.Airis.Cron.TimeZone)
	if err = app.registerJobHandlers(); err != nil {
		return nil, err
	}
	if err = app.enqueueJobs(); err != nil {
		return nil, err
	}

	host := config.Airis.Listener.Host
	if host == "" {
		host = DEFAULT_HOST
	}

	app.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%v:%v", host, config.Airis.Listener.Port),
		Handler:      app.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
	}

	return app, nil
}

// Run starts everything, blocks until an interrupt and shuts down
func (app *App) Run() {
	app.workers.Start()

	if app.supervisor != nil {
		fatalOnError(app.supervisor.Start())
	}

	go func() {
		if !app.session.Connect(context.Background()) {
			logg.Warn(colors.Yellow("Device not connected, emergency monitoring is unavailable until it is"))
		}
	}()

	go serve(app.httpServer)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	app.cleanup()
}

// Session, Store & Coordinator expose the wired components, e.g. for one-off
// CLI commands.
func (app *App) Session() *device.Session {
	return app.session
}

func (app *App) Store() *settings.Store {
	return app.store
}

func (app *App) Coordinator() *coordinator.Coordinator {
	return app.coordinator
}

// NewCoordinator builds the alert path (dispatcher, fan-out engine and
// coordinator) on top of an opened settings store.
func NewCoordinator(config shared.AppConfig, store *settings.Store, demo bool) (*coordinator.Coordinator, error) {
	dispatcher, err := dispatch.New(config, demo)
	if err != nil {
		return nil, err
	}

	c := coordinator.New(store, newEngine(dispatcher, config.Airis.Alert), coordinator.Config{
		DefaultMessage: config.Airis.Alert.DefaultMessage,
		Cooldown:       config.Airis.Alert.Cooldown,
	})
	c.SetStatusCallback(reportAlertStatus)

	return c, nil
}

func newEngine(dispatcher dispatch.Dispatcher, config shared.AlertConfig) *alert.Engine {
	opts := []alert.EngineOption{}
	if config.SmsDelay > 0 {
		opts = append(opts, alert.WithSMSDelay(config.SmsDelay))
	}
	if config.DispatchTimeout > 0 {
		opts = append(opts, alert.WithDispatchTimeout(config.DispatchTimeout))
	}

	return alert.NewEngine(dispatcher, opts...)
}

func reportAlertStatus(status coordinator.Status) {
	switch {
	case status.Misconfigured():
		logg.Warnf(colors.Yellow("Emergency detected but alert not sent: %v"), status.Error)
	case status.Error != "":
		logg.Errorf(colors.Red("Alert not sent: %v"), status.Error)
	case status.Name() == coordinator.ALERT_PARTIAL:
		logg.Warnf(colors.Yellow("Alert partially sent: %v"), status.Outcome)
	case status.Name() == coordinator.ALERT_FAILED:
		logg.Errorf(colors.Red("Alert failed: %v"), status.Outcome)
	default:
		logg.Infof(colors.Green("Alert sent: %v"), status.Outcome)
	}
}
