// Package app wires the client side together: the gateway client, the local
// state file, the state store and the monitoring engine.
package app

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"roast-tracker/config"
	"roast-tracker/internal/gateway"
	"roast-tracker/internal/model"
	"roast-tracker/internal/monitor"
	"roast-tracker/internal/persist"
	"roast-tracker/internal/roast"
	"roast-tracker/internal/state"
)

const stopTimeout = 10 * time.Second

// Options overrides the pieces New would otherwise build from config.
type Options struct {
	Config config.ClientConfig
	// Offline skips the gateway entirely.
	Offline   bool
	Gateway   gateway.Gateway
	Persister persist.Persister
	Detector  roast.Detector
	Source    monitor.Source
	Scheduler monitor.Scheduler
	Logger    *log.Logger
}

// App is a ready client.
type App struct {
	Store    *state.Store
	Engine   *monitor.Engine
	Detector roast.Detector
	Gateway  gateway.Gateway

	logger         *log.Logger
	cancelIdentity func()
	stops          sync.WaitGroup
}

// New builds the client and resolves the current identity. An unreachable
// gateway is logged; the app still works from the local state.
func New(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "roastctl ", log.LstdFlags)
	}

	gw := opts.Gateway
	if gw == nil && !opts.Offline {
		gw = gateway.NewClient(cfg.GatewayURL, gateway.NewFileTokens(cfg.SessionPath),
			gateway.WithTimeout(cfg.RequestTimeout))
	}
	persister := opts.Persister
	if persister == nil {
		persister = persist.NewFile(cfg.StatePath, logger)
	}
	detector := opts.Detector
	if detector == nil {
		detector = roast.NewSimulator(uint64(time.Now().UnixNano()))
	}

	storeOpts := state.Options{
		Persister:       persister,
		AnonymousWrites: cfg.AnonymousWrites,
		Logger:          logger,
	}
	if gw != nil {
		storeOpts.Gateway = gw
	}
	store, err := state.Open(ctx, storeOpts)
	if err != nil {
		return nil, err
	}

	a := &App{
		Store:    store,
		Detector: detector,
		Gateway:  gw,
		logger:   logger,
		Engine: monitor.New(monitor.Options{
			Store:           store,
			Detector:        detector,
			Source:          opts.Source,
			Scheduler:       opts.Scheduler,
			SampleInterval:  cfg.SampleInterval,
			ElapsedInterval: cfg.ElapsedInterval,
			NearTargetDelta: cfg.NearTargetDelta,
			Logger:          logger,
		}),
	}
	a.cancelIdentity = store.OnIdentityChange(a.identityChanged)

	if res := store.Initialize(ctx); res.Err != nil {
		logger.Printf("WARN: working offline: %v", res.Err)
	}
	return a, nil
}

// Logout ends a running session while the user is still signed in, so the
// completed session reaches the backend, and then signs out.
func (a *App) Logout(ctx context.Context) state.Result[model.Identity] {
	if summary, ok := a.Engine.Stop(ctx); ok {
		a.logger.Printf("signing out: stopped session %s", summary.Session.ID)
	}
	return a.Store.Logout(ctx)
}

// identityChanged ends a running session when the gateway drops the user,
// e.g. on an expired token. It may be called from inside an engine
// operation, so the stop runs separately.
func (a *App) identityChanged(identity model.Identity) {
	if identity.Authenticated {
		return
	}
	a.stops.Add(1)
	go func() {
		defer a.stops.Done()
		ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		if summary, ok := a.Engine.Stop(ctx); ok {
			a.logger.Printf("signed out: stopped session %s", summary.Session.ID)
		}
	}()
}

// Detect scores one still image. The result is added to the history when
// auto-save is enabled; the returned record is nil otherwise.
func (a *App) Detect(ctx context.Context, imageRef string, image []byte) (roast.Estimate, *model.DetectionRecord, error) {
	est, err := a.Detector.Detect(ctx, roast.Request{Image: image})
	if err != nil {
		return roast.Estimate{}, nil, err
	}
	if !a.Store.Settings().AutoSave {
		return est, nil, nil
	}
	record, err := a.Store.AddDetectionRecord(ctx, model.DetectionInput{
		ImageRef:   imageRef,
		RoastIndex: est.Index,
		RoastLabel: est.Label,
		Confidence: est.Confidence,
		Advisory:   est.Advisory,
	}).Get()
	if err != nil {
		return est, nil, err
	}
	return est, &record, nil
}

// Close stops any running session and saves the state.
func (a *App) Close() error {
	a.cancelIdentity()
	a.Engine.Close(stopTimeout)
	a.stops.Wait()
	return a.Store.Close()
}
