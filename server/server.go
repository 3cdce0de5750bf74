// Package server is the landcover HTTP service: it accepts images, runs the
// segmentation pipeline on them in the background, and serves the results.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cyclopcam/landcover/pkg/regions"
	"github.com/cyclopcam/landcover/pkg/render"
	"github.com/cyclopcam/landcover/pkg/seg"
	"github.com/cyclopcam/landcover/server/config"
	"github.com/cyclopcam/landcover/server/rundb"
	"github.com/cyclopcam/logs"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

type Server struct {
	Log    logs.Log
	Config *config.Config
	RunDB  *rundb.RunDB

	model    seg.Classifier
	palette  *render.Palette
	conn     regions.Connectivity
	cleanup  regions.CleanupMap
	runs     *runManager
	signalIn chan os.Signal

	httpServer *http.Server
	httpRouter *httprouter.Router
	wsUpgrader websocket.Upgrader
}

func NewServer(configFile string) (*Server, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("Invalid config %v: %w", configFile, err)
	}
	logger, err := logs.NewLog()
	if err != nil {
		return nil, err
	}
	model, palette, err := LoadModel(cfg.Model.ConfigFile)
	if err != nil {
		return nil, err
	}
	runDB, err := rundb.Open(logger, filepath.Join(cfg.Server.DataRoot, "runs.sqlite"))
	if err != nil {
		return nil, err
	}
	if err := runDB.MarkInterrupted(); err != nil {
		return nil, err
	}
	conn, err := cfg.Connectivity()
	if err != nil {
		return nil, err
	}
	cleanup, err := cfg.CleanupMap()
	if err != nil {
		return nil, err
	}
	s := &Server{
		Log:     logger,
		Config:  cfg,
		RunDB:   runDB,
		model:   model,
		palette: palette,
		conn:    conn,
		cleanup: cleanup,
	}
	s.runs = newRunManager(logger, cfg.Server.KeepRuns, s.executeRun)
	s.setupHttpRoutes()
	logger.Infof("Model '%v' with %v classes, tile size %v", model.Config().Architecture, model.Config().NumClasses(), model.Config().Width)
	return s, nil
}

// LoadModel loads a model description and builds the classifier for it.
// An empty filename loads the built in aerial land cover model.
func LoadModel(configFile string) (seg.Classifier, *render.Palette, error) {
	var modelCfg *seg.ModelConfig
	if configFile == "" {
		modelCfg = &seg.ModelConfig{
			Architecture: "palette",
			Width:        256,
			Height:       256,
			Classes:      render.AerialClassNames(),
		}
	} else {
		var err error
		modelCfg, err = seg.LoadModelConfig(configFile)
		if err != nil {
			return nil, nil, err
		}
	}
	palette := render.MakePalette(modelCfg.NumClasses())
	model, err := seg.NewPaletteClassifier(modelCfg, palette.Colors)
	if err != nil {
		return nil, nil, err
	}
	return model, palette, nil
}

// port example: ":8082"
func (s *Server) ListenHTTP(port string) error {
	s.Log.Infof("Listening on %v", port)
	s.httpServer = &http.Server{
		Addr:    port,
		Handler: s.httpRouter,
	}
	s.runs.start()
	return s.httpServer.ListenAndServe()
}

func (s *Server) ListenForKillSignals() {
	s.signalIn = make(chan os.Signal, 1)
	signal.Notify(s.signalIn, os.Interrupt, syscall.SIGTERM)
	go func() {
		if sig, ok := <-s.signalIn; ok {
			s.Log.Infof("Received OS signal '%v'. Shutting down", sig.String())
			s.Shutdown()
		}
	}()
}

func (s *Server) Shutdown() {
	s.Log.Infof("Shutdown")
	signal.Stop(s.signalIn)
	close(s.signalIn)
	s.runs.stop()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.Log.Warnf("Shutdown complete, with error: %v", err)
	} else {
		s.Log.Infof("Shutdown complete")
	}
	s.model.Close()
	s.Log.Close()
}
