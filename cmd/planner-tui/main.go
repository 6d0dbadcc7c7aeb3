// Command planner-tui edits a reforestation project in the terminal.
//
//	planner-tui [project.json]
//
// A missing file is created on the first save. Without an argument
// proyecto.json is used, starting from the basic template if it does not
// exist yet.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/reforesta/planner/backend-go/internal/asset"
	"github.com/reforesta/planner/backend-go/internal/config"
	"github.com/reforesta/planner/backend-go/internal/document"
	"github.com/reforesta/planner/backend-go/internal/engine"
	"github.com/reforesta/planner/backend-go/internal/logger"
	"github.com/reforesta/planner/backend-go/internal/state"
)

const defaultPath = "proyecto.json"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "planner-tui:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// The terminal belongs to the UI, so logs go to a file.
	logFile, err := os.OpenFile("planner-tui.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer logFile.Close()
	log := logger.New(logFile, cfg.LogLevel, cfg.LogFormat)

	c := newCanvas(80, 24)
	eng := engine.New(engine.Config{
		State: state.Config{
			MaxUndo:    cfg.MaxUndoSteps,
			MinSpacing: cfg.MinSpacingMeters,
		},
		Decoder:  asset.DataURLDecoder{},
		Renderer: c,
		Logger:   log,
	})

	path := defaultPath
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	if err := open(eng, path, len(os.Args) > 1); err != nil {
		return err
	}

	_, err = tea.NewProgram(newModel(eng, c, path), tea.WithAltScreen(), tea.WithMouseCellMotion()).Run()
	return err
}

// open loads path into eng. A missing explicit path starts an empty
// project; no path at all starts from the basic template.
func open(eng *engine.Engine, path string, explicit bool) error {
	ctx := context.Background()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		return eng.LoadProject(ctx, string(data))
	case !errors.Is(err, fs.ErrNotExist):
		return err
	case explicit:
		return nil
	}
	return eng.LoadTemplate(ctx, document.TemplateBasic)
}
