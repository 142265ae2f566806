package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/milk9111/blendrig/assets"
)

func main() {
	model := flag.String("model", "", "glTF file with the skeleton and clips")
	machine := flag.String("machine", "", "state machine document (yaml or json)")
	script := flag.String("script", "", "tengo driver script (optional)")
	ragdollPath := flag.String("ragdoll", "", "ragdoll definition (optional)")
	config := flag.String("config", "", "engine config (optional)")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	// With no model, run the embedded hero rig from a scratch directory so
	// its files can still be edited and hot reloaded.
	if *model == "" {
		dir, err := os.MkdirTemp("", "blendrig-viewer-")
		if err != nil {
			log.Fatal(err)
		}
		if err := assets.Extract(dir); err != nil {
			log.Fatal(err)
		}
		log.Printf("viewer: running the example rig from %s", dir)
		*model = filepath.Join(dir, assets.Model)
		*machine = filepath.Join(dir, assets.StateMachine)
		*script = filepath.Join(dir, assets.Script)
		*ragdollPath = filepath.Join(dir, assets.Ragdoll)
		*config = filepath.Join(dir, assets.EngineConfig)
	}

	v, err := newViewer(options{
		Model:   *model,
		Machine: *machine,
		Script:  *script,
		Ragdoll: *ragdollPath,
		Config:  *config,
		Debug:   *debug,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer v.Close()

	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSize(1280, 720)
	ebiten.SetWindowTitle("blendrig viewer")

	if err := ebiten.RunGame(v); err != nil {
		log.Fatal(err)
	}
}
