package main

import (
	"fmt"
	"image/color"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/milk9111/blendrig/animator"
	"github.com/milk9111/blendrig/driver"
	"github.com/milk9111/blendrig/engine"
	"github.com/milk9111/blendrig/loader"
	"github.com/milk9111/blendrig/logging"
	"github.com/milk9111/blendrig/ragdoll"
	"golang.org/x/image/colornames"
)

const pixelsPerMetre = 200

type options struct {
	Model   string
	Machine string
	Script  string
	Ragdoll string
	Config  string
	Debug   bool
}

// scriptSlot lets a reloaded script replace the running one without
// registering a second driver with the engine.
type scriptSlot struct {
	script *driver.Script
}

func (s *scriptSlot) Drive(now, dt float32) error {
	if s.script == nil {
		return nil
	}
	return s.script.Drive(now, dt)
}

type viewer struct {
	opts    options
	eng     *engine.Engine
	anim    *animator.Animator
	slot    *scriptSlot
	watcher *loader.Watcher
	log     *slog.Logger

	paused  bool
	status  string
	screenW int
	screenH int
}

func newViewer(opts options) (*viewer, error) {
	cfg := engine.DefaultConfig()
	if opts.Config != "" {
		var err error
		if cfg, err = engine.LoadConfig(opts.Config); err != nil {
			return nil, err
		}
	}
	level := logging.ParseLevel(cfg.LogLevel)
	if opts.Debug {
		level = slog.LevelDebug
	}
	log := logging.New(level)

	eng := engine.New(cfg, engine.Options{Log: log})
	asset, err := eng.ImportModel(opts.Model)
	if err != nil {
		return nil, err
	}
	anim, err := eng.CreateAnimator(asset.Skeleton.Name, asset.Skeleton)
	if err != nil {
		return nil, err
	}

	v := &viewer{opts: opts, eng: eng, anim: anim, slot: &scriptSlot{}, log: log}
	if opts.Machine != "" {
		if err := eng.LoadStateMachine(anim, opts.Machine); err != nil {
			return nil, err
		}
	}
	if opts.Ragdoll != "" {
		spec, err := ragdoll.LoadSpec(opts.Ragdoll)
		if err != nil {
			return nil, err
		}
		if _, err := eng.CreateRagdoll(anim, spec); err != nil {
			return nil, err
		}
	}
	if opts.Script != "" {
		if v.slot.script, err = driver.Load(opts.Script, anim, log); err != nil {
			return nil, err
		}
	}
	eng.AddDriver(v.slot)

	dirs := map[string]bool{}
	for _, p := range []string{opts.Machine, opts.Script} {
		if p != "" {
			dirs[filepath.Dir(p)] = true
		}
	}
	if len(dirs) > 0 {
		paths := make([]string, 0, len(dirs))
		for d := range dirs {
			paths = append(paths, d)
		}
		if v.watcher, err = loader.NewWatcher(paths...); err != nil {
			log.Warn("viewer: hot reload disabled", "error", err)
		}
	}
	return v, nil
}

func (v *viewer) Close() {
	if v.watcher != nil {
		_ = v.watcher.Close()
	}
}

func (v *viewer) Update() error {
	v.drainReloads()
	v.handleInput()
	if !v.paused {
		v.eng.Tick(1 / float32(ebiten.TPS()))
	}
	return nil
}

func (v *viewer) drainReloads() {
	if v.watcher == nil {
		return
	}
	for {
		select {
		case path, ok := <-v.watcher.Events:
			if !ok {
				v.watcher = nil
				return
			}
			v.reload(path)
		case err, ok := <-v.watcher.Errors:
			if ok {
				v.log.Warn("viewer: watch error", "error", err)
			}
		default:
			return
		}
	}
}

func (v *viewer) reload(path string) {
	switch {
	case samePath(path, v.opts.Machine):
		if err := v.eng.LoadStateMachine(v.anim, path); err != nil {
			v.status = "reload failed: " + err.Error()
			return
		}
		v.status = "reloaded " + filepath.Base(path)
	case samePath(path, v.opts.Script):
		s, err := driver.Load(path, v.anim, v.log)
		if err != nil {
			v.status = "script failed: " + err.Error()
			return
		}
		v.slot.script = s
		v.status = "reloaded " + filepath.Base(path)
	}
}

func samePath(a, b string) bool {
	if b == "" {
		return false
	}
	return filepath.Clean(a) == filepath.Clean(b)
}

// Keys request transitions by name so any state machine can be poked at.
var transitionKeys = map[ebiten.Key]string{
	ebiten.KeySpace: "jump",
	ebiten.KeyD:     "dance",
	ebiten.KeyS:     "stop",
	ebiten.KeyR:     "collapse",
	ebiten.KeyE:     "recover",
}

func (v *viewer) handleInput() {
	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		v.paused = !v.paused
	}
	for key, name := range transitionKeys {
		if inpututil.IsKeyJustPressed(key) {
			if err := v.anim.TransitionErr(name); err != nil {
				v.status = err.Error()
			}
		}
	}
	params := v.anim.Params()
	if params.Exists("speed") {
		speed, _ := params.Get("speed")
		if ebiten.IsKeyPressed(ebiten.KeyUp) {
			_ = params.Set("speed", min(speed+0.01, 1))
		}
		if ebiten.IsKeyPressed(ebiten.KeyDown) {
			_ = params.Set("speed", max(speed-0.01, 0))
		}
	}
}

func (v *viewer) toScreen(x, y float32) (float32, float32) {
	return float32(v.screenW)/2 + x*pixelsPerMetre, float32(v.screenH)*0.85 - y*pixelsPerMetre
}

func (v *viewer) Draw(screen *ebiten.Image) {
	screen.Fill(color.RGBA{R: 24, G: 26, B: 32, A: 255})

	gx0, gy := v.toScreen(-10, 0)
	gx1, _ := v.toScreen(10, 0)
	vector.StrokeLine(screen, gx0, gy, gx1, gy, 2, colornames.Dimgray, false)

	sk := v.anim.Skeleton()
	pose := v.anim.Pose()
	for i, j := range sk.Joints {
		p := pose.Global[i].Col(3)
		x, y := v.toScreen(p[0], p[1])
		if j.Parent >= 0 {
			pp := pose.Global[j.Parent].Col(3)
			px, py := v.toScreen(pp[0], pp[1])
			vector.StrokeLine(screen, px, py, x, y, 4, colornames.Lightgrey, true)
		}
		vector.StrokeRect(screen, x-3, y-3, 6, 6, 1, colornames.Orange, false)
	}

	ebitenutil.DebugPrintAt(screen, v.hud(), 10, 10)
}

func (v *viewer) hud() string {
	var b strings.Builder
	fmt.Fprintf(&b, "state: %s", v.anim.CurrentState())
	if next := v.anim.NextState(); next != "" {
		fmt.Fprintf(&b, " -> %s (%.0f%%)", next, v.anim.Progress()*100)
	}
	fmt.Fprintf(&b, "\ntime: %.2fs", v.eng.Clock().Now())
	if v.paused {
		b.WriteString(" [paused]")
	}
	for _, name := range v.anim.Params().Names() {
		val, _ := v.anim.Params().Get(name)
		fmt.Fprintf(&b, "\n%s: %.2f", name, val)
	}
	b.WriteString("\n\nspace jump  d dance  s stop  r collapse  e recover  up/down speed  p pause")
	if v.status != "" {
		b.WriteString("\n" + v.status)
	}
	return b.String()
}

func (v *viewer) Layout(outsideWidth, outsideHeight int) (int, int) {
	v.screenW, v.screenH = outsideWidth, outsideHeight
	return outsideWidth, outsideHeight
}
