package main

import (
	"fmt"
	"log"

	"github.com/gdamore/tcell/v2"
	"github.com/hajimehoshi/ebiten/v2"

	"github.com/plus3/frameloop/loop"
	"github.com/plus3/frameloop/platform/ebitenwin"
	"github.com/plus3/frameloop/platform/term"
)

// bindings maps the demo's actions to a platform's key codes.
type bindings struct {
	Report   loop.Key
	Quit     []loop.Key
	QuitHint string
}

func termBindings() bindings {
	return bindings{
		Report:   term.RuneKey('a'),
		Quit:     []loop.Key{term.SpecialKey(tcell.KeyEscape), term.RuneKey('q')},
		QuitHint: "Esc or q",
	}
}

func ebitenBindings() bindings {
	return bindings{
		Report:   ebitenwin.KeyOf(ebiten.KeyA),
		Quit:     []loop.Key{ebitenwin.KeyOf(ebiten.KeyEscape), ebitenwin.KeyOf(ebiten.KeyQ)},
		QuitHint: "Esc or q",
	}
}

// KeyReporter logs presses of the report key and pointer drags, and stops the
// loop on a quit key.
type KeyReporter struct {
	loop.BaseSystem
	Keys   bindings
	Logger *log.Logger

	presses int
}

func (r *KeyReporter) Update(dt float64) error {
	if len(r.Keys.Quit) == 0 {
		return nil
	}
	in := r.Input()

	for _, k := range r.Keys.Quit {
		if in.JustPressed(k) {
			r.Logger.Println("quit requested")
			r.Loop().RequestStop()
			return nil
		}
	}

	if in.JustPressed(r.Keys.Report) {
		in.Consume(r.Keys.Report)
		r.presses++
		r.Logger.Printf("A pressed (%d)", r.presses)
	}

	if in.IsButtonHeld(1) {
		if dx, dy := in.DragDelta(); dx != 0 || dy != 0 {
			r.Logger.Printf("drag %+d,%+d", dx, dy)
		}
	}
	return nil
}

// Banner draws a status line with the frame count and delta.
type Banner struct {
	loop.BaseSystem
	Quit string

	frames int
}

func (b *Banner) Update(dt float64) error {
	b.frames++
	return nil
}

func (b *Banner) Render(c loop.Canvas) error {
	text := b.text()
	switch c := c.(type) {
	case *term.Canvas:
		c.SetString(1, 1, text, tcell.StyleDefault.Foreground(tcell.ColorGreen))
	case *ebitenwin.Canvas:
		c.Print(8, 8, text)
	default:
		return fmt.Errorf("banner: unsupported canvas %T", c)
	}
	return nil
}

func (b *Banner) text() string {
	text := fmt.Sprintf("frameloop: frame %d, dt %.1f ms", b.frames, b.Delta()*1000)
	if b.Quit != "" {
		text += ", press " + b.Quit + " to quit"
	}
	return text
}
