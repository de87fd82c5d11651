package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wufe/catears-dashboard/internal/schema"
	"github.com/wufe/catears-dashboard/internal/store"
	"github.com/wufe/catears-dashboard/internal/wire"
)

// previewUpdated carries the configuration to render in the preview pane.
type previewUpdated struct {
	cfg schema.Configuration
}

// PreviewModel shows the wire document the device would receive, padded
// chiptune and all, in a scrollable pane.
type PreviewModel struct {
	viewport viewport.Model
	ready    bool
	content  string

	Title       string
	BorderColor string
	width       int
	height      int
}

func NewPreviewModel(cfg schema.Configuration) *PreviewModel {
	m := &PreviewModel{
		Title:       "Device JSON",
		BorderColor: "205",
	}
	m.content = renderDocument(cfg)
	return m
}

func renderDocument(cfg schema.Configuration) string {
	doc, err := wire.MarshalIndent(cfg)
	if err != nil {
		return redTextStyle.Render(fmt.Sprintf("Error: %v", err))
	}
	return string(doc)
}

func (m *PreviewModel) SetSize(width, height int) {
	m.width = width
	m.height = height

	if !m.ready {
		m.viewport = viewport.New(width-4, height-3)
		m.viewport.SetContent(m.content)
		m.ready = true
	} else {
		m.viewport.Width = width - 4
		m.viewport.Height = height - 3
	}
}

func (m *PreviewModel) Update(msg tea.Msg) (*PreviewModel, tea.Cmd) {
	if msg, ok := msg.(previewUpdated); ok {
		m.content = renderDocument(msg.cfg)
		if m.ready {
			m.viewport.SetContent(m.content)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *PreviewModel) View() string {
	if !m.ready {
		return ""
	}

	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(m.BorderColor)).
		Padding(0, 1)
	if m.width > 0 {
		style = style.Width(m.width - 2)
	}
	if m.height > 0 {
		style = style.Height(m.height - 2)
	}

	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(m.BorderColor)).
		Render(fmt.Sprintf("%s (%d%%)", m.Title, int(m.viewport.ScrollPercent()*100)))

	return style.Render(fmt.Sprintf("%s\n%s", title, m.viewport.View()))
}

type previewOptions struct {
	useDefault bool
	lights     string
	audio      string
}

// writePreview prints the canonical document for the input at path ("-"
// reads stdin), or for the default configuration. Presets are applied on
// top through a State Store so both ears follow the light preset.
func writePreview(out io.Writer, in io.Reader, path string, opts previewOptions) error {
	s := store.New()

	if !opts.useDefault && path != "" {
		var raw []byte
		var err error
		if path == "-" {
			raw, err = io.ReadAll(in)
		} else {
			raw, err = os.ReadFile(path)
		}
		if err != nil {
			return fmt.Errorf("error reading %s: %w", path, err)
		}
		if err := s.LoadState(raw); err != nil {
			return err
		}
	}

	if opts.lights != "" {
		mode, ok := schema.LightPreset(opts.lights)
		if !ok {
			return fmt.Errorf("unknown light preset %q (one of %s)", opts.lights, strings.Join(schema.LightPresetNames, ", "))
		}
		s.SetLightMode(mode)
	}
	if opts.audio != "" {
		tune, ok := schema.ChiptunePreset(opts.audio)
		if !ok {
			return fmt.Errorf("unknown chiptune preset %q (one of %s)", opts.audio, strings.Join(schema.ChiptunePresetNames, ", "))
		}
		s.SetAudioMode(tune)
	}

	doc, err := wire.MarshalIndent(s.Snapshot())
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(doc))
	return err
}
