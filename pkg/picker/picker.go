// Copyright (c) 2025, Kubeterm Authors.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package picker provides the interactive container selector shown when a
// pod has more than one container and none was named on the command line.
package picker

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/kubeterm/kubeterm/pkg/k8s/exec"
)

// ErrAborted is returned when the user quits the picker without choosing.
var ErrAborted = errors.New("container selection aborted")

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	readyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	notReadyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	caser = cases.Title(language.English)
)

// item adapts one container to the bubbles list.
type item struct {
	info exec.ContainerInfo
}

func (i item) Title() string { return i.info.Name }

func (i item) Description() string {
	state := notReadyStyle.Render(caser.String("not ready"))
	if i.info.Ready {
		state = readyStyle.Render(caser.String("ready"))
	}
	return fmt.Sprintf("%s  %s", i.info.Image, state)
}

func (i item) FilterValue() string { return i.info.Name }

// model is the picker's bubbletea model.
type model struct {
	list    list.Model
	chosen  string
	aborted bool
}

func newModel(pod string, containers []exec.ContainerInfo) model {
	items := make([]list.Item, 0, len(containers))
	for _, c := range containers {
		items = append(items, item{info: c})
	}

	delegate := list.NewDefaultDelegate()
	l := list.New(items, delegate, 60, 14)
	l.Title = fmt.Sprintf("select a container in %s", pod)
	l.Styles.Title = titleStyle
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(len(containers) > 6)

	return model{list: l}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			if selected, ok := m.list.SelectedItem().(item); ok {
				m.chosen = selected.info.Name
				return m, tea.Quit
			}
		case "q", "esc", "ctrl+c":
			m.aborted = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m model) View() string {
	return m.list.View()
}

// Choose runs the interactive picker and returns the selected container name.
// A single container short-circuits without UI.
func Choose(pod string, containers []exec.ContainerInfo) (string, error) {
	if len(containers) == 0 {
		return "", fmt.Errorf("pod %s has no containers", pod)
	}
	if len(containers) == 1 {
		return containers[0].Name, nil
	}

	p := tea.NewProgram(newModel(pod, containers))
	final, err := p.Run()
	if err != nil {
		return "", fmt.Errorf("container picker failed: %w", err)
	}

	m, ok := final.(model)
	if !ok || m.aborted || m.chosen == "" {
		return "", ErrAborted
	}
	return m.chosen, nil
}
