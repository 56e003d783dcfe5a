// Copyright 2025 Arion Yau
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

package cli

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Main TUI model that routes between screens
type model struct {
	currentScreen screen
	width         int
	height        int
	quitting      bool

	debug      bool
	test       bool
	configPath string

	// Screen models
	setupModel  SetupModel
	remoteModel RemoteModel
}

func initialModel(debug, test bool, configPath string) model {
	return model{
		currentScreen: screenDeviceSetup,
		debug:         debug,
		test:          test,
		configPath:    configPath,
		setupModel:    NewSetupModel(debug, test, configPath),
	}
}

func (m model) Init() tea.Cmd {
	return m.setupModel.Init()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m.quit()
		case "esc":
			if m.currentScreen == screenDeviceSetup {
				return m.quit()
			}
		case "q":
			// in setup, q is text
			if m.currentScreen == screenRemoteControl {
				m.remoteModel.Close()
				m.currentScreen = screenDeviceSetup
				m.setupModel = NewSetupModel(m.debug, m.test, m.configPath)
				return m, m.setupModel.Init()
			}
		}
	}

	switch m.currentScreen {
	case screenDeviceSetup:
		var cmd tea.Cmd
		m.setupModel, cmd = m.setupModel.Update(msg)

		if m.setupModel.IsConnected() {
			m.remoteModel = NewRemoteModel(
				m.setupModel.Client(),
				m.setupModel.PoweredOn(),
				m.debug,
				m.test,
			)
			m.currentScreen = screenRemoteControl
			return m, tea.Batch(cmd, m.remoteModel.Init())
		}

		return m, cmd

	case screenRemoteControl:
		var cmd tea.Cmd
		m.remoteModel, cmd = m.remoteModel.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m model) quit() (tea.Model, tea.Cmd) {
	if m.currentScreen == screenRemoteControl {
		m.remoteModel.Close()
	}
	m.quitting = true
	return m, tea.Quit
}

func (m model) View() string {
	if m.quitting {
		return successStyle.Render("Thanks for using Viera CLI!") + "\n"
	}

	switch m.currentScreen {
	case screenDeviceSetup:
		return m.setupModel.View()
	case screenRemoteControl:
		return m.remoteModel.View()
	default:
		return "Unknown screen"
	}
}

// StartTUI runs the interactive remote until the user quits
func StartTUI(debug, test bool, configPath string) error {
	p := tea.NewProgram(
		initialModel(debug, test, configPath),
		tea.WithAltScreen(),
	)

	defer func() {
		if r := recover(); r != nil {
			p.Kill()
		}
	}()

	_, err := p.Run()
	return err
}
