package picker

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubeterm/kubeterm/pkg/k8s/exec"
)

var testContainers = []exec.ContainerInfo{
	{Name: "app", Image: "nginx:1.27", Ready: true},
	{Name: "sidecar", Image: "envoy:v1.30", Ready: false},
	{Name: "init-db", Image: "busybox:1.36", Ready: false},
}

func TestChooseSingleContainerSkipsUI(t *testing.T) {
	name, err := Choose("web-0", testContainers[:1])
	require.NoError(t, err)
	assert.Equal(t, "app", name)
}

func TestChooseEmpty(t *testing.T) {
	_, err := Choose("web-0", nil)
	assert.Error(t, err)
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg(tea.Key{Type: tea.KeyEnter})
	case "down":
		return tea.KeyMsg(tea.Key{Type: tea.KeyDown})
	case "esc":
		return tea.KeyMsg(tea.Key{Type: tea.KeyEsc})
	default:
		return tea.KeyMsg(tea.Key{Type: tea.KeyRunes, Runes: []rune(s)})
	}
}

func update(m tea.Model, msg tea.Msg) tea.Model {
	next, _ := m.Update(msg)
	return next
}

func TestModelSelectsHighlighted(t *testing.T) {
	var m tea.Model = newModel("web-0", testContainers)
	m = update(m, tea.WindowSizeMsg{Width: 80, Height: 24})

	m = update(m, keyMsg("down"))
	m = update(m, keyMsg("enter"))

	final, ok := m.(model)
	require.True(t, ok)
	assert.Equal(t, "sidecar", final.chosen)
	assert.False(t, final.aborted)
}

func TestModelDefaultsToFirst(t *testing.T) {
	var m tea.Model = newModel("web-0", testContainers)
	m = update(m, keyMsg("enter"))

	final, ok := m.(model)
	require.True(t, ok)
	assert.Equal(t, "app", final.chosen)
}

func TestModelAbort(t *testing.T) {
	for _, key := range []string{"q", "esc"} {
		var m tea.Model = newModel("web-0", testContainers)
		m = update(m, keyMsg(key))

		final, ok := m.(model)
		require.True(t, ok)
		assert.True(t, final.aborted, "key %s should abort", key)
		assert.Empty(t, final.chosen)
	}
}

func TestItemRendering(t *testing.T) {
	ready := item{info: testContainers[0]}
	assert.Equal(t, "app", ready.Title())
	assert.Contains(t, ready.Description(), "nginx:1.27")
	assert.Contains(t, ready.Description(), "Ready")

	notReady := item{info: testContainers[1]}
	assert.Contains(t, notReady.Description(), "Not Ready")
}
