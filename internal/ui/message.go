package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/dlapi/internal/models"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgJobsFetched MsgKind = iota
	MsgTick
	MsgJobDeleted
)

type jobsFetched struct {
	jobs []*models.Job
	err  error
}

type jobDeleted struct {
	id  int64
	err error
}

// jobsFetchedMsg is the constructor for [MsgJobsFetched]
func jobsFetchedMsg(jobs []*models.Job, err error) Msg {
	return Msg{kind: MsgJobsFetched, data: jobsFetched{jobs, err}}
}

// tickMsg is the constructor for [MsgTick]
func tickMsg(t time.Time) Msg {
	return Msg{kind: MsgTick, data: t}
}

// jobDeletedMsg is the constructor for [MsgJobDeleted]
func jobDeletedMsg(id int64, err error) Msg {
	return Msg{kind: MsgJobDeleted, data: jobDeleted{id, err}}
}
