package lessonchat

import (
	"github.com/abhisek/lessonloop/internal/tutor"
)

// sessionLoadedMsg is sent when the session and its history are loaded.
type sessionLoadedMsg struct {
	View *tutor.SessionView
	Err  error
}

// turnDoneMsg is sent when the engine finishes a turn or a generation.
type turnDoneMsg struct {
	Result *tutor.TurnResult
	Err    error
}
