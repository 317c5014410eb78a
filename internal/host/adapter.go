// Package host abstracts the environment an exported package runs in: a
// SCORM 1.2 LMS reached through the frame chain, standalone playback with
// durable local storage, or an embedding page listening for one-way
// bridge messages.
package host

type Mode string

const (
	ModeLMS        Mode = "lms"
	ModeStandalone Mode = "standalone"
	ModeBridge     Mode = "bridge"
	ModeNone       Mode = "none"
)

// SCORM 1.2 data model keys used by the runtime.
const (
	KeyLessonStatus  = "cmi.core.lesson_status"
	KeyScoreRaw      = "cmi.core.score.raw"
	KeyScoreMin      = "cmi.core.score.min"
	KeyScoreMax      = "cmi.core.score.max"
	KeySessionTime   = "cmi.core.session_time"
	KeyExit          = "cmi.core.exit"
	KeyStudentName   = "cmi.core.student_name"
	KeySuspendData   = "cmi.suspend_data"
	KeyMasteryScore  = "cmi.student_data.mastery_score"
	KeyInteractionsN = "cmi.interactions._count"
)

// Adapter is the uniform record-keeping contract. Every call is safe on an
// adapter that failed to initialize; it just reports false.
type Adapter interface {
	Initialize() bool
	Terminate() bool
	ReadValue(key string) (string, bool)
	WriteValue(key, value string) bool
	Commit() bool
	Mode() Mode
}

// Messenger is implemented by adapters that can also push bridge messages.
type Messenger interface {
	Send(t MessageType, payload any) bool
}

// NullAdapter is used when no host is found. Nothing persists.
type NullAdapter struct{}

func (NullAdapter) Initialize() bool { return false }
func (NullAdapter) Terminate() bool { return false }
func (NullAdapter) ReadValue(string) (string, bool) { return "", false }
func (NullAdapter) WriteValue(string, string) bool { return false }
func (NullAdapter) Commit() bool { return false }
func (NullAdapter) Mode() Mode { return ModeNone }

func boolString(s string) bool { return s == "true" }
