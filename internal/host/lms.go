package host

import (
	"fmt"

	"github.com/mind-engage/coursepack/internal/logger"
)

// MaxFrameHops bounds each walk up a frame chain. Cyclic or hostile chains
// stop here.
const MaxFrameHops = 500

// API is the SCORM 1.2 procedural interface. Booleans travel as the
// strings "true" and "false".
type API interface {
	LMSInitialize(arg string) string
	LMSFinish(arg string) string
	LMSGetValue(key string) string
	LMSSetValue(key, value string) string
	LMSCommit(arg string) string
	LMSGetLastError() string
	LMSGetErrorString(code string) string
	LMSGetDiagnostic(code string) string
}

// Frame is one window of the page's frame tree.
type Frame interface {
	API() (API, bool)
	Parent() (Frame, bool)
	Opener() (Frame, bool)
}

// FindAPI walks from start up through its parents, then through the
// opener of the topmost frame reached and that opener's parents, and so
// on. Each walk is bounded by MaxFrameHops.
func FindAPI(start Frame) (API, bool) {
	if start == nil {
		return nil, false
	}
	f := start
	for range MaxFrameHops {
		api, top, ok := walkParents(f)
		if ok {
			return api, true
		}
		next, ok := safeOpener(top)
		if !ok {
			return nil, false
		}
		f = next
	}
	return nil, false
}

func walkParents(f Frame) (API, Frame, bool) {
	for range MaxFrameHops {
		if api, ok := safeAPI(f); ok {
			return api, f, true
		}
		p, ok := safeParent(f)
		if !ok {
			return nil, f, false
		}
		f = p
	}
	return nil, f, false
}

// Frame implementations may be backed by script engines; a panic while
// probing counts as "not here".
func safeAPI(f Frame) (api API, ok bool) {
	defer func() {
		if recover() != nil {
			api, ok = nil, false
		}
	}()
	api, ok = f.API()
	return api, ok && api != nil
}

func safeParent(f Frame) (p Frame, ok bool) {
	defer func() {
		if recover() != nil {
			p, ok = nil, false
		}
	}()
	p, ok = f.Parent()
	return p, ok && p != nil
}

func safeOpener(f Frame) (o Frame, ok bool) {
	defer func() {
		if recover() != nil {
			o, ok = nil, false
		}
	}()
	o, ok = f.Opener()
	return o, ok && o != nil
}

// LMSAdapter talks to a SCORM 1.2 API found in the frame chain.
type LMSAdapter struct {
	api         API
	initialized bool
	log         *logger.Logger
}

func NewLMSAdapter(api API, log *logger.Logger) *LMSAdapter {
	if log == nil {
		log = logger.Nop()
	}
	return &LMSAdapter{api: api, log: log}
}

func (a *LMSAdapter) Mode() Mode { return ModeLMS }

// call invokes the host and converts a panic into a failed call.
func (a *LMSAdapter) call(name string, fn func() string) (out string, ok bool) {
	if a.api == nil {
		return "", false
	}
	defer func() {
		if r := recover(); r != nil {
			a.log.Warn("lms call panicked", "call", name, "panic", fmt.Sprint(r))
			out, ok = "", false
		}
	}()
	return fn(), true
}

func (a *LMSAdapter) Initialize() bool {
	r, ok := a.call("LMSInitialize", func() string { return a.api.LMSInitialize("") })
	if !ok || !boolString(r) {
		a.log.Warn("LMSInitialize failed", "error", a.lastError())
		return false
	}
	a.initialized = true
	status, _ := a.ReadValue(KeyLessonStatus)
	if status == "" || status == "not attempted" {
		a.WriteValue(KeyLessonStatus, "incomplete")
	}
	return true
}

func (a *LMSAdapter) Terminate() bool {
	if !a.initialized {
		return false
	}
	r, ok := a.call("LMSFinish", func() string { return a.api.LMSFinish("") })
	a.initialized = false
	return ok && boolString(r)
}

// ReadValue treats any non-zero LMSGetLastError after the read as a miss.
func (a *LMSAdapter) ReadValue(key string) (string, bool) {
	if !a.initialized {
		return "", false
	}
	v, ok := a.call("LMSGetValue", func() string { return a.api.LMSGetValue(key) })
	if !ok {
		return "", false
	}
	code, _ := a.call("LMSGetLastError", a.api.LMSGetLastError)
	if code != "" && code != "0" {
		return "", false
	}
	return v, true
}

func (a *LMSAdapter) WriteValue(key, value string) bool {
	if !a.initialized {
		return false
	}
	r, ok := a.call("LMSSetValue", func() string { return a.api.LMSSetValue(key, value) })
	if !ok || !boolString(r) {
		a.log.Debug("LMSSetValue rejected", "key", key, "error", a.lastError())
		return false
	}
	return true
}

func (a *LMSAdapter) Commit() bool {
	if !a.initialized {
		return false
	}
	r, ok := a.call("LMSCommit", func() string { return a.api.LMSCommit("") })
	return ok && boolString(r)
}

func (a *LMSAdapter) lastError() string {
	code, ok := a.call("LMSGetLastError", func() string { return a.api.LMSGetLastError() })
	if !ok || code == "" || code == "0" {
		return ""
	}
	msg, _ := a.call("LMSGetErrorString", func() string { return a.api.LMSGetErrorString(code) })
	diag, _ := a.call("LMSGetDiagnostic", func() string { return a.api.LMSGetDiagnostic(code) })
	return fmt.Sprintf("%s %s %s", code, msg, diag)
}
