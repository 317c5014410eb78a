// Package jsframe exposes a window object living in a goja runtime as a
// host.Frame, so a JavaScript SCORM API shim can act as the LMS.
package jsframe

import (
	"fmt"

	"github.com/dop251/goja"

	"github.com/mind-engage/coursepack/internal/host"
)

// required are the calls an object must expose to count as an API.
var required = []string{"LMSInitialize", "LMSFinish", "LMSGetValue", "LMSSetValue", "LMSCommit", "LMSGetLastError"}

// Window wraps one JS window object. A goja runtime is single-threaded;
// callers serialize access.
type Window struct {
	vm  *goja.Runtime
	obj *goja.Object
}

func New(vm *goja.Runtime, window *goja.Object) *Window {
	return &Window{vm: vm, obj: window}
}

// FromScript runs src in a fresh runtime and returns its global `window`.
// If the script does not define one, the global object itself is used.
func FromScript(src string) (*Window, error) {
	vm := goja.New()
	if _, err := vm.RunString(src); err != nil {
		return nil, fmt.Errorf("jsframe: run script: %w", err)
	}
	if w, ok := objectOf(vm.Get("window")); ok {
		return New(vm, w), nil
	}
	return New(vm, vm.GlobalObject()), nil
}

func objectOf(v goja.Value) (*goja.Object, bool) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, false
	}
	o, ok := v.(*goja.Object)
	return o, ok
}

func (w *Window) API() (host.API, bool) {
	o, ok := objectOf(w.obj.Get("API"))
	if !ok {
		return nil, false
	}
	a := &api{vm: w.vm, obj: o, fns: map[string]goja.Callable{}}
	for _, name := range required {
		fn, ok := goja.AssertFunction(o.Get(name))
		if !ok {
			return nil, false
		}
		a.fns[name] = fn
	}
	for _, name := range []string{"LMSGetErrorString", "LMSGetDiagnostic"} {
		if fn, ok := goja.AssertFunction(o.Get(name)); ok {
			a.fns[name] = fn
		}
	}
	return a, true
}

// Parent follows window.parent. The top window is its own parent.
func (w *Window) Parent() (host.Frame, bool) { return w.link("parent") }

func (w *Window) Opener() (host.Frame, bool) { return w.link("opener") }

func (w *Window) link(name string) (host.Frame, bool) {
	o, ok := objectOf(w.obj.Get(name))
	if !ok || o.SameAs(w.obj) {
		return nil, false
	}
	return New(w.vm, o), true
}

type api struct {
	vm  *goja.Runtime
	obj *goja.Object
	fns map[string]goja.Callable
}

// invoke returns "" for missing calls and script exceptions; the adapter
// reads that as failure.
func (a *api) invoke(name string, args ...string) string {
	fn, ok := a.fns[name]
	if !ok {
		return ""
	}
	vals := make([]goja.Value, len(args))
	for i, s := range args {
		vals[i] = a.vm.ToValue(s)
	}
	v, err := fn(a.obj, vals...)
	if err != nil || v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	return v.String()
}

func (a *api) LMSInitialize(arg string) string { return a.invoke("LMSInitialize", arg) }
func (a *api) LMSFinish(arg string) string { return a.invoke("LMSFinish", arg) }
func (a *api) LMSGetValue(key string) string { return a.invoke("LMSGetValue", key) }
func (a *api) LMSSetValue(key, value string) string { return a.invoke("LMSSetValue", key, value) }
func (a *api) LMSCommit(arg string) string { return a.invoke("LMSCommit", arg) }
func (a *api) LMSGetLastError() string { return a.invoke("LMSGetLastError") }
func (a *api) LMSGetErrorString(code string) string { return a.invoke("LMSGetErrorString", code) }
func (a *api) LMSGetDiagnostic(code string) string { return a.invoke("LMSGetDiagnostic", code) }
