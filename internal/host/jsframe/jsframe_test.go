package jsframe_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/coursepack/internal/host"
	"github.com/mind-engage/coursepack/internal/host/jsframe"
)

const shim = `
var store = {"cmi.core.student_name": "Ada"};
var lastError = "0";
var top = {
  API: {
    LMSInitialize: function () { return "true"; },
    LMSFinish: function () { return "true"; },
    LMSGetValue: function (k) {
      if (!(k in store)) { lastError = "201"; return ""; }
      lastError = "0";
      return store[k];
    },
    LMSSetValue: function (k, v) { store[k] = v; return "true"; },
    LMSCommit: function () { return true; },
    LMSGetLastError: function () { return lastError; }
  }
};
top.parent = top;
var player = { parent: top };
var window = { parent: player };
window.opener = null;
`

func TestAdapterOverScriptedFrames(t *testing.T) {
	w, err := jsframe.FromScript(shim)
	require.NoError(t, err)

	api, ok := host.FindAPI(w)
	require.True(t, ok)

	a := host.NewLMSAdapter(api, nil)
	require.True(t, a.Initialize())

	name, ok := a.ReadValue(host.KeyStudentName)
	require.True(t, ok)
	assert.Equal(t, "Ada", name)

	status, ok := a.ReadValue(host.KeyLessonStatus)
	require.True(t, ok)
	assert.Equal(t, "incomplete", status)

	assert.True(t, a.Commit(), "boolean true converts to the string form")
	assert.True(t, a.Terminate())
}

func TestIncompleteAPIIsIgnored(t *testing.T) {
	w, err := jsframe.FromScript(`var window = { API: { LMSInitialize: function () { return "true"; } } };`)
	require.NoError(t, err)
	_, ok := host.FindAPI(w)
	assert.False(t, ok)
}

func TestScriptError(t *testing.T) {
	_, err := jsframe.FromScript(`this is not javascript`)
	assert.Error(t, err)
}
