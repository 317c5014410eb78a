package host

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/coursepack/internal/logger"
)

// MessageType is the bridge vocabulary understood by embedding pages.
type MessageType string

const (
	MsgSectionComplete MessageType = "SECTION_COMPLETE"
	MsgUpdateScore     MessageType = "UPDATE_SCORE"
	MsgCourseComplete  MessageType = "COURSE_COMPLETE"
	MsgHeartbeat       MessageType = "HEARTBEAT"
	MsgLogResponse     MessageType = "LOG_RESPONSE"
	MsgSuspendData     MessageType = "SUSPEND_DATA"
	MsgDeviceInfo      MessageType = "DEVICE_INFO"
)

// Known reports whether t is part of the bridge vocabulary.
func (t MessageType) Known() bool {
	switch t {
	case MsgSectionComplete, MsgUpdateScore, MsgCourseComplete, MsgHeartbeat,
		MsgLogResponse, MsgSuspendData, MsgDeviceInfo:
		return true
	}
	return false
}

type SectionComplete struct {
	SectionID string `json:"sectionId"`
	Completed bool   `json:"completed"`
	Score     int    `json:"score"`
}

type UpdateScore struct {
	Score int `json:"score"`
}

type CourseComplete struct {
	Score        int    `json:"score,omitempty"`
	LessonStatus string `json:"lessonStatus,omitempty"`
}

type Heartbeat struct {
	Seconds int `json:"seconds"`
}

type LogResponse struct {
	ActivityID string `json:"activityId"`
	QuestionID string `json:"questionId"`
	SelectedID string `json:"selectedId"`
	IsCorrect  bool   `json:"isCorrect"`
	Points     int    `json:"points"`
}

type SuspendData struct {
	Data string `json:"data"`
}

type DeviceInfo struct {
	UserAgent    string `json:"userAgent"`
	Platform     string `json:"platform,omitempty"`
	Language     string `json:"language,omitempty"`
	ScreenWidth  int    `json:"screenWidth,omitempty"`
	ScreenHeight int    `json:"screenHeight,omitempty"`
}

// Envelope is what travels over the bridge.
type Envelope struct {
	ID        string          `json:"id"`
	Type      MessageType     `json:"type"`
	PackageID string          `json:"packageId"`
	Payload   json.RawMessage `json:"payload"`
	SentAt    time.Time       `json:"sentAt"`
}

// Emitter delivers envelopes at most once. Emit must not block.
type Emitter interface {
	Emit(Envelope)
}

// FuncEmitter adapts a function to Emitter.
type FuncEmitter func(Envelope)

func (f FuncEmitter) Emit(e Envelope) { f(e) }

// ChanEmitter hands envelopes to a buffered channel and drops them when
// the buffer is full.
type ChanEmitter struct {
	C       chan Envelope
	dropped atomic.Int64
}

func NewChanEmitter(size int) *ChanEmitter {
	return &ChanEmitter{C: make(chan Envelope, size)}
}

func (c *ChanEmitter) Emit(e Envelope) {
	select {
	case c.C <- e:
	default:
		c.dropped.Add(1)
	}
}

func (c *ChanEmitter) Dropped() int64 { return c.dropped.Load() }

// HTTPEmitter POSTs each envelope as JSON in its own goroutine. Failures
// are logged and forgotten.
type HTTPEmitter struct {
	URL     string
	Client  *http.Client
	Timeout time.Duration
	Header  http.Header
	Log     *logger.Logger

	wg sync.WaitGroup
}

func NewHTTPEmitter(url string, timeout time.Duration, log *logger.Logger) *HTTPEmitter {
	if log == nil {
		log = logger.Nop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPEmitter{URL: url, Client: http.DefaultClient, Timeout: timeout, Log: log}
}

func (h *HTTPEmitter) Emit(e Envelope) {
	body, err := json.Marshal(e)
	if err != nil {
		h.Log.Warn("bridge marshal failed", "type", e.Type, "error", err)
		return
	}
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), h.Timeout)
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(body))
		if err != nil {
			h.Log.Warn("bridge request failed", "type", e.Type, "error", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		for k, vs := range h.Header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		resp, err := h.Client.Do(req)
		if err != nil {
			h.Log.Debug("bridge message lost", "type", e.Type, "error", err)
			return
		}
		resp.Body.Close()
		if resp.StatusCode >= 300 {
			h.Log.Debug("bridge message rejected", "type", e.Type, "status", resp.StatusCode)
		}
	}()
}

// Wait blocks until in-flight posts finish. Only shutdown paths call it.
func (h *HTTPEmitter) Wait() { h.wg.Wait() }

// BridgeAdapter reports to an embedding page. It cannot read anything
// back; prior state arrives through the runtime's initial state option.
type BridgeAdapter struct {
	packageID string
	emitter   Emitter
	now       func() time.Time
	log       *logger.Logger
}

func NewBridgeAdapter(packageID string, e Emitter, now func() time.Time, log *logger.Logger) *BridgeAdapter {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = logger.Nop()
	}
	return &BridgeAdapter{packageID: packageID, emitter: e, now: now, log: log}
}

func (b *BridgeAdapter) Mode() Mode { return ModeBridge }

func (b *BridgeAdapter) Initialize() bool { return b.emitter != nil }

func (b *BridgeAdapter) Terminate() bool { return true }

func (b *BridgeAdapter) ReadValue(string) (string, bool) { return "", false }

// WriteValue forwards suspend data; other keys have no bridge message and
// are accepted silently.
func (b *BridgeAdapter) WriteValue(key, value string) bool {
	if key == KeySuspendData {
		return b.Send(MsgSuspendData, SuspendData{Data: value})
	}
	return true
}

func (b *BridgeAdapter) Commit() bool { return true }

func (b *BridgeAdapter) Send(t MessageType, payload any) bool {
	if b.emitter == nil {
		return false
	}
	if payload == nil {
		payload = struct{}{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		b.log.Warn("bridge payload marshal failed", "type", t, "error", err)
		return false
	}
	b.emitter.Emit(Envelope{
		ID:        uuid.NewString(),
		Type:      t,
		PackageID: b.packageID,
		Payload:   raw,
		SentAt:    b.now().UTC(),
	})
	return true
}
