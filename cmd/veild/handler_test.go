package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veil/internal/arbiter"
	"veil/internal/engine"
	"veil/internal/guard"
	"veil/internal/ipc"
	"veil/internal/logging"
	"veil/internal/winapi"
)

func newTestHandler(t *testing.T) (*handler, *engine.Engine, *winapi.Fake, *guard.Guard) {
	t.Helper()
	fake := winapi.NewFake()
	eng := engine.New(fake, nil)
	arb := arbiter.New(fake, eng, arbiter.Config{}, nil)
	grd := guard.New(eng, nil, nil)
	h := newHandler(eng, arb, grd, fake, logging.Default())
	return h, eng, fake, grd
}

func request(t *testing.T, h *handler, msgType ipc.MessageType, body any) *ipc.Message {
	t.Helper()
	msg, err := ipc.Encode(msgType, 1, body)
	require.NoError(t, err)
	resp := h.Handle(context.Background(), msg)
	require.NotNil(t, resp)
	return resp
}

func requireAck(t *testing.T, resp *ipc.Message) {
	t.Helper()
	if resp.Header.Type == ipc.MsgError {
		var e ipc.ErrorResponse
		require.NoError(t, resp.Decode(&e))
		t.Fatalf("expected ack, got error %d: %s", e.Code, e.Message)
	}
	require.Equal(t, ipc.MsgAck, resp.Header.Type)
}

func decodeError(t *testing.T, resp *ipc.Message) ipc.ErrorResponse {
	t.Helper()
	require.Equal(t, ipc.MsgError, resp.Header.Type)
	var e ipc.ErrorResponse
	require.NoError(t, resp.Decode(&e))
	return e
}

func TestHandlerPing(t *testing.T) {
	h, _, _, _ := newTestHandler(t)
	resp := request(t, h, ipc.MsgPing, nil)
	assert.Equal(t, ipc.MsgPong, resp.Header.Type)
}

func TestHandlerListWindows(t *testing.T) {
	h, _, fake, _ := newTestHandler(t)
	fake.AddWindow(1, "Editor", "EditorClass", 0)
	fake.AddWindow(2, "", "PlainClass", 0)

	resp := request(t, h, ipc.MsgListWindows, nil)
	require.Equal(t, ipc.MsgListWindowsResp, resp.Header.Type)

	var list ipc.ListWindowsResponse
	require.NoError(t, resp.Decode(&list))
	require.Len(t, list.Windows, 2)
	assert.Equal(t, "Editor", list.Windows[0].Title)
	assert.Equal(t, engine.PlaceholderTitle, list.Windows[1].Title)
}

func TestHandlerSetOpacity(t *testing.T) {
	h, eng, fake, _ := newTestHandler(t)
	fake.AddWindow(5, "W", "C", 0)

	resp := request(t, h, ipc.MsgSetOpacity, &ipc.OpacityRequest{Handle: 5, Percent: 50})
	requireAck(t, resp)

	assert.Equal(t, byte(127), fake.Window(5).Alpha)
	v, ok := eng.Record(5)
	require.True(t, ok)
	assert.Equal(t, byte(127), v.Alpha)
	assert.Equal(t, winapi.Handle(5), eng.Selected())
}

func TestHandlerSetOpacityStale(t *testing.T) {
	h, _, _, _ := newTestHandler(t)
	resp := request(t, h, ipc.MsgSetOpacity, &ipc.OpacityRequest{Handle: 404, Percent: 50})
	e := decodeError(t, resp)
	assert.Equal(t, ipc.ErrStaleWindow, e.Code)
}

func TestHandlerClickThroughLock(t *testing.T) {
	h, eng, fake, _ := newTestHandler(t)
	fake.AddWindow(6, "W", "C", 0)

	resp := request(t, h, ipc.MsgSetClickThrough, &ipc.ClickThroughRequest{Handle: 6, Enable: true, Lock: true})
	requireAck(t, resp)

	assert.NotZero(t, fake.Window(6).Style&winapi.StyleTransparent)
	v, _ := eng.Record(6)
	assert.True(t, v.Locked)
}

func TestHandlerRestoreRoundTrip(t *testing.T) {
	h, eng, fake, _ := newTestHandler(t)
	fake.AddWindow(7, "W", "C", 0x40)

	requireAck(t, request(t, h, ipc.MsgSetOpacity, &ipc.OpacityRequest{Handle: 7, Percent: 30}))
	requireAck(t, request(t, h, ipc.MsgSetClickThrough, &ipc.ClickThroughRequest{Handle: 7, Enable: true, Lock: false}))

	requireAck(t, request(t, h, ipc.MsgRestore, &ipc.HandleRequest{Handle: 7}))
	assert.Equal(t, uint32(0x40), fake.Window(7).Style)
	assert.Equal(t, 0, eng.Tracked())

	// Restoring an untracked handle is a no-op, still acknowledged.
	requireAck(t, request(t, h, ipc.MsgRestore, &ipc.HandleRequest{Handle: 7}))
	requireAck(t, request(t, h, ipc.MsgRestore, &ipc.HandleRequest{Handle: 999}))
}

func TestHandlerRestoreAll(t *testing.T) {
	h, eng, fake, _ := newTestHandler(t)
	fake.AddWindow(1, "A", "C", 0)
	fake.AddWindow(2, "B", "C", 0)
	requireAck(t, request(t, h, ipc.MsgSetOpacity, &ipc.OpacityRequest{Handle: 1, Percent: 10}))
	requireAck(t, request(t, h, ipc.MsgSetOpacity, &ipc.OpacityRequest{Handle: 2, Percent: 10}))

	requireAck(t, request(t, h, ipc.MsgRestoreAll, nil))
	assert.Equal(t, 0, eng.Tracked())
}

func TestHandlerGetRecord(t *testing.T) {
	h, _, fake, _ := newTestHandler(t)
	fake.AddWindow(8, "W", "C", 0)
	requireAck(t, request(t, h, ipc.MsgSetOpacity, &ipc.OpacityRequest{Handle: 8, Percent: 40}))

	resp := request(t, h, ipc.MsgGetRecord, &ipc.HandleRequest{Handle: 8})
	require.Equal(t, ipc.MsgGetRecordResp, resp.Header.Type)
	var rec ipc.RecordResponse
	require.NoError(t, resp.Decode(&rec))
	require.True(t, rec.Found)
	assert.Equal(t, byte(102), rec.Record.Alpha)

	resp = request(t, h, ipc.MsgGetRecord, &ipc.HandleRequest{Handle: 999})
	require.NoError(t, resp.Decode(&rec))
	assert.False(t, rec.Found)
}

func TestHandlerStatus(t *testing.T) {
	h, _, fake, _ := newTestHandler(t)
	fake.AddWindow(9, "W", "C", 0)
	requireAck(t, request(t, h, ipc.MsgSetOpacity, &ipc.OpacityRequest{Handle: 9, Percent: 50}))

	resp := request(t, h, ipc.MsgStatus, nil)
	require.Equal(t, ipc.MsgStatusResp, resp.Header.Type)
	var status ipc.StatusResponse
	require.NoError(t, resp.Decode(&status))
	assert.Equal(t, version, status.Version)
	assert.True(t, status.BackendOK)
	assert.Equal(t, 1, status.Tracked)
	assert.Equal(t, uint64(9), status.Selected)
	require.Len(t, status.Records, 1)
}

func TestHandlerShutdown(t *testing.T) {
	h, eng, fake, grd := newTestHandler(t)
	fake.AddWindow(1, "W", "C", 0x8)
	requireAck(t, request(t, h, ipc.MsgSetOpacity, &ipc.OpacityRequest{Handle: 1, Percent: 20}))

	resp := request(t, h, ipc.MsgShutdown, nil)
	requireAck(t, resp)

	select {
	case <-grd.Done():
	case <-time.After(time.Second):
		t.Fatal("shutdown did not complete")
	}
	assert.Equal(t, 0, eng.Tracked())
	assert.Equal(t, uint32(0x8), fake.Window(1).Style)
}

func TestHandlerBadPayload(t *testing.T) {
	h, _, _, _ := newTestHandler(t)
	msg := ipc.NewMessage(ipc.MsgSetOpacity, 1, []byte("{not json"))
	resp := h.Handle(context.Background(), msg)
	e := decodeError(t, resp)
	assert.Equal(t, ipc.ErrInvalidRequest, e.Code)
}

func TestHandlerUnknownType(t *testing.T) {
	h, _, _, _ := newTestHandler(t)
	resp := request(t, h, ipc.MessageType(0x7FFF), nil)
	e := decodeError(t, resp)
	assert.Equal(t, ipc.ErrInvalidRequest, e.Code)
}
