package main

import (
	"context"
	"errors"
	"time"

	"veil/internal/arbiter"
	"veil/internal/engine"
	"veil/internal/guard"
	"veil/internal/ipc"
	"veil/internal/logging"
	"veil/internal/winapi"
)

// handler maps IPC requests onto the engine.
type handler struct {
	eng       *engine.Engine
	arb       *arbiter.Arbiter
	grd       *guard.Guard
	backend   winapi.Backend
	log       *logging.Logger
	startedAt time.Time
}

func newHandler(eng *engine.Engine, arb *arbiter.Arbiter, grd *guard.Guard, backend winapi.Backend, log *logging.Logger) *handler {
	return &handler{
		eng:       eng,
		arb:       arb,
		grd:       grd,
		backend:   backend,
		log:       log.WithComponent("handler"),
		startedAt: time.Now(),
	}
}

func (h *handler) Handle(_ context.Context, msg *ipc.Message) *ipc.Message {
	switch msg.Header.Type {
	case ipc.MsgPing:
		return ipc.NewMessage(ipc.MsgPong, 0, nil)

	case ipc.MsgListWindows:
		return h.listWindows()

	case ipc.MsgSelect:
		var req ipc.HandleRequest
		if err := msg.Decode(&req); err != nil {
			return badRequest(err)
		}
		return result(h.eng.Select(winapi.Handle(req.Handle)))

	case ipc.MsgSetOpacity:
		var req ipc.OpacityRequest
		if err := msg.Decode(&req); err != nil {
			return badRequest(err)
		}
		return result(h.eng.SetOpacity(winapi.Handle(req.Handle), req.Percent))

	case ipc.MsgSetClickThrough:
		var req ipc.ClickThroughRequest
		if err := msg.Decode(&req); err != nil {
			return badRequest(err)
		}
		return result(h.eng.SetClickThrough(winapi.Handle(req.Handle), req.Enable, req.Lock))

	case ipc.MsgRemoveTopmost:
		var req ipc.HandleRequest
		if err := msg.Decode(&req); err != nil {
			return badRequest(err)
		}
		return result(h.eng.RemoveTopmost(winapi.Handle(req.Handle)))

	case ipc.MsgRestore:
		var req ipc.HandleRequest
		if err := msg.Decode(&req); err != nil {
			return badRequest(err)
		}
		// Restore on an untracked handle is a no-op by contract, so there
		// is no failure to report.
		h.eng.Restore(winapi.Handle(req.Handle))
		return ipc.NewMessage(ipc.MsgAck, 0, nil)

	case ipc.MsgRestoreAll:
		h.eng.RestoreAll()
		return ipc.NewMessage(ipc.MsgAck, 0, nil)

	case ipc.MsgGetRecord:
		var req ipc.HandleRequest
		if err := msg.Decode(&req); err != nil {
			return badRequest(err)
		}
		return h.getRecord(winapi.Handle(req.Handle))

	case ipc.MsgStatus:
		return h.status()

	case ipc.MsgShutdown:
		h.log.Info("shutdown requested over ipc")
		// Let the ack reach the client before the process exits.
		go h.grd.Shutdown()
		return ipc.NewMessage(ipc.MsgAck, 0, nil)

	default:
		return errorMessage(ipc.ErrInvalidRequest, "unknown message type")
	}
}

func (h *handler) listWindows() *ipc.Message {
	resp, err := ipc.Encode(ipc.MsgListWindowsResp, 0, &ipc.ListWindowsResponse{
		Windows: h.eng.ListWindows(),
	})
	if err != nil {
		return errorMessage(ipc.ErrInternalError, err.Error())
	}
	return resp
}

func (h *handler) getRecord(handle winapi.Handle) *ipc.Message {
	body := ipc.RecordResponse{}
	if view, ok := h.eng.Record(handle); ok {
		body.Found = true
		body.Record = view
	}
	resp, err := ipc.Encode(ipc.MsgGetRecordResp, 0, &body)
	if err != nil {
		return errorMessage(ipc.ErrInternalError, err.Error())
	}
	return resp
}

func (h *handler) status() *ipc.Message {
	backendOK, backendDesc := h.backend.Available()
	body := ipc.StatusResponse{
		Version:      version,
		StartedAt:    h.startedAt,
		Uptime:       time.Since(h.startedAt),
		BackendOK:    backendOK,
		Backend:      backendDesc,
		Tracked:      h.eng.Tracked(),
		Selected:     uint64(h.eng.Selected()),
		ModifierHeld: h.arb.Held(),
		Records:      h.eng.Records(),
	}
	resp, err := ipc.Encode(ipc.MsgStatusResp, 0, &body)
	if err != nil {
		return errorMessage(ipc.ErrInternalError, err.Error())
	}
	return resp
}

// result converts an engine error into an ack or a coded error message.
func result(err error) *ipc.Message {
	if err == nil {
		return ipc.NewMessage(ipc.MsgAck, 0, nil)
	}
	switch {
	case errors.Is(err, winapi.ErrStaleWindow):
		return errorMessage(ipc.ErrStaleWindow, err.Error())
	case errors.Is(err, winapi.ErrUnsupported), errors.Is(err, winapi.ErrUnavailable):
		return errorMessage(ipc.ErrUnsupported, err.Error())
	default:
		return errorMessage(ipc.ErrInternalError, err.Error())
	}
}

func badRequest(err error) *ipc.Message {
	return errorMessage(ipc.ErrInvalidRequest, err.Error())
}

func errorMessage(code int, message string) *ipc.Message {
	msg, err := ipc.Encode(ipc.MsgError, 0, &ipc.ErrorResponse{Code: code, Message: message})
	if err != nil {
		return ipc.NewMessage(ipc.MsgError, 0, nil)
	}
	return msg
}
