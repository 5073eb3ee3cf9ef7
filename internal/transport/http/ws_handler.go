package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
)

// WSHandler exposes the quiz engine over a websocket: one connection is
// one user taking one exam.
type WSHandler struct {
	engine   *app.Engine
	upgrader websocket.Upgrader
}

func NewWSHandler(engine *app.Engine) *WSHandler {
	return &WSHandler{
		engine: engine,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type selectPayload struct {
	QuestionID string `json:"questionId"`
	Label      string `json:"label"`
}

type checkPayload struct {
	QuestionID string `json:"questionId"`
}

type proctorPayload struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

type checkResultPayload struct {
	QuestionID string            `json:"questionId"`
	Evaluation domain.Evaluation `json:"evaluation"`
}

type proctorAckPayload struct {
	Recorded int `json:"recorded"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type messagePayload struct {
	Message string `json:"message"`
}

type tickPayload struct {
	Remaining int `json:"remaining"`
}

// ServeWS upgrades the request and drives the quiz session protocol:
// inbound select/next/prev/check/submit/confirmSubmit/proctor, outbound
// session/question/tick/checkResult/confirmRequired/results/warning/error.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	subject := r.URL.Query().Get("subject")
	exam := r.URL.Query().Get("exam")
	userID := r.URL.Query().Get("userId")
	if subject == "" || exam == "" || userID == "" {
		http.Error(w, "missing subject, exam, or userId", http.StatusBadRequest)
		return
	}
	randomize := r.URL.Query().Get("randomize") == "true"
	key := domain.SessionKey{UserID: userID, SubjectCode: subject, ExamCode: exam}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	view, err := h.engine.Open(r.Context(), key, app.OpenOptions{Randomize: randomize})
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	events, cancel, err := h.engine.Subscribe(key)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()
	defer h.engine.Close(key)

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	eventsDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(eventsDone)
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				select {
				case send <- h.eventMessage(ev):
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "session", Payload: view}
	if q, err := h.engine.CurrentQuestion(key); err == nil {
		send <- outboundMessage[any]{Type: "question", Payload: q}
	}

readLoop:
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		for _, msg := range h.handle(r, key, inbound) {
			select {
			case send <- msg:
			case <-writerDone:
				// Writer died on a failed write; a full send buffer would
				// wedge this loop forever.
				break readLoop
			}
		}
	}

	close(closeSignals)
	<-eventsDone
	close(send)
	<-writerDone
}

func (h *WSHandler) handle(r *http.Request, key domain.SessionKey, inbound inboundMessage) []outboundMessage[any] {
	ctx := r.Context()
	switch inbound.Type {
	case "select":
		var p selectPayload
		if err := json.Unmarshal(inbound.Payload, &p); err != nil {
			return errorMsg("invalid select payload")
		}
		view, err := h.engine.SelectAnswer(ctx, key, p.QuestionID, p.Label)
		if err != nil {
			return errorMsg(err.Error())
		}
		return []outboundMessage[any]{{Type: "question", Payload: view}}

	case "next":
		view, atEnd, err := h.engine.Advance(ctx, key)
		if err != nil {
			return errorMsg(err.Error())
		}
		if atEnd {
			return h.finalize(ctx, key, false)
		}
		return []outboundMessage[any]{{Type: "question", Payload: view}}

	case "prev":
		view, err := h.engine.Retreat(ctx, key)
		if err != nil {
			return errorMsg(err.Error())
		}
		return []outboundMessage[any]{{Type: "question", Payload: view}}

	case "check":
		var p checkPayload
		if err := json.Unmarshal(inbound.Payload, &p); err != nil {
			return errorMsg("invalid check payload")
		}
		eval, err := h.engine.CheckAnswer(ctx, key, p.QuestionID)
		if err != nil {
			return errorMsg(err.Error())
		}
		return []outboundMessage[any]{{Type: "checkResult", Payload: checkResultPayload{
			QuestionID: p.QuestionID,
			Evaluation: eval,
		}}}

	case "submit":
		return h.finalize(ctx, key, false)

	case "confirmSubmit":
		return h.finalize(ctx, key, true)

	case "proctor":
		var p proctorPayload
		if err := json.Unmarshal(inbound.Payload, &p); err != nil {
			return errorMsg("invalid proctor payload")
		}
		count, err := h.engine.RecordProctorEvent(key, domain.ProctorKind(p.Kind), p.Detail)
		if err != nil {
			return errorMsg(err.Error())
		}
		return []outboundMessage[any]{{Type: "proctorAck", Payload: proctorAckPayload{Recorded: count}}}

	default:
		return errorMsg("unsupported message type")
	}
}

// finalize runs the submission flow. Results reach the client through the
// session event broadcast, so only the gate outcomes are sent directly.
func (h *WSHandler) finalize(ctx context.Context, key domain.SessionKey, force bool) []outboundMessage[any] {
	_, err := h.engine.Finalize(ctx, key, force)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrIncompleteAnswers):
		return []outboundMessage[any]{{Type: "confirmRequired", Payload: messagePayload{
			Message: "some questions are unchecked; confirm to submit anyway",
		}}}
	case errors.Is(err, domain.ErrSubmitInFlight):
		return []outboundMessage[any]{{Type: "warning", Payload: messagePayload{
			Message: "submission already in progress",
		}}}
	case errors.Is(err, domain.ErrAlreadySubmitted):
		return errorMsg("quiz already submitted")
	default:
		return errorMsg(err.Error())
	}
}

func errorMsg(message string) []outboundMessage[any] {
	return []outboundMessage[any]{{Type: "error", Payload: errorPayload{Message: message}}}
}

func (h *WSHandler) eventMessage(ev app.Event) outboundMessage[any] {
	switch ev.Type {
	case app.EventTick:
		return outboundMessage[any]{Type: "tick", Payload: tickPayload{Remaining: ev.Remaining}}
	case app.EventConfirmRequired:
		return outboundMessage[any]{Type: "confirmRequired", Payload: messagePayload{Message: ev.Message}}
	case app.EventResults:
		return outboundMessage[any]{Type: "results", Payload: ev.Results}
	case app.EventWarning:
		return outboundMessage[any]{Type: "warning", Payload: messagePayload{Message: ev.Message}}
	default:
		return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unknown event"}}
	}
}
